package caption

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleDFXP = `<?xml version="1.0" encoding="utf-8"?>
<tt xml:lang="en" xmlns="http://www.w3.org/ns/ttml" xmlns:tts="http://www.w3.org/ns/ttml#styling">
 <head>
  <styling>
   <style xml:id="s1" tts:fontStyle="italic" tts:textAlign="center"/>
  </styling>
  <layout>
   <region xml:id="bottom" tts:origin="10% 80%" tts:extent="80% 20%"/>
  </layout>
 </head>
 <body>
  <div>
   <p begin="00:00:01.000" end="00:00:02.500" region="bottom">Hello<br/>
     world</p>
   <p begin="3s" dur="1500ms" style="s1">Styled</p>
  </div>
  <div xml:lang="es">
   <p begin="00:00:01:15" end="00:00:03:00">Hola <span tts:fontWeight="bold">mundo</span></p>
  </div>
 </body>
</tt>
`

func TestDFXPReaderRead(t *testing.T) {
	set, err := DFXPReader{}.Read(sampleDFXP)
	if err != nil {
		t.Fatalf("failed to read DFXP: %v", err)
	}

	if diff := cmp.Diff([]string{"en", "es"}, set.Languages()); diff != "" {
		t.Fatalf("languages mismatch (-want +got):\n%s", diff)
	}

	en := set.Captions("en")
	if len(en) != 2 {
		t.Fatalf("expected 2 en captions, got %d", len(en))
	}

	if en[0].Start != 1*time.Second || en[0].End != 2500*time.Millisecond {
		t.Errorf("en caption 0: expected 1s-2.5s, got %v-%v", en[0].Start, en[0].End)
	}
	if en[0].Text() != "Hello\nworld" {
		t.Errorf("en caption 0: expected %q, got %q", "Hello\nworld", en[0].Text())
	}
	wantLayout := &Layout{
		Origin: &Point{X: Length{10, UnitPercent}, Y: Length{80, UnitPercent}},
		Extent: &Point{X: Length{80, UnitPercent}, Y: Length{20, UnitPercent}},
	}
	if diff := cmp.Diff(wantLayout, en[0].Layout); diff != "" {
		t.Errorf("en caption 0 layout mismatch (-want +got):\n%s", diff)
	}

	if en[1].Start != 3*time.Second || en[1].End != 4500*time.Millisecond {
		t.Errorf("en caption 1: expected 3s-4.5s, got %v-%v", en[1].Start, en[1].End)
	}
	italic := Style{"font-style": "italic"}
	wantNodes := []Node{StyleNode(italic, true), TextNode("Styled"), StyleNode(italic, false)}
	if diff := cmp.Diff(wantNodes, en[1].Nodes); diff != "" {
		t.Errorf("en caption 1 nodes mismatch (-want +got):\n%s", diff)
	}
	if en[1].Layout == nil || en[1].Layout.Align != "center" {
		t.Errorf("en caption 1: expected center alignment, got %+v", en[1].Layout)
	}
	if diff := cmp.Diff([]string{"s1"}, en[1].Classes); diff != "" {
		t.Errorf("en caption 1 classes mismatch (-want +got):\n%s", diff)
	}

	es := set.Captions("es")
	if len(es) != 1 {
		t.Fatalf("expected 1 es caption, got %d", len(es))
	}
	if es[0].Start != 1500*time.Millisecond || es[0].End != 3*time.Second {
		t.Errorf("es caption 0: expected 1.5s-3s, got %v-%v", es[0].Start, es[0].End)
	}
	bold := Style{"font-weight": "bold"}
	wantNodes = []Node{TextNode("Hola "), StyleNode(bold, true), TextNode("mundo"), StyleNode(bold, false)}
	if diff := cmp.Diff(wantNodes, es[0].Nodes); diff != "" {
		t.Errorf("es caption 0 nodes mismatch (-want +got):\n%s", diff)
	}

	if got := set.Styles()["s1"]; got["font-style"] != "italic" || got["text-align"] != "center" {
		t.Errorf("unexpected style s1: %v", got)
	}
}

func TestDFXPReaderWithoutLanguage(t *testing.T) {
	content := `<tt xmlns="http://www.w3.org/ns/ttml"><body><div>
<p begin="0.5s">no end</p>
</div></body></tt>`

	set, err := DFXPReader{}.Read(content)
	if err != nil {
		t.Fatalf("failed to read DFXP: %v", err)
	}
	caps := set.Captions(Unknown)
	if len(caps) != 1 {
		t.Fatalf("expected 1 caption, got %d", len(caps))
	}
	if caps[0].End != 500*time.Millisecond+DefaultDuration {
		t.Errorf("expected default end, got %v", caps[0].End)
	}
}

func TestDFXPReaderTimeExpressions(t *testing.T) {
	p := &dfxpParser{frameRate: 25, tickRate: 10000000}

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:01.5", 1500 * time.Millisecond, false},
		{"01:02:03.004", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, false},
		{"00:00:01:05", 1200 * time.Millisecond, false},
		{"2h", 2 * time.Hour, false},
		{"1.5m", 90 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"50f", 2 * time.Second, false},
		{"15000000t", 1500 * time.Millisecond, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.parseTime(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDFXPReaderDetect(t *testing.T) {
	if !(DFXPReader{}).Detect(sampleDFXP) {
		t.Error("expected TTML document to be detected")
	}
	if !(DFXPReader{}).Detect(`<tt:tt xmlns:tt="http://www.w3.org/ns/ttml"></tt:tt>`) {
		t.Error("expected prefixed TTML document to be detected")
	}
	if (DFXPReader{}).Detect(sampleSAMI) {
		t.Error("expected SAMI not to be detected as TTML")
	}
}
