package caption

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleSAMI = `<SAMI>
<HEAD>
<TITLE>Sample</TITLE>
<STYLE TYPE="text/css">
<!--
P { margin-left: 1pt; color: white; }
.ENCC { Name: English; lang: en; }
.ESCC { Name: Spanish; lang: es-ES; }
-->
</STYLE>
</HEAD>
<BODY>
<SYNC Start=1000>
<P Class=ENCC>Hello <i>world</i>
<P Class=ESCC>Hola mundo
<SYNC Start=3000>
<P Class=ENCC>&nbsp;
<P Class=ESCC>&nbsp;
<SYNC Start=4000>
<P Class=ENCC>Second line<br>continues
</BODY>
</SAMI>
`

func TestSAMIReaderRead(t *testing.T) {
	set, err := SAMIReader{}.Read(sampleSAMI)
	if err != nil {
		t.Fatalf("failed to read SAMI: %v", err)
	}

	if diff := cmp.Diff([]string{"en", "es-ES"}, set.Languages()); diff != "" {
		t.Fatalf("languages mismatch (-want +got):\n%s", diff)
	}

	en := set.Captions("en")
	if len(en) != 2 {
		t.Fatalf("expected 2 en captions, got %d", len(en))
	}
	if en[0].Start != 1*time.Second || en[0].End != 3*time.Second {
		t.Errorf("en caption 0: expected 1s-3s, got %v-%v", en[0].Start, en[0].End)
	}
	italic := Style{"font-style": "italic"}
	want := []Node{
		TextNode("Hello "),
		StyleNode(italic, true),
		TextNode("world"),
		StyleNode(italic, false),
	}
	if diff := cmp.Diff(want, en[0].Nodes); diff != "" {
		t.Errorf("en caption 0 nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"encc"}, en[0].Classes); diff != "" {
		t.Errorf("en caption 0 classes mismatch (-want +got):\n%s", diff)
	}

	// last caption runs for the default duration
	if en[1].Start != 4*time.Second || en[1].End != 4*time.Second+DefaultDuration {
		t.Errorf("en caption 1: expected 4s-8s, got %v-%v", en[1].Start, en[1].End)
	}
	if en[1].Text() != "Second line\ncontinues" {
		t.Errorf("en caption 1: expected %q, got %q", "Second line\ncontinues", en[1].Text())
	}

	es := set.Captions("es-ES")
	if len(es) != 1 {
		t.Fatalf("expected 1 es caption, got %d", len(es))
	}
	if es[0].Text() != "Hola mundo" {
		t.Errorf("es caption 0: expected %q, got %q", "Hola mundo", es[0].Text())
	}

	if got := set.Styles()["p"]["color"]; got != "white" {
		t.Errorf("expected p style color white, got %q", got)
	}
}

func TestSAMIReaderUnknownClass(t *testing.T) {
	content := `<SAMI><BODY>
<SYNC Start=0><P>No class here
<SYNC Start=2000><P Class=XX>Unmapped class
<SYNC Start=2500>Bare text
<SYNC Start=3000>
</BODY></SAMI>`

	set, err := SAMIReader{}.Read(content)
	if err != nil {
		t.Fatalf("failed to read SAMI: %v", err)
	}
	if diff := cmp.Diff([]string{Unknown}, set.Languages()); diff != "" {
		t.Fatalf("languages mismatch (-want +got):\n%s", diff)
	}

	var got []string
	for _, c := range set.Captions(Unknown) {
		got = append(got, c.Text())
	}
	if diff := cmp.Diff([]string{"No class here", "Unmapped class", "Bare text"}, got); diff != "" {
		t.Errorf("caption text mismatch (-want +got):\n%s", diff)
	}
}

func TestSAMIReaderBadSync(t *testing.T) {
	content := `<SAMI><BODY><SYNC Start=abc><P>x</BODY></SAMI>`
	if _, err := (SAMIReader{}).Read(content); err == nil {
		t.Error("expected error for non-numeric SYNC start")
	}
}

func TestSAMIReaderDetect(t *testing.T) {
	if !(SAMIReader{}).Detect(sampleSAMI) {
		t.Error("expected SAMI document to be detected")
	}
	if !(SAMIReader{}).Detect("<sami>\n</sami>") {
		t.Error("expected lower-case SAMI root to be detected")
	}
	if (SAMIReader{}).Detect(sampleSRT) {
		t.Error("expected SRT not to be detected as SAMI")
	}
}
