package caption

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,000
Hello, world!

2
00:00:05,500 --> 00:00:08,200
This is a test.
With multiple lines.

3
00:00:10,000 --> 00:00:12,500
<i>Final</i> subtitle.
`

func TestSRTReaderRead(t *testing.T) {
	set, err := SRTReader{}.Read(sampleSRT, "")
	if err != nil {
		t.Fatalf("failed to read SRT: %v", err)
	}

	if diff := cmp.Diff([]string{Unknown}, set.Languages()); diff != "" {
		t.Errorf("languages mismatch (-want +got):\n%s", diff)
	}

	caps := set.Captions(Unknown)
	if len(caps) != 3 {
		t.Fatalf("expected 3 captions, got %d", len(caps))
	}

	if caps[0].Start != 1*time.Second {
		t.Errorf("caption 0: expected start 1s, got %v", caps[0].Start)
	}
	if caps[0].End != 4*time.Second {
		t.Errorf("caption 0: expected end 4s, got %v", caps[0].End)
	}
	if caps[1].End != 8200*time.Millisecond {
		t.Errorf("caption 1: expected end 8.2s, got %v", caps[1].End)
	}

	expectedText := "This is a test.\nWith multiple lines."
	if caps[1].Text() != expectedText {
		t.Errorf("caption 1: expected %q, got %q", expectedText, caps[1].Text())
	}

	italic := Style{"font-style": "italic"}
	want := []Node{
		StyleNode(italic, true),
		TextNode("Final"),
		StyleNode(italic, false),
		TextNode(" subtitle."),
	}
	if diff := cmp.Diff(want, caps[2].Nodes); diff != "" {
		t.Errorf("caption 2 nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestSRTReaderTagsLanguage(t *testing.T) {
	set, err := SRTReader{}.Read(sampleSRT, "AR")
	if err != nil {
		t.Fatalf("failed to read SRT: %v", err)
	}
	if diff := cmp.Diff([]string{"ar"}, set.Languages()); diff != "" {
		t.Errorf("languages mismatch (-want +got):\n%s", diff)
	}
}

func TestSRTReaderCRLFAndDotSeparator(t *testing.T) {
	content := "1\r\n00:00:01.250 --> 00:00:02.000\r\nWindows line\r\n\r\n"

	if !(SRTReader{}).Detect(content) {
		t.Fatal("expected CRLF SRT to be detected")
	}

	set, err := SRTReader{}.Read(content, "en")
	if err != nil {
		t.Fatalf("failed to read SRT: %v", err)
	}
	caps := set.Captions("en")
	if len(caps) != 1 {
		t.Fatalf("expected 1 caption, got %d", len(caps))
	}
	if caps[0].Start != 1250*time.Millisecond {
		t.Errorf("expected start 1.25s, got %v", caps[0].Start)
	}
	if caps[0].Text() != "Windows line" {
		t.Errorf("expected %q, got %q", "Windows line", caps[0].Text())
	}
}

func TestSRTReaderInvalidTimestamp(t *testing.T) {
	content := "1\n00:61:00,000 --> 00:62:00,000\nbad\n"
	if _, err := (SRTReader{}).Read(content, ""); err == nil {
		t.Error("expected error for out-of-range timestamp")
	}
}

func TestSRTReaderRejectsInvalidUTF8(t *testing.T) {
	content := "1\n00:00:01,000 --> 00:00:02,000\n\xff\xfe\n"
	_, err := SRTReader{}.Read(content, "")
	if !errors.Is(err, ErrInvalidText) {
		t.Errorf("expected ErrInvalidText, got %v", err)
	}
}

func TestSRTReaderDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"srt", sampleSRT, true},
		{"leading blank lines", "\n\n" + sampleSRT, true},
		{"webvtt", "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhi\n", false},
		{"no index", "00:00:01,000 --> 00:00:02,000\nhi\n", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (SRTReader{}).Detect(tt.text); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}
