package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mgpai22/pressurecooker/internal/subtitles"
	"github.com/mgpai22/pressurecooker/internal/video"
	"github.com/mgpai22/pressurecooker/internal/youtube"
)

const srtSample = `1
00:00:01,000 --> 00:00:02,500
Hello there

2
00:00:03,000 --> 00:00:04,000
General Kenobi
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "config.yml")}, args...))
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildJobs(t *testing.T) {
	opts := subtitles.Options{Format: "srt"}

	jobs, err := buildJobs([]string{"a/one.srt", "b/two.srt"}, "en", "", "out", opts)
	if err != nil {
		t.Fatalf("buildJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if want := filepath.Join("out", "one.vtt"); jobs[0].Output != want {
		t.Errorf("expected output %s, got %s", want, jobs[0].Output)
	}
	if jobs[1].Language != "en" || jobs[1].Options.Format != "srt" {
		t.Errorf("expected language and options to be copied, got %+v", jobs[1])
	}

	jobs, err = buildJobs([]string{"one.srt"}, "en", "custom.vtt", "", opts)
	if err != nil {
		t.Fatalf("buildJobs: %v", err)
	}
	if jobs[0].Output != "custom.vtt" {
		t.Errorf("expected custom.vtt, got %s", jobs[0].Output)
	}
}

func TestBuildJobsErrors(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []string
		lang      string
		output    string
		outputDir string
		format    string
	}{
		{"missing language", []string{"a.srt"}, "", "", "", ""},
		{"bad format", []string{"a.srt"}, "en", "", "", "mp4"},
		{"output with many inputs", []string{"a.srt", "b.srt"}, "en", "x.vtt", "", ""},
		{"output and output dir", []string{"a.srt"}, "en", "x.vtt", "out", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildJobs(tt.inputs, tt.lang, tt.output, tt.outputDir, subtitles.Options{Format: tt.format})
			if err == nil {
				t.Errorf("expected error")
			}
		})
	}

	_, err := buildJobs([]string{"a.srt"}, "en", "", "", subtitles.Options{Format: "mp4"})
	if !errors.Is(err, subtitles.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDescribeConvertError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("read: %w", os.ErrNotExist), "file not found"},
		{fmt.Errorf("x: %w", subtitles.ErrInvalidFormat), "unrecognised or unreadable subtitle file"},
		{fmt.Errorf("x: %w", subtitles.ErrEncoding), "invalid text encoding (try --encoding)"},
		{&subtitles.LanguageError{Requested: "fr", Available: []string{"en"}}, `captions set is empty for language "fr" (available: en)`},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		if got := describeConvertError(tt.err); got != tt.want {
			t.Errorf("describeConvertError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPrintConvertResults(t *testing.T) {
	results := []subtitles.JobResult{
		{
			Job:    subtitles.Job{Input: "good.srt", Output: "good.vtt"},
			Result: &subtitles.Result{Format: subtitles.FormatSRT, Cues: 12},
		},
		{
			Job: subtitles.Job{Input: "bad.srt"},
			Err: subtitles.ErrInvalidFormat,
		},
	}
	var buf bytes.Buffer
	failed := printConvertResults(&buf, results)
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
	out := buf.String()
	for _, s := range []string{"good.srt", "good.vtt", "12", "bad.srt", "unrecognised"} {
		if !strings.Contains(out, s) {
			t.Errorf("expected table to contain %q:\n%s", s, out)
		}
	}
}

func TestSubtitleRows(t *testing.T) {
	info := &youtube.Info{
		ID: "abc",
		Subtitles: map[string][]youtube.SubtitleTrack{
			"es":     {{Ext: "vtt"}, {Ext: "srv3"}},
			"en":     {{Ext: "vtt"}},
			"bogus!": {{Ext: "vtt"}},
		},
	}
	rows := subtitleRows(info)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "bogus!" || rows[0][2] != "false" {
		t.Errorf("expected unsupported bogus! first, got %v", rows[0])
	}
	if rows[1][1] != "en" || rows[1][2] != "true" {
		t.Errorf("expected supported en second, got %v", rows[1])
	}
	if rows[2][3] != "vtt, srv3" {
		t.Errorf("expected es formats, got %q", rows[2][3])
	}
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, suffix, want string
	}{
		{"video.mp4", "_compressed.mp4", "video_compressed.mp4"},
		{"dir/clip.mov", ".wav", "dir/clip.wav"},
		{"noext", "_thumbnail.png", "noext_thumbnail.png"},
	}
	for _, tt := range tests {
		if got := replaceExt(tt.path, tt.suffix); got != tt.want {
			t.Errorf("replaceExt(%q, %q) = %q, want %q", tt.path, tt.suffix, got, tt.want)
		}
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.srt")
	if err := os.WriteFile(input, []byte(srtSample), 0644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "convert", input, "--language", "en", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("convert failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "talk.vtt"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if !strings.HasPrefix(string(data), "WEBVTT") || !strings.Contains(string(data), "General Kenobi") {
		t.Errorf("unexpected output:\n%s", data)
	}
	if !strings.Contains(out, "talk.srt") {
		t.Errorf("expected summary table, got:\n%s", out)
	}
}

func TestLanguagesCommand(t *testing.T) {
	out, err := execute(t, "languages", filepath.Join("..", "subtitles", "testdata", "bilingual.smi"))
	if err != nil {
		t.Fatalf("languages failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Format: sami") {
		t.Errorf("expected sami format, got:\n%s", out)
	}
}

func TestLinksCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	html := `<html><body><a href="next.html">n</a><img src="https://example.com/x.png"></body></html>`
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "links", path, "--local")
	if err != nil {
		t.Fatalf("links failed: %v", err)
	}
	if strings.TrimSpace(out) != "next.html" {
		t.Errorf("expected only next.html, got %q", out)
	}
}

func TestLicenseCommand(t *testing.T) {
	out, err := execute(t, "license")
	if err != nil {
		t.Fatalf("license failed: %v", err)
	}
	if !strings.HasPrefix(out, "MIT License") {
		t.Errorf("expected license text, got %q", out)
	}
}

func TestExtractCommandRejectsFormat(t *testing.T) {
	_, err := execute(t, "extract", filepath.Join(t.TempDir(), "talk.mp4"), "--format", "ogg")
	if !errors.Is(err, video.ErrAudioFormat) {
		t.Errorf("expected ErrAudioFormat, got %v", err)
	}
}

func TestExtensionMismatch(t *testing.T) {
	tests := []struct {
		path     string
		detected subtitles.Format
		want     subtitles.Format
		mismatch bool
	}{
		{"talk.srt", subtitles.FormatSRT, "", false},
		{"talk.vtt", subtitles.FormatWebVTT, "", false},
		{"talk.xml", subtitles.FormatDFXP, "", false},
		{"talk", subtitles.FormatSRT, "", false},
		{"talk.txt", subtitles.FormatSRT, "", false},
		{"talk.smi", subtitles.FormatSRT, subtitles.FormatSAMI, true},
	}
	for _, tt := range tests {
		got, ok := extensionMismatch(tt.path, tt.detected)
		if got != tt.want || ok != tt.mismatch {
			t.Errorf("extensionMismatch(%q, %s) = %q, %v; want %q, %v",
				tt.path, tt.detected, got, ok, tt.want, tt.mismatch)
		}
	}
}

func TestLanguagesCommandFlagsMisnamedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.smi")
	if err := os.WriteFile(path, []byte(srtSample), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "languages", path)
	if err != nil {
		t.Fatalf("languages failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Format: srt (extension suggests sami)") {
		t.Errorf("expected extension note, got:\n%s", out)
	}
}
