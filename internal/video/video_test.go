package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "30000/1001"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"},
    {"index": 2, "codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 180, "r_frame_rate": "0/0"}
  ],
  "format": {"duration": "61.500000"}
}`

func TestParseInfo(t *testing.T) {
	info, err := parseInfo([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", info.Width, info.Height)
	}
	if info.Codec != "h264" {
		t.Errorf("expected h264, got %q", info.Codec)
	}
	if info.Duration != 61500*time.Millisecond {
		t.Errorf("expected 61.5s, got %v", info.Duration)
	}
	if !info.HasAudio {
		t.Error("expected audio stream to be detected")
	}
	if info.FrameRate < 29.96 || info.FrameRate > 29.98 {
		t.Errorf("expected ~29.97 fps, got %v", info.FrameRate)
	}
}

func TestParseInfoErrors(t *testing.T) {
	for name, report := range map[string]string{
		"not json":    "width=1280",
		"audio only":  `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`,
		"no sections": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseInfo([]byte(report)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"24", 24},
		{"0/0", 0},
		{"x/1", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPresetForHeight(t *testing.T) {
	tests := []struct {
		height int
		want   Preset
	}{
		{1080, PresetHighRes},
		{720, PresetHighRes},
		{719, PresetLowRes},
		{0, PresetLowRes},
	}
	for _, tt := range tests {
		if got := PresetForHeight(tt.height); got != tt.want {
			t.Errorf("PresetForHeight(%d) = %q, want %q", tt.height, got, tt.want)
		}
	}
}

func TestGuessPresetFallsBackToLowRes(t *testing.T) {
	p := NewProcessor(nil)
	got := p.GuessPreset(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if got != PresetLowRes {
		t.Errorf("expected low res fallback, got %q", got)
	}
}

func TestScaleFilter(t *testing.T) {
	tests := []struct {
		name string
		opts CompressOptions
		want string
	}{
		{"default", CompressOptions{}, `w=-2:h=trunc(min(ih\,480)/2)*2`},
		{"max height", CompressOptions{MaxHeight: 360}, `w=-2:h=trunc(min(ih\,360)/2)*2`},
		{"max width wins", CompressOptions{MaxWidth: 640, MaxHeight: 360}, `w=trunc(min(iw\,640)/2)*2:h=-2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleFilter(tt.opts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestCompressStreamArgs(t *testing.T) {
	args := compressStream("in.mp4", "out.mp4", CompressOptions{MaxHeight: 360}).GetArgs()

	for flag, value := range map[string]string{
		"-i":         "in.mp4",
		"-profile:v": "baseline",
		"-level":     "3.0",
		"-b:a":       "32k",
		"-ac":        "1",
		"-crf":       "32",
		"-vf":        `scale=w=-2:h=trunc(min(ih\,360)/2)*2`,
	} {
		if !hasArgPair(args, flag, value) {
			t.Errorf("expected %s %s in %v", flag, value, args)
		}
	}
}

func TestThumbnailStreamArgs(t *testing.T) {
	args := thumbnailStream("in.mp4", "thumb.png", 30.25).GetArgs()

	for flag, value := range map[string]string{
		"-ss":      "30.250",
		"-vcodec":  "png",
		"-vframes": "1",
		"-vf":      thumbnailScale,
	} {
		if !hasArgPair(args, flag, value) {
			t.Errorf("expected %s %s in %v", flag, value, args)
		}
	}
}

func TestExtractAudioArgs(t *testing.T) {
	tests := []struct {
		format  string
		codec   string
		bitrate any
	}{
		{"mp3", "libmp3lame", "64k"},
		{"aac", "aac", "64k"},
		{"flac", "flac", nil},
		{"wav", "pcm_s16le", nil},
	}
	for _, tt := range tests {
		kwargs, err := extractAudioArgs(ExtractAudioOptions{Format: tt.format, Bitrate: "64k"})
		if err != nil {
			t.Fatalf("format %q: unexpected error: %v", tt.format, err)
		}
		if kwargs["acodec"] != tt.codec {
			t.Errorf("format %q: expected codec %q, got %v", tt.format, tt.codec, kwargs["acodec"])
		}
		if kwargs["b:a"] != tt.bitrate {
			t.Errorf("format %q: expected bitrate %v, got %v", tt.format, tt.bitrate, kwargs["b:a"])
		}
	}

	for _, format := range []string{"", "ogg"} {
		if _, err := extractAudioArgs(ExtractAudioOptions{Format: format}); !errors.Is(err, ErrAudioFormat) {
			t.Errorf("format %q: expected ErrAudioFormat, got %v", format, err)
		}
	}
}

func TestExtractAudioRejectsFormatFirst(t *testing.T) {
	p := NewProcessor(nil)
	out := filepath.Join(t.TempDir(), "sub", "a.ogg")
	err := p.ExtractAudio(context.Background(), "missing.mp4", out, ExtractAudioOptions{Format: "ogg"})
	if !errors.Is(err, ErrAudioFormat) {
		t.Errorf("expected ErrAudioFormat, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(out)); !os.IsNotExist(err) {
		t.Error("expected no output directory to be created")
	}
}

func TestExistingOutputIsRefused(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "thumb.png")
	if err := os.WriteFile(out, []byte("old"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	p := NewProcessor(nil)

	err := p.ExtractThumbnail(context.Background(), filepath.Join(dir, "in.mp4"), out, false)
	if !errors.Is(err, ErrThumbnail) || !errors.Is(err, ErrOutputExists) {
		t.Errorf("expected ErrThumbnail wrapping ErrOutputExists, got %v", err)
	}

	video := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	err = p.Compress(context.Background(), video, out, CompressOptions{})
	if !errors.Is(err, ErrCompression) || !errors.Is(err, ErrOutputExists) {
		t.Errorf("expected ErrCompression wrapping ErrOutputExists, got %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "old" {
		t.Error("expected existing output to be untouched")
	}
}

func TestCompressMissingInput(t *testing.T) {
	p := NewProcessor(nil)
	dir := t.TempDir()
	err := p.Compress(context.Background(), filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "out.mp4"), DefaultCompressOptions())
	if !errors.Is(err, ErrCompression) {
		t.Errorf("expected ErrCompression, got %v", err)
	}
}
