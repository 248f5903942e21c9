package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/pressurecooker/internal/ffmpeg"
)

// default rate for waveform decoding; plenty for a thumbnail
const DefaultSampleRate = 8000

// decoded mono PCM samples
type Samples struct {
	Data       []int
	SampleRate int
	BitDepth   int
}

// Duration is the length of the decoded signal.
func (s *Samples) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Data)) * time.Second / time.Duration(s.SampleRate)
}

// Peak is the largest absolute sample value.
func (s *Samples) Peak() int {
	peak := 0
	for _, v := range s.Data {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Middle returns at most n samples centred on the middle of the signal.
// n <= 0 returns everything.
func (s *Samples) Middle(n int) []int {
	if n <= 0 || n >= len(s.Data) {
		return s.Data
	}
	start := (len(s.Data) - n) / 2
	return s.Data[start : start+n]
}

// duration of an audio/video file
func GetDuration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	report, err := ffmpegbin.Probe(ctx, filePath)
	if err != nil {
		return 0, err
	}
	return parseDuration(report)
}

func parseDuration(report []byte) (time.Duration, error) {
	if !gjson.ValidBytes(report) {
		return 0, fmt.Errorf("failed to parse ffprobe output")
	}
	value := gjson.GetBytes(report, "format.duration")
	if !value.Exists() {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	seconds := value.Float()
	if seconds <= 0 {
		return 0, fmt.Errorf("failed to parse duration %q", value.String())
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// DecodeToWAV converts any media file ffmpeg understands to 16-bit mono
// PCM WAV at sampleRate.
func DecodeToWAV(ctx context.Context, inputPath, outputPath string, sampleRate int) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := ffmpeg.KwArgs{
		"vn":     "",          // No video
		"ar":     sampleRate,  // Sample rate
		"ac":     1,           // Mono
		"acodec": "pcm_s16le", // 16-bit PCM
		"f":      "wav",
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput()
	if err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("audio decoding failed: %w", err)
	}
	return nil
}

// ReadSamples loads a PCM WAV file. Multi-channel audio is reduced to its
// first channel.
func ReadSamples(path string) (*Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav file: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	data := buf.Data
	if channels > 1 {
		mono := make([]int, 0, len(data)/channels)
		for i := 0; i < len(data); i += channels {
			mono = append(mono, data[i])
		}
		data = mono
	}

	return &Samples{
		Data:       data,
		SampleRate: int(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
	}, nil
}

// LoadSamples decodes any media file to samples through a temporary WAV.
func LoadSamples(ctx context.Context, inputPath string, sampleRate int) (*Samples, error) {
	tmp, err := os.CreateTemp("", "pressurecooker-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := DecodeToWAV(ctx, inputPath, tmpPath, sampleRate); err != nil {
		return nil, err
	}
	return ReadSamples(tmpPath)
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".wma":  true,
	".aiff": true,
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}
