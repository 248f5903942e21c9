package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/pressurecooker/internal/ffmpeg"
	"github.com/mgpai22/pressurecooker/internal/logging"
)

var (
	ErrThumbnail    = errors.New("thumbnail generation failed")
	ErrCompression  = errors.New("video compression failed")
	ErrOutputExists = errors.New("output file already exists")
	ErrAudioFormat  = errors.New("invalid audio format")
)

// resolution class of a video, named after the channel presets it maps to
type Preset string

const (
	PresetHighRes Preset = "high_res_video"
	PresetLowRes  Preset = "low_res_video"
)

// videos at least this tall are high resolution
const highResMinHeight = 720

// thumbnail geometry: 400x225, letterboxed
const thumbnailScale = "scale=400:225:force_original_aspect_ratio=decrease,pad=400:225:(ow-iw)/2:(oh-ih)/2"

// video file information
type Info struct {
	Path      string
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	HasAudio  bool
}

// defines interface for video processing operations
type Processor interface {
	// extracts audio from video file
	ExtractAudio(
		ctx context.Context,
		videoPath, outputPath string,
		opts ExtractAudioOptions,
	) error

	// retrieves video file information
	GetInfo(ctx context.Context, videoPath string) (*Info, error)

	// picks the resolution preset, low res when probing fails
	GuessPreset(ctx context.Context, videoPath string) Preset

	// writes a PNG frame from the middle of the video
	ExtractThumbnail(ctx context.Context, videoPath, outputPath string, overwrite bool) error

	// re-encodes a video for low bandwidth delivery
	Compress(ctx context.Context, videoPath, outputPath string, opts CompressOptions) error
}

type ExtractAudioOptions struct {
	Format     string // wav, mp3, aac or flac
	SampleRate int    // Hz
	Channels   int
	Bitrate    string // lossy formats only, e.g. "128k"
}

// mono 16 kHz wav
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

// holds options for compression; MaxWidth wins over MaxHeight
type CompressOptions struct {
	MaxWidth  int
	MaxHeight int
	CRF       int
	Overwrite bool
}

func DefaultCompressOptions() CompressOptions {
	return CompressOptions{
		MaxHeight: 480,
		CRF:       32,
	}
}

// default implementation using ffmpeg
type DefaultProcessor struct {
	logger *logging.Logger
}

func NewProcessor(logger *logging.Logger) *DefaultProcessor {
	return &DefaultProcessor{
		logger: logging.OrNop(logger),
	}
}

// audio encoder per output format; lossy encoders honour Bitrate
var audioCodecs = map[string]struct {
	codec string
	lossy bool
}{
	"wav":  {"pcm_s16le", false},
	"flac": {"flac", false},
	"mp3":  {"libmp3lame", true},
	"aac":  {"aac", true},
}

// AudioFormats lists the formats ExtractAudio can write.
func AudioFormats() []string {
	return []string{"wav", "mp3", "aac", "flac"}
}

// extracts the audio track, replacing any existing output
func (p *DefaultProcessor) ExtractAudio(
	ctx context.Context,
	videoPath, outputPath string,
	opts ExtractAudioOptions,
) error {
	args, err := extractAudioArgs(opts)
	if err != nil {
		return err
	}
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.logger.Debugw("Extracting audio track", "video", videoPath, "args", args)
	stream := ffmpeg.Input(videoPath).
		Output(outputPath, args).
		OverWriteOutput()
	if err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}
	return nil
}

func extractAudioArgs(opts ExtractAudioOptions) (ffmpeg.KwArgs, error) {
	enc, ok := audioCodecs[opts.Format]
	if !ok {
		return nil, fmt.Errorf("%w %q: supported formats are %s",
			ErrAudioFormat, opts.Format, strings.Join(AudioFormats(), ", "))
	}
	kwargs := ffmpeg.KwArgs{
		"vn":     "",
		"ar":     opts.SampleRate,
		"ac":     opts.Channels,
		"acodec": enc.codec,
	}
	if enc.lossy && opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}
	return kwargs, nil
}

// retrieves video file information
func (p *DefaultProcessor) GetInfo(
	ctx context.Context,
	videoPath string,
) (*Info, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file not found: %s", videoPath)
	}

	report, err := ffmpegbin.Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	info, err := parseInfo(report)
	if err != nil {
		return nil, err
	}
	info.Path = videoPath
	return info, nil
}

func parseInfo(report []byte) (*Info, error) {
	if !gjson.ValidBytes(report) {
		return nil, fmt.Errorf("failed to parse ffprobe output")
	}
	doc := gjson.ParseBytes(report)

	info := &Info{
		Duration: time.Duration(doc.Get("format.duration").Float() * float64(time.Second)),
	}
	videoFound := false
	for _, stream := range doc.Get("streams").Array() {
		switch stream.Get("codec_type").String() {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			info.Width = int(stream.Get("width").Int())
			info.Height = int(stream.Get("height").Int())
			info.Codec = stream.Get("codec_name").String()
			info.FrameRate = parseFrameRate(stream.Get("r_frame_rate").String())
		case "audio":
			info.HasAudio = true
		}
	}
	if !videoFound {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// parseFrameRate reads ffprobe rationals like "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func (p *DefaultProcessor) GuessPreset(ctx context.Context, videoPath string) Preset {
	info, err := p.GetInfo(ctx, videoPath)
	if err != nil {
		p.logger.Warnw("Could not probe video resolution", "video", videoPath, "error", err)
		return PresetLowRes
	}
	preset := PresetForHeight(info.Height)
	p.logger.Debugw("Guessed video preset", "video", videoPath, "height", info.Height, "preset", preset)
	return preset
}

func PresetForHeight(height int) Preset {
	if height >= highResMinHeight {
		return PresetHighRes
	}
	return PresetLowRes
}

func (p *DefaultProcessor) ExtractThumbnail(
	ctx context.Context,
	videoPath, outputPath string,
	overwrite bool,
) error {
	if err := checkOutput(outputPath, overwrite); err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}
	info, err := p.GetInfo(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}

	midpoint := info.Duration.Seconds() / 2
	if err := ffmpegbin.Run(ctx, thumbnailStream(videoPath, outputPath, midpoint)); err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}
	return nil
}

func thumbnailStream(videoPath, outputPath string, midpoint float64) *ffmpeg.Stream {
	return ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": strconv.FormatFloat(midpoint, 'f', 3, 64)}).
		Output(outputPath, ffmpeg.KwArgs{
			"vf":      thumbnailScale,
			"vcodec":  "png",
			"vframes": 1,
			"q:v":     2,
		}).
		OverWriteOutput()
}

func (p *DefaultProcessor) Compress(
	ctx context.Context,
	videoPath, outputPath string,
	opts CompressOptions,
) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: video file not found: %s", ErrCompression, videoPath)
	}
	if err := checkOutput(outputPath, opts.Overwrite); err != nil {
		return fmt.Errorf("%w: %w", ErrCompression, err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.logger.Infow("Compressing video",
		"input", videoPath,
		"output", outputPath,
		"scale", scaleFilter(opts),
		"crf", crfOrDefault(opts.CRF),
	)
	if err := ffmpegbin.Run(ctx, compressStream(videoPath, outputPath, opts)); err != nil {
		// a half-written output is worse than none
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %w", ErrCompression, err)
	}
	return nil
}

func compressStream(videoPath, outputPath string, opts CompressOptions) *ffmpeg.Stream {
	return ffmpeg.Input(videoPath).
		Output(outputPath, ffmpeg.KwArgs{
			"profile:v": "baseline",
			"level":     "3.0",
			"b:a":       "32k",
			"ac":        1,
			"vf":        "scale=" + scaleFilter(opts),
			"crf":       crfOrDefault(opts.CRF),
			"preset":    "slow",
			"strict":    "-2",
		}).
		OverWriteOutput()
}

// scaleFilter keeps the aspect ratio and rounds the bounded side down to an
// even number, which libx264 requires.
func scaleFilter(opts CompressOptions) string {
	switch {
	case opts.MaxWidth > 0:
		return fmt.Sprintf("w=trunc(min(iw\\,%d)/2)*2:h=-2", opts.MaxWidth)
	case opts.MaxHeight > 0:
		return fmt.Sprintf("w=-2:h=trunc(min(ih\\,%d)/2)*2", opts.MaxHeight)
	default:
		return fmt.Sprintf("w=-2:h=trunc(min(ih\\,%d)/2)*2", DefaultCompressOptions().MaxHeight)
	}
}

func crfOrDefault(crf int) int {
	if crf <= 0 {
		return DefaultCompressOptions().CRF
	}
	return crf
}

func checkOutput(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	}
	return nil
}
