package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/mgpai22/pressurecooker/internal/audio"
	"github.com/mgpai22/pressurecooker/internal/logging"
)

// thumbnails are 16:9
const (
	Width  = 400
	Height = 225
)

var (
	ErrThumbnail   = errors.New("thumbnail generation failed")
	ErrUnsupported = errors.New("no thumbnail source for file type")
)

// the slice of the video package thumbnails need
type VideoThumbnailer interface {
	ExtractThumbnail(ctx context.Context, videoPath, outputPath string, overwrite bool) error
}

// loads mono PCM samples from a media file
type SampleLoader func(ctx context.Context, path string) (*audio.Samples, error)

type Generator struct {
	// pdftoppm executable; PDFs fail when empty
	PdftoppmPath string
	Video        VideoThumbnailer
	LoadSamples  SampleLoader
	Waveform     WaveformOptions
	// runs external commands; replaced in tests
	run    commandRunner
	logger *logging.Logger
}

func NewGenerator(logger *logging.Logger) *Generator {
	return &Generator{
		LoadSamples: func(ctx context.Context, path string) (*audio.Samples, error) {
			return audio.LoadSamples(ctx, path, audio.DefaultSampleRate)
		},
		run:    execRunner,
		logger: logging.OrNop(logger),
	}
}

// Generate writes a PNG thumbnail for inputPath, choosing the method from
// the sniffed content type: images are cropped, PDFs rasterised, zip
// archives tiled, audio drawn as a waveform and videos sampled mid-way.
func (g *Generator) Generate(ctx context.Context, inputPath, outputPath string) error {
	mtype, err := mimetype.DetectFile(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}
	g.logger.Debugw("Generating thumbnail", "input", inputPath, "mime", mtype.String())

	switch classify(mtype) {
	case kindImage:
		err = g.fromImage(inputPath, outputPath)
	case kindPDF:
		err = g.FromPDF(ctx, inputPath, outputPath, 1)
	case kindZip:
		err = g.FromZip(inputPath, outputPath)
	case kindAudio:
		err = g.FromAudio(ctx, inputPath, outputPath)
	case kindVideo:
		if g.Video == nil {
			return fmt.Errorf("%w: no video processor configured", ErrThumbnail)
		}
		err = g.Video.ExtractThumbnail(ctx, inputPath, outputPath, true)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, mtype.String())
	}
	if err != nil {
		if errors.Is(err, ErrThumbnail) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrThumbnail, err)
	}
	g.logger.Infow("Created thumbnail", "input", inputPath, "output", outputPath)
	return nil
}

type sourceKind int

const (
	kindUnknown sourceKind = iota
	kindImage
	kindPDF
	kindZip
	kindAudio
	kindVideo
)

func classify(m *mimetype.MIME) sourceKind {
	for ; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/pdf"):
			return kindPDF
		case m.Is("application/zip"):
			return kindZip
		}
		switch top, _, _ := strings.Cut(m.String(), "/"); top {
		case "image":
			return kindImage
		case "audio":
			return kindAudio
		case "video":
			return kindVideo
		}
	}
	return kindUnknown
}

func (g *Generator) fromImage(inputPath, outputPath string) error {
	img, err := loadImage(inputPath)
	if err != nil {
		return err
	}
	return savePNG(outputPath, ScaleAndCrop(img, Width, Height, CropOptions{Mode: CropCenter, Upscale: true}))
}

// FromAudio draws the waveform of any file ffmpeg can decode.
func (g *Generator) FromAudio(ctx context.Context, inputPath, outputPath string) error {
	samples, err := g.LoadSamples(ctx, inputPath)
	if err != nil {
		return err
	}
	img, err := RenderWaveform(samples.Data, g.Waveform)
	if err != nil {
		return err
	}
	return savePNG(outputPath, img)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return f.Close()
}
