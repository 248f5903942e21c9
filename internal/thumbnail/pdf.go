package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrNoRasterizer = errors.New("pdftoppm is not configured")

// rasterisation resolution; high enough that the crop stays sharp
const pdfDPI = 150

type commandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return nil
}

// FromPDF rasterises one page (1-based) with pdftoppm and crops it to 16:9.
func (g *Generator) FromPDF(ctx context.Context, inputPath, outputPath string, page int) error {
	if g.PdftoppmPath == "" {
		return ErrNoRasterizer
	}
	if page < 1 {
		page = 1
	}

	tmpDir, err := os.MkdirTemp("", "pressurecooker-pdf-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	if err := g.run(ctx, g.PdftoppmPath,
		"-png",
		"-r", strconv.Itoa(pdfDPI),
		"-f", n,
		"-l", n,
		"-singlefile",
		inputPath,
		prefix,
	); err != nil {
		return err
	}

	img, err := loadImage(prefix + ".png")
	if err != nil {
		return err
	}
	return savePNG(outputPath, ScaleAndCrop(img, Width, Height, CropOptions{Mode: CropCenter, Upscale: true}))
}
