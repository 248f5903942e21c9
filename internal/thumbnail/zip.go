package thumbnail

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// images beyond this size are not worth decoding for a thumbnail
	maxZipImageSize = 32 << 20
	maxZipTiles     = 4
)

// FromZip tiles the largest images of an archive: four in a 2x2 grid, or
// the single largest when there are fewer.
func (g *Generator) FromZip(inputPath, outputPath string) error {
	r, err := zip.OpenReader(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	images, err := largestImages(r.File, maxZipTiles)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", inputPath)
	}
	if len(images) < maxZipTiles {
		images = images[:1]
	}

	tiled, err := Tile(images)
	if err != nil {
		return err
	}
	return savePNG(outputPath, ScaleAndCrop(tiled, Width, Height, CropOptions{Mode: CropCenter, Upscale: true}))
}

// largestImages decodes up to n image entries, biggest first. Entries that
// fail to decode are skipped.
func largestImages(files []*zip.File, n int) ([]image.Image, error) {
	candidates := make([]*zip.File, 0, len(files))
	for _, f := range files {
		if f.FileInfo().IsDir() || f.UncompressedSize64 == 0 || f.UncompressedSize64 > maxZipImageSize {
			continue
		}
		candidates = append(candidates, f)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UncompressedSize64 > candidates[j].UncompressedSize64
	})

	var images []image.Image
	for _, f := range candidates {
		if len(images) == n {
			break
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		if !isImage(mimetype.Detect(data)) {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

func isImage(m *mimetype.MIME) bool {
	return classify(m) == kindImage
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxZipImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s in archive: %w", f.Name, err)
	}
	return data, nil
}
