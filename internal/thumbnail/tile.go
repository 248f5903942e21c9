package thumbnail

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var ErrTileCount = errors.New("number of images must be a non-zero perfect square")

// Tile arranges images in a square grid. Each image is centre-cropped to its
// cell; the canvas side is the smaller of the largest width and the largest
// height.
func Tile(images []image.Image) (image.Image, error) {
	root := int(math.Sqrt(float64(len(images))) + 0.5)
	if len(images) == 0 || root*root != len(images) {
		return nil, ErrTileCount
	}

	maxWidth, maxHeight := 0, 0
	for _, img := range images {
		maxWidth = max(maxWidth, img.Bounds().Dx())
		maxHeight = max(maxHeight, img.Bounds().Dy())
	}
	side := min(maxWidth, maxHeight)
	cell := side / root

	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i, img := range images {
		x, y := i%root, i/root
		fitted := ScaleAndCrop(img, cell, cell, CropOptions{Mode: CropCenter, Upscale: true})
		at := image.Rect(x*cell, y*cell, (x+1)*cell, (y+1)*cell)
		draw.Draw(canvas, at, fitted, fitted.Bounds().Min, draw.Src)
	}
	return canvas, nil
}
