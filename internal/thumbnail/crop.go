package thumbnail

import (
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"

	"golang.org/x/image/draw"
)

type CropMode int

const (
	// fit inside the box, no cropping
	CropNone CropMode = iota
	// fill the box, cropping around the focal point
	CropCenter
	// fill the box, trimming the edges with the least detail
	CropSmart
	// fill the box in one dimension only, no cropping
	CropScale
)

type CropOptions struct {
	Mode CropMode
	// allow growing images smaller than the box
	Upscale bool
	// percentage to zoom into the scaled image before cropping
	Zoom int
	// focal point in percent from the top-left; zero value means centre
	Target *FocalPoint
}

type FocalPoint struct {
	X, Y int
}

var focalRegex = regexp.MustCompile(`^(\d+)?,(\d+)?$`)

// ParseFocalPoint reads "x,y" percentages; a missing value means 50.
func ParseFocalPoint(s string) (*FocalPoint, error) {
	m := focalRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid focal point %q: expected \"x,y\" percentages", s)
	}
	fp := &FocalPoint{X: 50, Y: 50}
	if m[1] != "" {
		fp.X, _ = strconv.Atoi(m[1])
	}
	if m[2] != "" {
		fp.Y, _ = strconv.Atoi(m[2])
	}
	return fp, nil
}

// ScaleAndCrop resizes src towards width x height. A zero width or height
// scales against the other dimension only.
func ScaleAndCrop(src image.Image, width, height int, opts CropOptions) image.Image {
	bounds := src.Bounds()
	sourceX, sourceY := float64(bounds.Dx()), float64(bounds.Dy())
	if sourceX == 0 || sourceY == 0 {
		return src
	}
	targetX, targetY := width, height
	crop := opts.Mode != CropNone

	var scale float64
	if crop || targetX == 0 || targetY == 0 {
		scale = math.Max(float64(targetX)/sourceX, float64(targetY)/sourceY)
	} else {
		scale = math.Min(float64(targetX)/sourceX, float64(targetY)/sourceY)
	}

	if targetX == 0 {
		targetX = int(math.Round(sourceX * scale))
	} else if targetY == 0 {
		targetY = int(math.Round(sourceY * scale))
	}

	if opts.Zoom != 0 {
		if !crop {
			targetX = int(math.Round(sourceX * scale))
			targetY = int(math.Round(sourceY * scale))
			crop = true
		}
		scale *= float64(100+opts.Zoom) / 100
	}

	img := src
	if scale < 1 || (scale > 1 && opts.Upscale) {
		img = resize(src, int(math.Round(sourceX*scale)), int(math.Round(sourceY*scale)))
	}

	if !crop || opts.Mode == CropScale {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	diffX := w - min(w, targetX)
	diffY := h - min(h, targetY)
	if diffX == 0 && diffY == 0 {
		return img
	}

	var box image.Rectangle
	if opts.Mode == CropSmart {
		box = smartBox(img, diffX, diffY)
	} else {
		box = focalBox(w, h, targetX, targetY, opts.Target)
	}
	return cropImage(img, box.Add(b.Min))
}

// focalBox centres the target box on the focal point, kept inside the image.
func focalBox(w, h, targetX, targetY int, target *FocalPoint) image.Rectangle {
	fp := FocalPoint{X: 50, Y: 50}
	if target != nil {
		fp = *target
	}
	focalX := w * fp.X / 100
	focalY := h * fp.Y / 100
	x0 := max(0, min(w-targetX, focalX-targetX/2))
	y0 := max(0, min(h-targetY, focalY-targetY/2))
	return image.Rect(x0, y0, min(w, x0+targetX), min(h, y0+targetY))
}

// smartBox repeatedly trims a slice from whichever edge carries less
// entropy until the excess is gone.
func smartBox(img image.Image, diffX, diffY int) image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	left, top, right, bottom := 0, 0, w, h

	for diffX > 0 {
		slice := min(diffX, max(diffX/5, 10))
		start := subImage(img, image.Rect(left, 0, left+slice, h))
		end := subImage(img, image.Rect(right-slice, 0, right, h))
		add, remove := compareEntropy(start, end, slice, diffX)
		left += add
		right -= remove
		diffX -= add + remove
	}
	for diffY > 0 {
		slice := min(diffY, max(diffY/5, 10))
		start := subImage(img, image.Rect(0, top, w, top+slice))
		end := subImage(img, image.Rect(0, bottom-slice, w, bottom))
		add, remove := compareEntropy(start, end, slice, diffY)
		top += add
		bottom -= remove
		diffY -= add + remove
	}
	return image.Rect(left, top, right, bottom)
}

// compareEntropy returns how much to trim from the start and from the end.
func compareEntropy(start, end image.Image, slice, difference int) (int, int) {
	startEntropy := Entropy(start)
	endEntropy := Entropy(end)
	if endEntropy != 0 && math.Abs(startEntropy/endEntropy-1) < 0.01 {
		// less than 1% apart: trim both sides
		if difference >= slice*2 {
			return slice, slice
		}
		half := slice / 2
		return half, slice - half
	}
	if startEntropy > endEntropy {
		return 0, slice
	}
	return slice, 0
}

// Entropy is the Shannon entropy of the per-channel RGB histogram.
func Entropy(img image.Image) float64 {
	var hist [3 * 256]int
	total := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			hist[r>>8]++
			hist[256+(g>>8)]++
			hist[512+(bl>>8)]++
			total += 3
		}
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func resize(src image.Image, width, height int) image.Image {
	width, height = max(width, 1), max(height, 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	return cropImage(img, r.Add(img.Bounds().Min))
}

// cropImage copies r out of img into a new image anchored at the origin.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
