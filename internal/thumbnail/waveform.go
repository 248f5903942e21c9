package thumbnail

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// waveform canvas, 16:9
const (
	waveformWidth  = 1280
	waveformHeight = 720
)

type WaveformOptions struct {
	// colormap name: "cool" (default) or "BuPu"
	Colormap string
	// slice of the colormap used for the background, 0..1
	VMin, VMax float64
	// line colour: matplotlib single letters (w, k, r, g, b, c, m, y) or #rrggbb
	Color string
	// plot at most this many samples from the middle of the signal
	MaxPoints int
}

// colormap anchors, evenly spaced over 0..1
var colormaps = map[string][]color.RGBA{
	"cool": {
		{0x00, 0xff, 0xff, 0xff},
		{0xff, 0x00, 0xff, 0xff},
	},
	"BuPu": {
		{0xf7, 0xfc, 0xfd, 0xff},
		{0xe0, 0xec, 0xf4, 0xff},
		{0xbf, 0xd3, 0xe6, 0xff},
		{0x9e, 0xbc, 0xda, 0xff},
		{0x8c, 0x96, 0xc6, 0xff},
		{0x8c, 0x6b, 0xb1, 0xff},
		{0x88, 0x41, 0x9d, 0xff},
		{0x81, 0x0f, 0x7c, 0xff},
		{0x4d, 0x00, 0x4b, 0xff},
	},
}

var namedColors = map[string]color.RGBA{
	"w": {0xff, 0xff, 0xff, 0xff},
	"k": {0x00, 0x00, 0x00, 0xff},
	"r": {0xff, 0x00, 0x00, 0xff},
	"g": {0x00, 0x80, 0x00, 0xff},
	"b": {0x00, 0x00, 0xff, 0xff},
	"c": {0x00, 0xbf, 0xbf, 0xff},
	"m": {0xbf, 0x00, 0xbf, 0xff},
	"y": {0xbf, 0xbf, 0x00, 0xff},
}

func (o WaveformOptions) withDefaults() WaveformOptions {
	if o.Colormap == "" {
		o.Colormap = "cool"
	}
	if o.VMax == 0 {
		o.VMax = 1
	}
	if o.Color == "" {
		o.Color = "w"
	}
	return o
}

// sampleColormap interpolates the named colormap at t in 0..1.
func sampleColormap(name string, t float64) (color.RGBA, error) {
	anchors, ok := colormaps[name]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown colormap %q", name)
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(anchors)-1)
	i := int(pos)
	if i >= len(anchors)-1 {
		return anchors[len(anchors)-1], nil
	}
	frac := pos - float64(i)
	a, b := anchors[i], anchors[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac))
	}
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 0xff}, nil
}

// ParseColor accepts matplotlib single-letter colours and #rrggbb.
func ParseColor(s string) (color.RGBA, error) {
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 || hex == s {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

// RenderWaveform draws samples over a vertical gradient taken from the
// 0.6..0.7 band of the truncated colormap.
func RenderWaveform(samples []int, opts WaveformOptions) (*image.RGBA, error) {
	opts = opts.withDefaults()
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples to draw")
	}
	line, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}
	span := opts.VMax - opts.VMin
	top, err := sampleColormap(opts.Colormap, opts.VMin+0.6*span)
	if err != nil {
		return nil, err
	}
	bottom, err := sampleColormap(opts.Colormap, opts.VMin+0.7*span)
	if err != nil {
		return nil, err
	}

	if opts.MaxPoints > 0 && opts.MaxPoints < len(samples) {
		start := (len(samples) - opts.MaxPoints) / 2
		samples = samples[start : start+opts.MaxPoints]
	}

	img := image.NewRGBA(image.Rect(0, 0, waveformWidth, waveformHeight))
	for y := 0; y < waveformHeight; y++ {
		t := float64(y) / float64(waveformHeight-1)
		c := color.RGBA{
			uint8(math.Round(float64(top.R) + (float64(bottom.R)-float64(top.R))*t)),
			uint8(math.Round(float64(top.G) + (float64(bottom.G)-float64(top.G))*t)),
			uint8(math.Round(float64(top.B) + (float64(bottom.B)-float64(top.B))*t)),
			0xff,
		}
		for x := 0; x < waveformWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	peak := 1
	for _, v := range samples {
		peak = max(peak, abs(v))
	}
	mid := float64(waveformHeight-1) / 2

	// one column per pixel, spanning the min..max of its samples
	per := float64(len(samples)) / float64(waveformWidth)
	prevY := -1
	for x := 0; x < waveformWidth; x++ {
		from := int(float64(x) * per)
		to := max(from+1, int(float64(x+1)*per))
		if from >= len(samples) {
			break
		}
		to = min(to, len(samples))
		lo, hi := samples[from], samples[from]
		for _, v := range samples[from:to] {
			lo, hi = min(lo, v), max(hi, v)
		}
		y0 := int(math.Round(mid - float64(hi)/float64(peak)*mid))
		y1 := int(math.Round(mid - float64(lo)/float64(peak)*mid))
		// join with the previous column so sparse signals stay continuous
		if prevY >= 0 {
			y0, y1 = min(y0, prevY), max(y1, prevY)
		}
		for y := y0; y <= y1; y++ {
			img.SetRGBA(x, y, line)
		}
		prevY = int(math.Round(mid - float64(samples[to-1])/float64(peak)*mid))
	}
	return img, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
