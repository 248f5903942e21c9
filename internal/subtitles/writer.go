package subtitles

import (
	"fmt"

	"github.com/mgpai22/pressurecooker/internal/caption"
)

// layout percentages are computed against a 100 unit wide canvas with a
// 19:6 aspect ratio, whatever the real video size
const (
	canvasWidth  = 100
	canvasHeight = canvasWidth * 6 / 19.0
)

// renders single-language caption sets as WebVTT
type Writer struct {
	engine caption.WebVTTWriter
}

func NewWriter() *Writer {
	return &Writer{
		engine: caption.WebVTTWriter{VideoWidth: canvasWidth, VideoHeight: canvasHeight},
	}
}

// Render serializes set; engine failures are wrapped with ErrRender.
func (w *Writer) Render(set *caption.Set) (string, error) {
	out, err := w.engine.Write(set)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	return out, nil
}
