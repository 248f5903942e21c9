package caption

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrUnsupportedUnit = errors.New("layout unit cannot be converted to a percentage")

// WebVTT encoder. VideoWidth and VideoHeight give the canvas that pixel
// lengths are measured against.
type WebVTTWriter struct {
	VideoWidth  float64
	VideoHeight float64
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Write renders the first language of the set.
func (w WebVTTWriter) Write(set *Set) (string, error) {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	langs := set.Languages()
	if len(langs) == 0 {
		return sb.String(), nil
	}
	lang := langs[0]
	trackLayout := set.Layout(lang)

	index := 0
	for _, c := range set.Captions(lang) {
		if c.IsBlank() {
			continue
		}
		layout := c.Layout
		if layout.IsZero() {
			layout = trackLayout
		}
		settings, err := w.cueSettings(layout)
		if err != nil {
			return "", fmt.Errorf("cue at %s: %w", formatVTTTime(c.Start), err)
		}

		index++
		sb.WriteString(fmt.Sprintf("%d\n", index))
		sb.WriteString(fmt.Sprintf("%s --> %s", formatVTTTime(c.Start), formatVTTTime(c.End)))
		if settings != "" {
			sb.WriteString(" ")
			sb.WriteString(settings)
		}
		sb.WriteString("\n")
		sb.WriteString(renderNodes(c.Nodes))
		sb.WriteString("\n\n")
	}

	return sb.String(), nil
}

// renderNodes writes one payload line per break. A blank line would end
// the cue, so empty and whitespace-only lines are dropped.
func renderNodes(nodes []Node) string {
	var lines []string
	var line strings.Builder
	flush := func() {
		if strings.TrimSpace(line.String()) != "" {
			lines = append(lines, line.String())
		}
		line.Reset()
	}

	for _, n := range nodes {
		switch n.Kind {
		case NodeText:
			line.WriteString(vttEscaper.Replace(n.Text))
		case NodeBreak:
			flush()
		case NodeStyle:
			tags := styleTags(n.Style)
			if n.Open {
				for _, tag := range tags {
					line.WriteString("<" + tag + ">")
				}
			} else {
				for i := len(tags) - 1; i >= 0; i-- {
					line.WriteString("</" + tags[i] + ">")
				}
			}
		}
	}
	flush()
	return strings.Join(lines, "\n")
}

func styleTags(style Style) []string {
	var tags []string
	if style["font-style"] == "italic" {
		tags = append(tags, "i")
	}
	if style["font-weight"] == "bold" {
		tags = append(tags, "b")
	}
	if style["text-decoration"] == "underline" {
		tags = append(tags, "u")
	}
	return tags
}

func (w WebVTTWriter) cueSettings(layout *Layout) (string, error) {
	if layout.IsZero() {
		return "", nil
	}
	var parts []string
	if layout.Origin != nil {
		if layout.Origin.X.IsSet() {
			x, err := w.percent(layout.Origin.X, w.VideoWidth)
			if err != nil {
				return "", err
			}
			parts = append(parts, "position:"+x)
		}
		if layout.Origin.Y.IsSet() {
			y, err := w.percent(layout.Origin.Y, w.VideoHeight)
			if err != nil {
				return "", err
			}
			parts = append(parts, "line:"+y)
		}
	}
	if layout.Extent != nil && layout.Extent.X.IsSet() {
		size, err := w.percent(layout.Extent.X, w.VideoWidth)
		if err != nil {
			return "", err
		}
		parts = append(parts, "size:"+size)
	}
	if layout.Align != "" {
		parts = append(parts, "align:"+layout.Align)
	}
	return strings.Join(parts, " "), nil
}

func (w WebVTTWriter) percent(l Length, canvas float64) (string, error) {
	var v float64
	switch l.Unit {
	case UnitPercent:
		v = l.Value
	case UnitPixel:
		if canvas <= 0 {
			return "", fmt.Errorf("%w: %s without a canvas size", ErrUnsupportedUnit, l)
		}
		v = l.Value / canvas * 100
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedUnit, l)
	}
	v = math.Max(0, math.Min(100, v))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + "%", nil
}
