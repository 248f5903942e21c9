package caption

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

var (
	ttmlCloseRegex  = regexp.MustCompile(`</(?:[\w-]+:)?tt\s*>`)
	ttmlClockRegex  = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})(?:\.(\d+)|:(\d{2,})(?:\.\d+)?)?$`)
	ttmlOffsetRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)(h|ms|m|s|f|t)$`)
	ttmlSpaceRegex  = regexp.MustCompile(`[ \t\r\n]+`)
)

// tts:* attributes kept as style properties
var ttmlStyleProperties = map[string]string{
	"color":           "color",
	"backgroundColor": "background-color",
	"fontFamily":      "font-family",
	"fontSize":        "font-size",
	"fontStyle":       "font-style",
	"fontWeight":      "font-weight",
	"textDecoration":  "text-decoration",
	"textAlign":       "text-align",
}

// TTML/DFXP decoder; languages come from xml:lang, inherited down the tree
type DFXPReader struct{}

// Detect looks for the closing tt element.
func (DFXPReader) Detect(text string) bool {
	return ttmlCloseRegex.MatchString(text)
}

type ttmlFrame struct {
	name   string
	lang   string
	region string
}

type ttmlParagraph struct {
	caption *Caption
	lang    string
	// nil entries are spans without presentation styles
	spans []Style
}

type dfxpParser struct {
	set       *Set
	frameRate float64
	tickRate  float64
	styles    map[string]Style
	regions   map[string]*Layout

	stack  []ttmlFrame
	region *Layout
	para   *ttmlParagraph
}

func (DFXPReader) Read(text string) (*Set, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}

	p := &dfxpParser{
		set:       NewSet(),
		frameRate: 30,
		tickRate:  1,
		styles:    make(map[string]Style),
		regions:   make(map[string]*Layout),
	}

	d := xml.NewDecoder(strings.NewReader(stripBOM(text)))
	d.Entity = xml.HTMLEntity
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing TTML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := p.end(t); err != nil {
				return nil, err
			}
		case xml.CharData:
			if p.para != nil {
				p.text(string(t))
			}
		}
	}

	return p.set, nil
}

func (p *dfxpParser) start(el xml.StartElement) error {
	frame := ttmlFrame{name: el.Name.Local, lang: Unknown}
	if parent := p.parent(); parent != nil {
		frame.lang = parent.lang
		frame.region = parent.region
	}
	for _, attr := range el.Attr {
		switch {
		case attr.Name.Local == "lang" && (attr.Name.Space == xmlNamespace || attr.Name.Space == "xml"):
			frame.lang = NormalizeLanguage(attr.Value)
		case attr.Name.Local == "region":
			frame.region = attr.Value
		}
	}
	p.stack = append(p.stack, frame)

	switch el.Name.Local {
	case "tt":
		p.readTimingParameters(el)
	case "style":
		p.defineStyle(el)
	case "region":
		p.defineRegion(el)
	case "p":
		return p.startParagraph(el, frame)
	case "br":
		if p.para != nil {
			p.para.caption.Nodes = append(p.para.caption.Nodes, BreakNode())
		}
	case "span":
		if p.para != nil {
			style := p.presentationStyle(el)
			p.para.spans = append(p.para.spans, style)
			if style != nil {
				p.para.caption.Nodes = append(p.para.caption.Nodes, StyleNode(style, true))
			}
		}
	}
	return nil
}

func (p *dfxpParser) end(el xml.EndElement) error {
	if len(p.stack) > 0 {
		p.stack = p.stack[:len(p.stack)-1]
	}

	switch el.Name.Local {
	case "region":
		p.region = nil
	case "span":
		if p.para != nil && len(p.para.spans) > 0 {
			style := p.para.spans[len(p.para.spans)-1]
			p.para.spans = p.para.spans[:len(p.para.spans)-1]
			if style != nil {
				p.para.caption.Nodes = append(p.para.caption.Nodes, StyleNode(style, false))
			}
		}
	case "p":
		p.endParagraph()
	}
	return nil
}

func (p *dfxpParser) parent() *ttmlFrame {
	if len(p.stack) == 0 {
		return nil
	}
	return &p.stack[len(p.stack)-1]
}

func (p *dfxpParser) readTimingParameters(el xml.StartElement) {
	for _, attr := range el.Attr {
		v, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
		if err != nil || v <= 0 {
			continue
		}
		switch attr.Name.Local {
		case "frameRate":
			p.frameRate = v
		case "tickRate":
			p.tickRate = v
		}
	}
}

// defineStyle records a head style, or folds a style nested inside a region
// into that region's layout.
func (p *dfxpParser) defineStyle(el xml.StartElement) {
	if p.region != nil {
		applyLayoutAttrs(p.region, el.Attr)
		return
	}
	if p.para != nil {
		return
	}
	id := attrValue(el.Attr, "id")
	if id == "" {
		return
	}
	style := styleAttrs(el.Attr)
	// a style may build on other styles
	for _, ref := range strings.Fields(attrValue(el.Attr, "style")) {
		for k, v := range p.styles[ref] {
			if _, ok := style[k]; !ok {
				style[k] = v
			}
		}
	}
	p.styles[id] = style
	p.set.SetStyle(id, style)
}

func (p *dfxpParser) defineRegion(el xml.StartElement) {
	layout := &Layout{}
	applyLayoutAttrs(layout, el.Attr)
	if id := attrValue(el.Attr, "id"); id != "" {
		p.regions[id] = layout
	}
	p.region = layout
}

func (p *dfxpParser) startParagraph(el xml.StartElement, frame ttmlFrame) error {
	var (
		begin, end, dur          time.Duration
		hasBegin, hasEnd, hasDur bool
		err                      error
	)
	for _, attr := range el.Attr {
		switch attr.Name.Local {
		case "begin":
			begin, err = p.parseTime(attr.Value)
			hasBegin = true
		case "end":
			end, err = p.parseTime(attr.Value)
			hasEnd = true
		case "dur":
			dur, err = p.parseTime(attr.Value)
			hasDur = true
		}
		if err != nil {
			return fmt.Errorf("invalid %s on p: %w", attr.Name.Local, err)
		}
	}
	if !hasBegin {
		return errors.New("p element without a begin time")
	}
	switch {
	case hasEnd:
	case hasDur:
		end = begin + dur
	default:
		end = begin + DefaultDuration
	}

	c := &Caption{Start: begin, End: end}
	if region, ok := p.regions[frame.region]; ok {
		c.Layout = region.Clone()
	}
	inline := &Layout{}
	if applyLayoutAttrs(inline, el.Attr) {
		c.Layout = mergeLayout(c.Layout, inline)
	}
	if align := p.resolveStyle(el)["text-align"]; align != "" {
		if c.Layout == nil {
			c.Layout = &Layout{}
		}
		if c.Layout.Align == "" {
			c.Layout.Align = align
		}
	}
	if refs := strings.Fields(attrValue(el.Attr, "style")); len(refs) > 0 {
		c.Classes = refs
	}

	p.para = &ttmlParagraph{caption: c, lang: frame.lang}
	if style := p.presentationStyle(el); style != nil {
		p.para.spans = append(p.para.spans, style)
		c.Nodes = append(c.Nodes, StyleNode(style, true))
	}
	return nil
}

func (p *dfxpParser) text(s string) {
	s = ttmlSpaceRegex.ReplaceAllString(s, " ")
	if s == "" {
		return
	}
	p.para.caption.Nodes = append(p.para.caption.Nodes, TextNode(s))
}

func (p *dfxpParser) endParagraph() {
	if p.para == nil {
		return
	}
	para := p.para
	p.para = nil

	c := para.caption
	for i := len(para.spans) - 1; i >= 0; i-- {
		if para.spans[i] != nil {
			c.Nodes = append(c.Nodes, StyleNode(para.spans[i], false))
		}
	}
	c.Nodes = trimNodes(c.Nodes)
	if c.IsBlank() {
		return
	}
	p.set.AddCaption(para.lang, c)
}

// resolveStyle merges the referenced styles of an element with its inline
// tts attributes, inline values winning.
func (p *dfxpParser) resolveStyle(el xml.StartElement) Style {
	resolved := Style{}
	for _, ref := range strings.Fields(attrValue(el.Attr, "style")) {
		for k, v := range p.styles[ref] {
			resolved[k] = v
		}
	}
	for k, v := range styleAttrs(el.Attr) {
		resolved[k] = v
	}
	return resolved
}

// presentationStyle keeps only the resolved properties a cue can render.
// It returns nil when nothing is left.
func (p *dfxpParser) presentationStyle(el xml.StartElement) Style {
	resolved := p.resolveStyle(el)
	style := Style{}
	for _, key := range []string{"font-style", "font-weight", "text-decoration"} {
		if v, ok := resolved[key]; ok {
			style[key] = v
		}
	}
	if len(style) == 0 {
		return nil
	}
	return style
}

// parseTime reads TTML clock times ("00:00:01.500", "00:00:01:15") and
// offset times ("1.5s", "200ms", "10f", "2h").
func (p *dfxpParser) parseTime(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	if m := ttmlClockRegex.FindStringSubmatch(value); m != nil {
		d, err := parseClock(m[1], m[2], m[3], m[4])
		if err != nil {
			return 0, err
		}
		if m[5] != "" {
			frames, err := strconv.Atoi(m[5])
			if err != nil {
				return 0, err
			}
			d += time.Duration(float64(frames) / p.frameRate * float64(time.Second))
		}
		return d.Round(time.Millisecond), nil
	}

	if m := ttmlOffsetRegex.FindStringSubmatch(value); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		var seconds float64
		switch m[2] {
		case "h":
			seconds = v * 3600
		case "m":
			seconds = v * 60
		case "s":
			seconds = v
		case "ms":
			seconds = v / 1000
		case "f":
			seconds = v / p.frameRate
		case "t":
			seconds = v / p.tickRate
		}
		return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond), nil
	}

	return 0, fmt.Errorf("unrecognized time expression %q", value)
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, attr := range attrs {
		if attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}

func styleAttrs(attrs []xml.Attr) Style {
	style := Style{}
	for _, attr := range attrs {
		if key, ok := ttmlStyleProperties[attr.Name.Local]; ok {
			style[key] = strings.TrimSpace(attr.Value)
		}
	}
	return style
}

// applyLayoutAttrs copies origin, extent and textAlign into layout and
// reports whether any of them was present.
func applyLayoutAttrs(layout *Layout, attrs []xml.Attr) bool {
	found := false
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "origin":
			if pt, err := ParsePoint(attr.Value); err == nil {
				layout.Origin = &pt
				found = true
			}
		case "extent":
			if pt, err := ParsePoint(attr.Value); err == nil {
				layout.Extent = &pt
				found = true
			}
		case "textAlign":
			layout.Align = strings.TrimSpace(attr.Value)
			found = true
		}
	}
	return found
}

func mergeLayout(base, override *Layout) *Layout {
	if base == nil {
		return override
	}
	if override.Origin != nil {
		base.Origin = override.Origin
	}
	if override.Extent != nil {
		base.Extent = override.Extent
	}
	if override.Align != "" {
		base.Align = override.Align
	}
	return base
}
