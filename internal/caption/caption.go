package caption

import (
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// language code given to cues whose format does not name a language
const Unknown = "unknown"

// end time assumed for a caption that never receives one
const DefaultDuration = 4 * time.Second

var ErrInvalidText = errors.New("caption text is not valid UTF-8")

// style attributes keyed by CSS-like property name
type Style map[string]string

func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type NodeKind int

const (
	NodeText NodeKind = iota
	NodeBreak
	NodeStyle
)

// one piece of caption content
type Node struct {
	Kind NodeKind
	Text string
	// style nodes come in open/close pairs carrying the same Style
	Open  bool
	Style Style
}

func TextNode(text string) Node {
	return Node{Kind: NodeText, Text: text}
}

func BreakNode() Node {
	return Node{Kind: NodeBreak}
}

func StyleNode(style Style, open bool) Node {
	return Node{Kind: NodeStyle, Open: open, Style: style}
}

// single timed cue
type Caption struct {
	Start   time.Duration
	End     time.Duration
	Nodes   []Node
	Classes []string
	Layout  *Layout
}

// Text returns the caption content without markup, one line per break.
func (c *Caption) Text() string {
	var sb strings.Builder
	for _, n := range c.Nodes {
		switch n.Kind {
		case NodeText:
			sb.WriteString(n.Text)
		case NodeBreak:
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// IsBlank reports whether the caption has nothing visible in it.
func (c *Caption) IsBlank() bool {
	return strings.TrimSpace(c.Text()) == ""
}

func (c *Caption) clone() *Caption {
	out := *c
	out.Nodes = make([]Node, len(c.Nodes))
	for i, n := range c.Nodes {
		n.Style = n.Style.Clone()
		out.Nodes[i] = n
	}
	out.Classes = append([]string(nil), c.Classes...)
	out.Layout = c.Layout.Clone()
	return &out
}

// decoded caption document, possibly holding several languages
type Set struct {
	captions map[string][]*Caption
	styles   map[string]Style
	layouts  map[string]*Layout
}

func NewSet() *Set {
	return &Set{
		captions: make(map[string][]*Caption),
		styles:   make(map[string]Style),
		layouts:  make(map[string]*Layout),
	}
}

// Languages returns the language codes that have at least one caption,
// sorted so callers see a stable order.
func (s *Set) Languages() []string {
	langs := make([]string, 0, len(s.captions))
	for lang, caps := range s.captions {
		if len(caps) > 0 {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

func (s *Set) Captions(lang string) []*Caption {
	return s.captions[lang]
}

func (s *Set) SetCaptions(lang string, caps []*Caption) {
	if len(caps) == 0 {
		delete(s.captions, lang)
		return
	}
	s.captions[lang] = caps
}

func (s *Set) AddCaption(lang string, c *Caption) {
	s.captions[lang] = append(s.captions[lang], c)
}

// Styles returns a copy of the named style table.
func (s *Set) Styles() map[string]Style {
	out := make(map[string]Style, len(s.styles))
	for name, st := range s.styles {
		out[name] = st.Clone()
	}
	return out
}

func (s *Set) SetStyle(name string, style Style) {
	s.styles[name] = style
}

func (s *Set) Layout(lang string) *Layout {
	return s.layouts[lang]
}

func (s *Set) SetLayout(lang string, layout *Layout) {
	if layout == nil {
		delete(s.layouts, lang)
		return
	}
	s.layouts[lang] = layout
}

// IsEmpty is true when no language carries a caption.
func (s *Set) IsEmpty() bool {
	for _, caps := range s.captions {
		if len(caps) > 0 {
			return false
		}
	}
	return true
}

// RenameLanguage moves every caption and the layout of from onto to.
// Captions already present under to are kept and the result is ordered by
// start time.
func (s *Set) RenameLanguage(from, to string) {
	if from == to {
		return
	}
	moved, ok := s.captions[from]
	if !ok {
		return
	}
	delete(s.captions, from)
	merged := append(s.captions[to], moved...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	s.SetCaptions(to, merged)

	if layout, ok := s.layouts[from]; ok {
		delete(s.layouts, from)
		if _, exists := s.layouts[to]; !exists {
			s.layouts[to] = layout
		}
	}
}

// Subset builds a new single-language set with copies of the captions,
// styles and layout of lang.
func (s *Set) Subset(lang string) *Set {
	out := NewSet()
	for _, c := range s.captions[lang] {
		out.AddCaption(lang, c.clone())
	}
	out.styles = s.Styles()
	if layout := s.layouts[lang]; layout != nil {
		out.layouts[lang] = layout.Clone()
	}
	return out
}

// NormalizeLanguage canonicalises a BCP 47 code ("EN-us" -> "en-US").
// Empty input and the Unknown sentinel map to Unknown; codes that do not
// parse are returned trimmed but otherwise unchanged.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, Unknown) {
		return Unknown
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func stripBOM(text string) string {
	return strings.TrimPrefix(text, "\ufeff")
}
