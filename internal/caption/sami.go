package caption

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	cssRuleRegex       = regexp.MustCompile(`([.#]?[\w-]+)\s*\{([^}]*)\}`)
	samiSpaceRegex     = regexp.MustCompile(`[ \t\r\n]+`)
	leadingDigitsRegex = regexp.MustCompile(`^\s*(\d+)`)
)

// SAMI decoder; languages come from the lang property of the CSS classes
// declared in the STYLE block
type SAMIReader struct{}

// Detect looks for the SAMI root element.
func (SAMIReader) Detect(text string) bool {
	return strings.Contains(strings.ToLower(text), "<sami")
}

type samiParagraph struct {
	lang   string
	class  string
	start  time.Duration
	markup *markupParser
}

type samiCue struct {
	lang    string
	caption *Caption
}

type samiParser struct {
	set        *Set
	classLangs map[string]string
	pending    []samiCue
	para       *samiParagraph
	syncStart  time.Duration
	seenSync   bool
}

func (SAMIReader) Read(text string) (*Set, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}

	p := &samiParser{set: NewSet(), classLangs: make(map[string]string)}
	z := html.NewTokenizer(strings.NewReader(stripBOM(text)))
	inStyle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("error tokenizing SAMI: %w", err)
			}
			p.endParagraph()
			p.closePending(-1)
			return p.set, nil

		case html.TextToken:
			if inStyle {
				p.parseStyles(string(z.Text()))
				continue
			}
			p.text(string(z.Text()))

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "style":
				inStyle = tt == html.StartTagToken
			case "sync":
				start, err := samiSyncStart(tok)
				if err != nil {
					return nil, err
				}
				p.sync(start)
			case "p":
				p.startParagraph(tok)
			default:
				if p.para != nil {
					p.para.markup.startTag(tok)
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style":
				inStyle = false
			case "p", "body":
				p.endParagraph()
			default:
				if p.para != nil {
					p.para.markup.endTag(string(name))
				}
			}
		}
	}
}

// parseStyles reads CSS rules; a lang property on a class selector assigns
// that language to every paragraph using the class.
func (p *samiParser) parseStyles(css string) {
	for _, rule := range cssRuleRegex.FindAllStringSubmatch(css, -1) {
		selector := strings.ToLower(rule[1])
		style := Style{}
		lang := ""
		for _, decl := range strings.Split(rule[2], ";") {
			key, val, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			val = strings.TrimSpace(val)
			switch key {
			case "lang":
				lang = val
			case "name", "samitype":
			default:
				style[key] = val
			}
		}
		if lang != "" && strings.HasPrefix(selector, ".") {
			p.classLangs[selector[1:]] = NormalizeLanguage(lang)
		}
		if len(style) > 0 {
			p.set.SetStyle(strings.TrimPrefix(selector, "."), style)
		}
	}
}

func (p *samiParser) sync(start time.Duration) {
	p.endParagraph()
	p.closePending(start)
	p.syncStart = start
	p.seenSync = true
}

func (p *samiParser) startParagraph(tok html.Token) {
	p.endParagraph()
	para := &samiParagraph{lang: Unknown, start: p.syncStart, markup: &markupParser{}}
	for _, attr := range tok.Attr {
		switch attr.Key {
		case "class":
			para.class = strings.ToLower(strings.TrimSpace(attr.Val))
			if lang, ok := p.classLangs[para.class]; ok {
				para.lang = lang
			}
		}
	}
	for _, attr := range tok.Attr {
		if attr.Key == "lang" && strings.TrimSpace(attr.Val) != "" {
			para.lang = NormalizeLanguage(attr.Val)
		}
	}
	p.para = para
}

func (p *samiParser) text(s string) {
	s = samiSpaceRegex.ReplaceAllString(s, " ")
	if p.para == nil {
		// text directly under SYNC without a P
		if !p.seenSync || strings.TrimSpace(s) == "" {
			return
		}
		p.para = &samiParagraph{lang: Unknown, start: p.syncStart, markup: &markupParser{}}
	}
	p.para.markup.text(s)
}

func (p *samiParser) endParagraph() {
	if p.para == nil {
		return
	}
	para := p.para
	p.para = nil

	c := &Caption{Start: para.start, Nodes: trimNodes(para.markup.finish())}
	if para.class != "" {
		c.Classes = []string{para.class}
	}
	// &nbsp; paragraphs only clear the screen
	if c.IsBlank() {
		return
	}
	p.pending = append(p.pending, samiCue{lang: para.lang, caption: c})
}

// closePending ends every displayed caption at end; a negative end means
// the document finished without another SYNC.
func (p *samiParser) closePending(end time.Duration) {
	for _, cue := range p.pending {
		c := cue.caption
		if end < 0 || end <= c.Start {
			c.End = c.Start + DefaultDuration
		} else {
			c.End = end
		}
		p.set.AddCaption(cue.lang, c)
	}
	p.pending = nil
}

func samiSyncStart(tok html.Token) (time.Duration, error) {
	for _, attr := range tok.Attr {
		if attr.Key != "start" {
			continue
		}
		m := leadingDigitsRegex.FindStringSubmatch(attr.Val)
		if m == nil {
			return 0, fmt.Errorf("invalid SYNC start %q", attr.Val)
		}
		ms, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid SYNC start %q: %w", attr.Val, err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, errors.New("SYNC element without a start attribute")
}
