package caption

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// WebVTT karaoke timestamps such as <00:00:01.500>
var inlineTimestampRegex = regexp.MustCompile(`<\d+:\d{2}(?::\d{2})?\.\d{3}>`)

type openTag struct {
	name  string
	style Style
}

// builds caption nodes from html-ish presentation markup; shared by the
// SRT, WebVTT and SAMI readers
type markupParser struct {
	nodes []Node
	open  []openTag
}

// parseInlineMarkup turns cue text lines into nodes. Known presentation tags
// become style nodes, anything else is dropped and its text kept.
func parseInlineMarkup(lines []string) []Node {
	p := &markupParser{}
	for i, line := range lines {
		if i > 0 {
			p.lineBreak()
		}
		p.parseLine(inlineTimestampRegex.ReplaceAllString(line, ""))
	}
	return p.finish()
}

func (p *markupParser) parseLine(line string) {
	z := html.NewTokenizer(strings.NewReader(line))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.TextToken:
			p.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			p.startTag(z.Token())
		case html.EndTagToken:
			name, _ := z.TagName()
			p.endTag(string(name))
		}
	}
}

func (p *markupParser) text(s string) {
	if s == "" {
		return
	}
	p.nodes = append(p.nodes, TextNode(s))
}

func (p *markupParser) lineBreak() {
	p.nodes = append(p.nodes, BreakNode())
}

func (p *markupParser) startTag(tok html.Token) {
	if tok.Data == "br" {
		p.lineBreak()
		return
	}
	if tok.Type == html.SelfClosingTagToken {
		return
	}
	style := tagStyle(tok)
	if style == nil {
		return
	}
	p.open = append(p.open, openTag{name: tok.Data, style: style})
	p.nodes = append(p.nodes, StyleNode(style, true))
}

func (p *markupParser) endTag(name string) {
	for i := len(p.open) - 1; i >= 0; i-- {
		if p.open[i].name != name {
			continue
		}
		// close everything opened inside the matched tag as well
		for j := len(p.open) - 1; j >= i; j-- {
			p.nodes = append(p.nodes, StyleNode(p.open[j].style, false))
		}
		p.open = p.open[:i]
		return
	}
}

// finish closes tags left open and returns the collected nodes.
func (p *markupParser) finish() []Node {
	for i := len(p.open) - 1; i >= 0; i-- {
		p.nodes = append(p.nodes, StyleNode(p.open[i].style, false))
	}
	p.open = nil
	nodes := p.nodes
	p.nodes = nil
	return nodes
}

func tagStyle(tok html.Token) Style {
	switch tok.Data {
	case "i", "em":
		return Style{"font-style": "italic"}
	case "b", "strong":
		return Style{"font-weight": "bold"}
	case "u":
		return Style{"text-decoration": "underline"}
	case "font":
		for _, attr := range tok.Attr {
			if attr.Key == "color" {
				return Style{"color": attr.Val}
			}
		}
		return Style{}
	}
	return nil
}

// trimNodes removes whitespace at the start and end of every line of a
// node list, dropping text nodes that end up empty.
func trimNodes(nodes []Node) []Node {
	lineStart := 0
	for i := 0; i <= len(nodes); i++ {
		if i < len(nodes) && nodes[i].Kind != NodeBreak {
			continue
		}
		trimLine(nodes[lineStart:i])
		lineStart = i + 1
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Kind == NodeText && n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func trimLine(line []Node) {
	for i := range line {
		if line[i].Kind != NodeText {
			continue
		}
		line[i].Text = strings.TrimLeft(line[i].Text, " \t\r\n")
		if line[i].Text != "" {
			break
		}
	}
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].Kind != NodeText {
			continue
		}
		line[i].Text = strings.TrimRight(line[i].Text, " \t\r\n")
		if line[i].Text != "" {
			break
		}
	}
}
