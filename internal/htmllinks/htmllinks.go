// Package htmllinks lists and rewrites the resources an HTML page refers to,
// for packaging pages together with their local files.
package htmllinks

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// linking elements and the attribute holding the reference, in the order
// links are reported
var linkAttrs = []struct {
	tag, attr string
}{
	{"a", "href"},
	{"audio", "src"},
	{"img", "src"},
	{"link", "href"},
	{"script", "src"},
}

type Document struct {
	// base name of the source file; links back to it are skipped
	name string
	root *html.Node
}

// Parse reads an HTML document from memory.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Open parses the HTML file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read html: %w", err)
	}
	doc, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	doc.name = filepath.Base(path)
	return doc, nil
}

// Links returns the referenced URLs with query and fragment removed,
// grouped by element type in document order. Same-page anchors and links
// back to the file itself are skipped.
func (d *Document) Links() []string {
	var links []string
	for _, la := range linkAttrs {
		d.walk(la.tag, la.attr, func(a *html.Attribute) {
			link := strings.TrimSpace(a.Val)
			if link == "" || strings.HasPrefix(link, "#") {
				return
			}
			if d.name != "" && strings.HasPrefix(link, d.name) {
				return
			}
			link, _, _ = strings.Cut(link, "?")
			link, _, _ = strings.Cut(link, "#")
			links = append(links, link)
		})
	}
	return links
}

// LocalFiles returns the links without a URL scheme.
func (d *Document) LocalFiles() []string {
	var local []string
	for _, link := range d.Links() {
		if !strings.Contains(link, "://") {
			local = append(local, link)
		}
	}
	return local
}

// ReplaceLinks rewrites attributes whose exact value is a key of
// replacements and returns the rendered document.
func (d *Document) ReplaceLinks(replacements map[string]string) (string, error) {
	for _, la := range linkAttrs {
		d.walk(la.tag, la.attr, func(a *html.Attribute) {
			if to, ok := replacements[a.Val]; ok {
				a.Val = to
			}
		})
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) walk(tag, attr string, fn func(*html.Attribute)) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			for i := range n.Attr {
				if n.Attr[i].Namespace == "" && n.Attr[i].Key == attr {
					fn(&n.Attr[i])
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(d.root)
}
