package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractHTML collects visible text from an HTML resume. Script, style and
// head subtrees are skipped; text nodes are joined with single spaces at
// element boundaries, and their inner whitespace is kept as written.
func extractHTML(data []byte) (*Content, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("html: %w: %v", ErrMalformed, err)
	}

	text := collectVisibleText(doc)
	c := &Content{
		Format:     FormatHTML,
		FullText:   text,
		PageCount:  1,
		ImageCount: countHTMLImages(doc),
	}
	if strings.TrimSpace(text) != "" {
		c.TextPages = 1
		c.PageTextLens = []int{len([]rune(text))}
	}
	return c, nil
}

// collectVisibleText walks the DOM and gathers rendered text nodes.
func collectVisibleText(root *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

func countHTMLImages(root *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Img || n.DataAtom == atom.Svg || n.DataAtom == atom.Canvas) {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return count
}
