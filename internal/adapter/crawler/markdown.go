package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Head:     true,
}

var blocks = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Main:       true,
	atom.Header:     true,
	atom.Aside:      true,
	atom.Blockquote: true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Table:      true,
	atom.Figure:     true,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// HTMLToMarkdown renders the readable part of an HTML page as markdown-flavoured
// text. Content inside <main> is preferred over the whole <body>. Relative links
// are resolved against base when it is non-nil.
func HTMLToMarkdown(r io.Reader, base *url.URL) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	root := find(doc, atom.Main)
	if root == nil {
		root = find(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	render(&sb, root, base)
	return tidy(sb.String()), nil
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

func render(sb *strings.Builder, n *html.Node, base *url.URL) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(collapseSpace(n.Data))
		return
	case html.ElementNode:
	default:
		renderChildren(sb, n, base)
		return
	}

	if skipped[n.DataAtom] {
		return
	}

	if level, ok := headingLevel[n.DataAtom]; ok {
		sb.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		renderChildren(sb, n, base)
		sb.WriteString("\n\n")
		return
	}

	switch n.DataAtom {
	case atom.Pre:
		code := strings.TrimRight(textContent(n), "\n")
		sb.WriteString("\n\n```\n" + code + "\n```\n\n")
	case atom.Code:
		sb.WriteString("`" + textContent(n) + "`")
	case atom.Br:
		sb.WriteString("\n")
	case atom.Li:
		sb.WriteString("\n- ")
		renderChildren(sb, n, base)
	case atom.Tr:
		sb.WriteString("\n")
		renderChildren(sb, n, base)
	case atom.Td, atom.Th:
		sb.WriteString(" | ")
		renderChildren(sb, n, base)
	case atom.A:
		var inner strings.Builder
		renderChildren(&inner, n, base)
		label := strings.TrimSpace(inner.String())
		href := resolve(base, attr(n, "href"))
		if label == "" || href == "" {
			sb.WriteString(inner.String())
			return
		}
		sb.WriteString("[" + label + "](" + href + ")")
	case atom.Img:
		return
	default:
		if blocks[n.DataAtom] {
			sb.WriteString("\n\n")
			renderChildren(sb, n, base)
			sb.WriteString("\n\n")
			return
		}
		renderChildren(sb, n, base)
	}
}

func renderChildren(sb *strings.Builder, n *html.Node, base *url.URL) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(sb, c, base)
	}
}

func textContent(n *html.Node) string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// tidy normalises whitespace outside code fences and keeps at most one blank line.
func tidy(s string) string {
	var out []string
	inFence := false
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "```" {
			inFence = !inFence
			out = append(out, "```")
			blank = 0
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ExtractLinks returns the absolute targets of every <a href> in the page, in
// document order.
func ExtractLinks(r io.Reader, base *url.URL) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href := attr(n, "href"); strings.TrimSpace(href) != "" {
				if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
					if base != nil {
						u = base.ResolveReference(u)
					}
					links = append(links, u.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}
