// Package scrape extracts the readable text of a commit page.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrContentNotFound is returned when no element matches the selector.
var ErrContentNotFound = errors.New("content container not found")

// Scraper returns the text of the page content container at url.
type Scraper interface {
	Text(ctx context.Context, url string) (string, error)
}

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Selector is a simple CSS selector: an optional tag name followed by any
// number of ".class" parts, e.g. "div.Box.main".
type Selector struct {
	Tag     string
	Classes []string
}

// ParseSelector parses s. A selector written as a bare space-separated class
// list ("Box main") is accepted too.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Selector{}, errors.New("empty selector")
	}
	if !strings.Contains(s, ".") {
		fields := strings.Fields(s)
		if len(fields) > 1 {
			return Selector{Classes: fields}, nil
		}
		return Selector{Tag: strings.ToLower(s)}, nil
	}
	if strings.ContainsAny(s, " >+~[#:") {
		return Selector{}, fmt.Errorf("unsupported selector %q", s)
	}
	parts := strings.Split(s, ".")
	sel := Selector{Tag: strings.ToLower(parts[0])}
	for _, p := range parts[1:] {
		if p != "" {
			sel.Classes = append(sel.Classes, p)
		}
	}
	return sel, nil
}

// CSS renders the selector back into CSS syntax.
func (s Selector) CSS() string {
	var b strings.Builder
	b.WriteString(s.Tag)
	for _, c := range s.Classes {
		b.WriteString(".")
		b.WriteString(c)
	}
	return b.String()
}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.Tag != "" && n.Data != s.Tag {
		return false
	}
	if len(s.Classes) == 0 {
		return true
	}
	var have []string
	for _, a := range n.Attr {
		if a.Key == "class" {
			have = strings.Fields(a.Val)
			break
		}
	}
	for _, want := range s.Classes {
		found := false
		for _, h := range have {
			if h == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ExtractText parses page and returns the text of the first element matching
// sel, with runs of blank lines collapsed.
func ExtractText(page string, sel Selector) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	node := find(doc, sel)
	if node == nil {
		return "", fmt.Errorf("%s: %w", sel.CSS(), ErrContentNotFound)
	}
	var b strings.Builder
	collectText(node, &b)
	return normalize(b.String()), nil
}

func find(n *html.Node, sel Selector) *html.Node {
	if sel.matches(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, sel); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Br:
			b.WriteString("\n")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteString("\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.P, atom.Tr, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.Pre, atom.Table, atom.Section:
		return true
	}
	return false
}

var blankRuns = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// HTTPScraper fetches static HTML and extracts the container text.
type HTTPScraper struct {
	fetcher  Fetcher
	selector Selector
}

// NewHTTPScraper creates a scraper reading the element matched by selector.
func NewHTTPScraper(fetcher Fetcher, selector string) (*HTTPScraper, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	return &HTTPScraper{fetcher: fetcher, selector: sel}, nil
}

// Text implements Scraper.
func (s *HTTPScraper) Text(ctx context.Context, url string) (string, error) {
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return ExtractText(page, s.selector)
}
