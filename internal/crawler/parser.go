package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// wikiLinkPrefix marks a host-relative wiki link.
const wikiLinkPrefix = "wiki/"

// Parser extracts wiki page links from rendered page HTML.
//
// An anchor is a wiki link when its href starts with "wiki/" or with
// "{host}/wiki/". The page identifier is the remainder of the href,
// path-unescaped when possible. Every other href is ignored.
type Parser struct {
	// absolutePrefix is "{host}/wiki/".
	absolutePrefix string
}

// NewParser creates a Parser for links pointing at host.
// host is used verbatim apart from a trailing slash being removed.
func NewParser(host string) *Parser {
	return &Parser{
		absolutePrefix: strings.TrimRight(host, "/") + "/" + wikiLinkPrefix,
	}
}

// Parse returns the identifiers of all wiki links in content, in document
// order. Duplicates are kept.
func (p *Parser) Parse(content io.Reader) ([]string, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if id, ok := p.Identifier(getAttr(n, "href")); ok {
				links = append(links, id)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// Identifier maps an href to a page identifier. ok is false when href is
// not a wiki link.
func (p *Parser) Identifier(href string) (string, bool) {
	var rest string
	switch {
	case href == "":
		return "", false
	case strings.HasPrefix(href, wikiLinkPrefix):
		rest = href[len(wikiLinkPrefix):]
	case strings.HasPrefix(href, p.absolutePrefix):
		rest = href[len(p.absolutePrefix):]
	default:
		return "", false
	}

	if unescaped, err := url.PathUnescape(rest); err == nil {
		return unescaped, true
	}
	return rest, true
}

// ExtractLinks is a convenience wrapper around NewParser(host).Parse.
// Unparseable content yields no links.
func ExtractLinks(content, host string) []string {
	links, err := NewParser(host).Parse(strings.NewReader(content))
	if err != nil {
		return make([]string, 0)
	}
	return links
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
