package mirror

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/davintoo/wiki-export-demo/internal/crawler"
	"github.com/davintoo/wiki-export-demo/internal/model"
)

// IndexFileName is the Markdown rendition written into each page directory.
const IndexFileName = "index.md"

// Renderer converts page HTML to Markdown. Markup is sanitized with a
// user-generated-content policy before conversion, so scripts, styles and
// event handlers never reach the output.
//
// Links to a page's children point at the child's index.md in the
// mirrored tree. Other relative links and images are resolved against the
// wiki host.
type Renderer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
	links  *crawler.Parser
	base   *url.URL
}

// NewRenderer creates a Renderer for pages of the wiki at domain. With an
// empty domain, relative links other than child links are kept as-is.
func NewRenderer(domain string) *Renderer {
	r := &Renderer{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		links: crawler.NewParser(domain),
	}
	if domain != "" {
		if u, err := url.Parse(strings.TrimRight(domain, "/") + "/"); err == nil {
			r.base = u
		}
	}
	return r
}

// Render returns the Markdown document for page, headed by its title.
func (r *Renderer) Render(page *model.Page) (string, error) {
	clean, err := r.rewriteLinks(page, r.policy.Sanitize(page.HTML))
	if err != nil {
		return "", fmt.Errorf("rewrite links of %q: %w", page.Title, err)
	}

	body, err := r.conv.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("convert %q to markdown: %w", page.Title, err)
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(page.Title)
	sb.WriteString("\n")
	if body = strings.TrimSpace(body); body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// rewriteLinks points child wiki links at the child's index.md and
// resolves the remaining relative href and src values against the host.
func (r *Renderer) rewriteLinks(page *model.Page, markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for i, attr := range n.Attr {
				switch {
				case n.Data == "a" && attr.Key == "href":
					n.Attr[i].Val = r.href(page, attr.Val)
				case n.Data == "img" && attr.Key == "src":
					n.Attr[i].Val = r.resolve(attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) href(page *model.Page, href string) string {
	if title, ok := r.links.Identifier(href); ok {
		if _, isChild := page.Children.Get(title); isChild {
			return url.PathEscape(dirName(title)) + "/" + IndexFileName
		}
	}
	return r.resolve(href)
}

// resolve makes a relative reference absolute against the wiki host.
// Fragments, absolute URLs and unparseable values are returned unchanged.
func (r *Renderer) resolve(ref string) string {
	if r.base == nil || ref == "" || strings.HasPrefix(ref, "#") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return r.base.ResolveReference(u).String()
}
