package model

import (
	"encoding/json"
)

// File is an attachment of a wiki page.
type File struct {
	// URL is the path of the file relative to the wiki host.
	URL string `json:"url"`

	// Name is the file name used on disk.
	Name string `json:"name"`
}

// Page represents one discovered wiki page.
//
// A Page is created once, when its title is first fetched. After
// construction only Children changes, as child subtrees resolve.
type Page struct {
	// Title is the page identifier. It is both the remote lookup key and,
	// after sanitization, the local directory name.
	Title string `json:"title"`

	// Files are the downloadable attachments in the order the wiki returned them.
	Files []File `json:"files"`

	// Links are the page identifiers extracted from the rendered content,
	// in anchor order. Duplicates and already-visited titles are kept.
	Links []string `json:"links"`

	// Children holds the links that resolved into a new subtree.
	Children *Children `json:"children"`

	// HTML is the page markup as returned by the wiki.
	HTML string `json:"-"`
}

// NewPage creates a Page for title from fetched page data.
func NewPage(title string, data *PageData, links []string) *Page {
	p := &Page{
		Title:    title,
		Files:    make([]File, 0),
		Links:    links,
		Children: NewChildren(),
	}
	if p.Links == nil {
		p.Links = make([]string, 0)
	}
	if data != nil {
		p.HTML = data.HTML
		p.Files = append(p.Files, data.Files...)
	}
	return p
}

// Walk visits p and every descendant depth-first, children in insertion
// order. parent is nil for p itself. Walk stops early when fn returns false.
func (p *Page) Walk(fn func(page, parent *Page) bool) {
	p.walk(nil, fn)
}

func (p *Page) walk(parent *Page, fn func(page, parent *Page) bool) bool {
	if p == nil {
		return true
	}
	if !fn(p, parent) {
		return false
	}
	for _, child := range p.Children.Pages() {
		if !child.walk(p, fn) {
			return false
		}
	}
	return true
}

// Count returns the number of pages in the tree rooted at p.
func (p *Page) Count() int {
	n := 0
	p.Walk(func(*Page, *Page) bool {
		n++
		return true
	})
	return n
}

// Children is an insertion-ordered mapping from page title to child page.
// The zero value is not usable; create one with NewChildren.
type Children struct {
	order []string
	pages map[string]*Page
}

// NewChildren returns an empty Children mapping.
func NewChildren() *Children {
	return &Children{
		order: make([]string, 0),
		pages: make(map[string]*Page),
	}
}

// Set stores page under title. Re-setting an existing title replaces the
// page but keeps its original position.
func (c *Children) Set(title string, page *Page) {
	if _, ok := c.pages[title]; !ok {
		c.order = append(c.order, title)
	}
	c.pages[title] = page
}

// Get returns the child stored under title.
func (c *Children) Get(title string) (*Page, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.pages[title]
	return p, ok
}

// Len returns the number of children.
func (c *Children) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Titles returns child titles in insertion order.
func (c *Children) Titles() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Pages returns child pages in insertion order.
func (c *Children) Pages() []*Page {
	if c == nil {
		return nil
	}
	out := make([]*Page, 0, len(c.order))
	for _, title := range c.order {
		out = append(out, c.pages[title])
	}
	return out
}

// MarshalJSON encodes the children as an array in insertion order,
// since JSON objects do not preserve key order.
func (c *Children) MarshalJSON() ([]byte, error) {
	pages := c.Pages()
	if pages == nil {
		pages = make([]*Page, 0)
	}
	return json.Marshal(pages)
}

// UnmarshalJSON decodes an array produced by MarshalJSON.
func (c *Children) UnmarshalJSON(data []byte) error {
	var pages []*Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	c.order = make([]string, 0, len(pages))
	c.pages = make(map[string]*Page, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		c.Set(p.Title, p)
	}
	return nil
}
