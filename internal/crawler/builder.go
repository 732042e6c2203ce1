package crawler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// PageFetcher fetches the data of one wiki page.
// *wiki.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, title string) (*model.PageData, error)
}

// Builder discovers the wiki page tree reachable from a root title.
//
// Traversal is depth-first in link order. Every title is fetched at most
// once per visited set: a title is marked before its fetch, and a title
// already marked resolves to nothing. The result is a spanning tree over
// the first-discovered path to each page.
type Builder struct {
	fetcher PageFetcher
	parser  *Parser
	logger  *slog.Logger

	// delay is waited before every fetch after the first.
	delay time.Duration

	mutex    sync.Mutex
	stats    BuilderStats
	failures []model.PageFailure
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger for traversal diagnostics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDelay sets a pause between page fetches.
func WithDelay(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.delay = d
	}
}

// NewBuilder creates a Builder fetching pages through fetcher. host is used
// to recognize absolute wiki links.
func NewBuilder(fetcher PageFetcher, host string, opts ...BuilderOption) *Builder {
	b := &Builder{
		fetcher:  fetcher,
		parser:   NewParser(host),
		logger:   slog.Default(),
		failures: make([]model.PageFailure, 0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the tree rooted at title, or nil when title was already
// visited or its page could not be fetched. Fetch failures are logged and
// recorded; they never abort the traversal. visited is shared by every
// recursive call and is left holding every title whose fetch was started.
func (b *Builder) Build(ctx context.Context, title string, visited *model.VisitedSet) *model.Page {
	return b.build(ctx, title, "", visited)
}

func (b *Builder) build(ctx context.Context, title, parent string, visited *model.VisitedSet) *model.Page {
	if ctx.Err() != nil {
		return nil
	}
	if !visited.MarkIfNew(title) {
		b.mutex.Lock()
		b.stats.Skipped++
		b.mutex.Unlock()
		b.logger.Debug("skipping visited page", "title", title)
		return nil
	}

	if !b.wait(ctx) {
		return nil
	}

	b.logger.Debug("fetching page", "title", title)
	data, err := b.fetcher.FetchPage(ctx, title)
	if err != nil {
		b.logger.Error("failed to process page", "title", title, "error", err)
		b.recordFailure(title, parent, err)
		return nil
	}

	links, err := b.parser.Parse(strings.NewReader(data.HTML))
	if err != nil {
		// x/net/html only fails on reader errors; treat the page as link-free.
		b.logger.Warn("failed to parse page html", "title", title, "error", err)
		links = make([]string, 0)
	}

	b.mutex.Lock()
	b.stats.Fetched++
	b.stats.LinksFound += len(links)
	b.mutex.Unlock()

	page := model.NewPage(title, data, links)
	for _, link := range links {
		if child := b.build(ctx, link, title, visited); child != nil {
			page.Children.Set(link, child)
		}
	}
	return page
}

// wait applies the fetch delay. It reports false when ctx ends first.
func (b *Builder) wait(ctx context.Context) bool {
	if b.delay <= 0 {
		return true
	}
	b.mutex.Lock()
	first := b.stats.Fetched+b.stats.Failed == 0
	b.mutex.Unlock()
	if first {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(b.delay):
		return true
	}
}

func (b *Builder) recordFailure(title, parent string, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stats.Failed++
	b.failures = append(b.failures, model.PageFailure{
		Title:  title,
		Parent: parent,
		Error:  err.Error(),
	})
}

// Failures returns the pages that could not be fetched, in traversal order.
func (b *Builder) Failures() []model.PageFailure {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make([]model.PageFailure, len(b.failures))
	copy(out, b.failures)
	return out
}

// Stats returns current traversal statistics.
func (b *Builder) Stats() BuilderStats {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.stats
}

// BuilderStats contains traversal statistics.
type BuilderStats struct {
	// Fetched is the number of pages fetched successfully.
	Fetched int

	// Failed is the number of page fetches that failed.
	Failed int

	// Skipped is the number of links that resolved to an already visited title.
	Skipped int

	// LinksFound is the total number of wiki links extracted.
	LinksFound int
}
