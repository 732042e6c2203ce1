package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// ErrUnsafeFileName is recorded for attachments whose name would place
// the file outside its page directory.
var ErrUnsafeFileName = errors.New("file name escapes page directory")

// Downloader fetches page attachments. *wiki.Client implements it.
type Downloader interface {
	// Download writes the attachment at the host-relative fileURL to w.
	Download(ctx context.Context, fileURL string, w io.Writer) (int64, error)

	// FileURL returns the absolute URL of fileURL.
	FileURL(fileURL string) string
}

// Materializer writes a page tree to disk.
type Materializer struct {
	downloader Downloader
	logger     *slog.Logger

	// concurrency bounds parallel downloads within one page.
	concurrency int

	// renderer writes index.md per page when non-nil.
	renderer *Renderer

	mutex       sync.Mutex
	files       []model.FileResult
	dirFailures []model.DirFailure
	dirsCreated int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConcurrency sets how many files of one page download at once.
// Values below 1 mean sequential downloads.
func WithConcurrency(n int) Option {
	return func(m *Materializer) {
		if n < 1 {
			n = 1
		}
		m.concurrency = n
	}
}

// WithMarkdown writes a Markdown rendition of each page as index.md.
func WithMarkdown(r *Renderer) Option {
	return func(m *Materializer) {
		m.renderer = r
	}
}

// NewMaterializer creates a Materializer downloading through d.
func NewMaterializer(d Downloader, opts ...Option) *Materializer {
	m := &Materializer{
		downloader:  d,
		logger:      slog.Default(),
		concurrency: 1,
		files:       make([]model.FileResult, 0),
		dirFailures: make([]model.DirFailure, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize creates outputRoot and replays the tree rooted at root
// beneath it. A nil root creates only outputRoot.
//
// The returned error is non-nil only when outputRoot cannot be created or
// ctx is cancelled. Per-file and per-directory failures are logged and
// available from Files and DirFailures.
func (m *Materializer) Materialize(ctx context.Context, root *model.Page, outputRoot string) error {
	if err := os.MkdirAll(outputRoot, 0o750); err != nil {
		return fmt.Errorf("create output directory %s: %w", outputRoot, err)
	}
	m.processNode(ctx, root, outputRoot)
	return ctx.Err()
}

func (m *Materializer) processNode(ctx context.Context, page *model.Page, dir string) {
	if page == nil || ctx.Err() != nil {
		return
	}

	nodePath := filepath.Join(dir, dirName(page.Title))
	if err := m.ensureDir(nodePath); err != nil {
		m.logger.Error("failed to create directory", "page", page.Title, "path", nodePath, "error", err)
		m.mutex.Lock()
		m.dirFailures = append(m.dirFailures, model.DirFailure{
			Page:  page.Title,
			Path:  nodePath,
			Error: err.Error(),
		})
		m.mutex.Unlock()
		return
	}

	m.downloadFiles(ctx, page, nodePath)

	if m.renderer != nil {
		m.writeIndex(page, nodePath)
	}

	for _, child := range page.Children.Pages() {
		m.processNode(ctx, child, nodePath)
	}
}

// ensureDir creates path unless it already is a directory.
func (m *Materializer) ensureDir(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	m.mutex.Lock()
	m.dirsCreated++
	m.mutex.Unlock()
	m.logger.Info("created directory", "path", path)
	return nil
}

// downloadFiles fetches the page's files into dir, at most concurrency at
// a time. Results are recorded in the page's file order.
func (m *Materializer) downloadFiles(ctx context.Context, page *model.Page, dir string) {
	if len(page.Files) == 0 {
		return
	}

	results := make([]model.FileResult, len(page.Files))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, file := range page.Files {
		g.Go(func() error {
			results[i] = m.downloadFile(ctx, page.Title, file, dir)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record failures instead of returning them

	m.mutex.Lock()
	m.files = append(m.files, results...)
	m.mutex.Unlock()
}

func (m *Materializer) downloadFile(ctx context.Context, pageTitle string, file model.File, dir string) model.FileResult {
	result := model.FileResult{
		Page: pageTitle,
		URL:  m.downloader.FileURL(file.URL),
		Name: file.Name,
		Path: filepath.Join(dir, file.Name),
	}

	fail := func(err error) model.FileResult {
		m.logger.Error("failed to download file", "url", result.URL, "path", result.Path, "error", err)
		result.Status = model.FileStatusFailed
		result.Error = err.Error()
		return result
	}

	if !filepath.IsLocal(file.Name) {
		return fail(fmt.Errorf("%w: %q", ErrUnsafeFileName, file.Name))
	}

	out, err := createAtomic(result.Path)
	if err != nil {
		return fail(err)
	}
	n, err := m.downloader.Download(ctx, file.URL, out)
	if err != nil {
		out.Abort()
		return fail(err)
	}
	digest, err := out.Commit()
	if err != nil {
		return fail(err)
	}

	m.logger.Debug("saved file", "path", result.Path, "bytes", n)
	result.Status = model.FileStatusSaved
	result.Size = n
	result.Digest = digest
	return result
}

func (m *Materializer) writeIndex(page *model.Page, dir string) {
	doc, err := m.renderer.Render(page)
	if err == nil {
		err = writeFileAtomic(filepath.Join(dir, IndexFileName), []byte(doc))
	}
	if err != nil {
		m.logger.Warn("failed to write page markdown", "page", page.Title, "error", err)
	}
}

// Files returns every attempted download in tree order.
func (m *Materializer) Files() []model.FileResult {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]model.FileResult, len(m.files))
	copy(out, m.files)
	return out
}

// DirFailures returns the page directories that could not be created.
func (m *Materializer) DirFailures() []model.DirFailure {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]model.DirFailure, len(m.dirFailures))
	copy(out, m.dirFailures)
	return out
}

// DirsCreated returns the number of page directories that did not exist
// before the run.
func (m *Materializer) DirsCreated() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.dirsCreated
}
