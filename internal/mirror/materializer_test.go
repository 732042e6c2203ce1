package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/model"
	"github.com/davintoo/wiki-export-demo/internal/wiki"
	"github.com/davintoo/wiki-export-demo/internal/wiki/wikitest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// page builds a page with files and children for tests.
func page(title string, files []model.File, children ...*model.Page) *model.Page {
	p := model.NewPage(title, &model.PageData{Files: files}, nil)
	for _, c := range children {
		p.Children.Set(c.Title, c)
	}
	return p
}

// memDownloader serves files from memory.
type memDownloader struct {
	mu      sync.Mutex
	files   map[string][]byte
	fail    map[string]error
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	fetched []string
}

func (d *memDownloader) FileURL(u string) string { return "https://wiki.example.com" + u }

func (d *memDownloader) Download(_ context.Context, u string, w io.Writer) (int64, error) {
	cur := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		old := d.peak.Load()
		if cur <= old || d.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}

	d.mu.Lock()
	d.fetched = append(d.fetched, u)
	err := d.fail[u]
	body, ok := d.files[u]
	d.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &wiki.StatusError{StatusCode: http.StatusNotFound, URL: u}
	}
	n, err := io.Copy(w, bytes.NewReader(body))
	return n, err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

// TestMaterialize tests tree replay onto disk.
func TestMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("round trip over HTTP", func(t *testing.T) {
		t.Parallel()

		srv := wikitest.NewServer(t)
		srv.AddFile("/f/a.png", []byte("PNG"))
		client, err := wiki.NewClient(srv.URL, wikitest.Token)
		if err != nil {
			t.Fatal(err)
		}

		root := page("Home", []model.File{{URL: "/f/a.png", Name: "a.png"}}, page("Sub", nil))
		out := filepath.Join(t.TempDir(), "out")

		m := NewMaterializer(client, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}

		if got := readFile(t, filepath.Join(out, "Home", "a.png")); got != "PNG" {
			t.Errorf("a.png = %q", got)
		}
		entries, err := os.ReadDir(filepath.Join(out, "Home", "Sub"))
		if err != nil {
			t.Fatalf("Sub directory: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Sub should be empty, has %d entries", len(entries))
		}

		files := m.Files()
		if len(files) != 1 || files[0].Status != model.FileStatusSaved || files[0].Size != 3 {
			t.Fatalf("files = %+v", files)
		}
		if files[0].URL != srv.URL+"/f/a.png" {
			t.Errorf("URL = %q", files[0].URL)
		}
		if len(files[0].Digest) != 64 {
			t.Errorf("digest = %q, want 64 hex chars", files[0].Digest)
		}
		if m.DirsCreated() != 2 {
			t.Errorf("DirsCreated() = %d, want 2", m.DirsCreated())
		}
	})

	t.Run("nil root creates no page directories", func(t *testing.T) {
		t.Parallel()

		out := filepath.Join(t.TempDir(), "nested", "out")
		m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), nil, out); err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}

		entries, err := os.ReadDir(out)
		if err != nil {
			t.Fatalf("output root not created: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("output root has %d entries", len(entries))
		}
	})

	t.Run("failed download does not stop siblings", func(t *testing.T) {
		t.Parallel()

		d := &memDownloader{
			files: map[string][]byte{"/1": []byte("one"), "/3": []byte("three"), "/c": []byte("child")},
			fail:  map[string]error{"/2": errors.New("connection reset")},
		}
		root := page("P",
			[]model.File{{URL: "/1", Name: "1.txt"}, {URL: "/2", Name: "2.txt"}, {URL: "/3", Name: "3.txt"}},
			page("C", []model.File{{URL: "/c", Name: "c.txt"}}),
		)
		out := t.TempDir()

		m := NewMaterializer(d, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}

		if got := readFile(t, filepath.Join(out, "P", "1.txt")); got != "one" {
			t.Errorf("1.txt = %q", got)
		}
		if got := readFile(t, filepath.Join(out, "P", "3.txt")); got != "three" {
			t.Errorf("3.txt = %q", got)
		}
		if got := readFile(t, filepath.Join(out, "P", "C", "c.txt")); got != "child" {
			t.Errorf("c.txt = %q", got)
		}
		if _, err := os.Stat(filepath.Join(out, "P", "2.txt")); !os.IsNotExist(err) {
			t.Errorf("2.txt should not exist, stat err = %v", err)
		}

		files := m.Files()
		if len(files) != 4 {
			t.Fatalf("files = %+v", files)
		}
		if files[1].Status != model.FileStatusFailed || !strings.Contains(files[1].Error, "connection reset") {
			t.Errorf("file 2 = %+v", files[1])
		}
		if files[1].URL != "https://wiki.example.com/2" {
			t.Errorf("failure URL = %q", files[1].URL)
		}
	})

	t.Run("non-2xx leaves no file and no temp file", func(t *testing.T) {
		t.Parallel()

		root := page("P", []model.File{{URL: "/missing", Name: "m.bin"}})
		out := t.TempDir()

		m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatal(err)
		}

		entries, err := os.ReadDir(filepath.Join(out, "P"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("page dir has %d entries, want 0", len(entries))
		}
	})

	t.Run("existing file is overwritten", func(t *testing.T) {
		t.Parallel()

		out := t.TempDir()
		if err := os.MkdirAll(filepath.Join(out, "P"), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(out, "P", "f"), []byte("old content"), 0o600); err != nil {
			t.Fatal(err)
		}

		d := &memDownloader{files: map[string][]byte{"/f": []byte("new")}}
		m := NewMaterializer(d, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), page("P", []model.File{{URL: "/f", Name: "f"}}), out); err != nil {
			t.Fatal(err)
		}

		if got := readFile(t, filepath.Join(out, "P", "f")); got != "new" {
			t.Errorf("f = %q", got)
		}
		if m.DirsCreated() != 0 {
			t.Errorf("DirsCreated() = %d, want 0 for existing directory", m.DirsCreated())
		}
	})

	t.Run("unsafe file names are rejected", func(t *testing.T) {
		t.Parallel()

		d := &memDownloader{files: map[string][]byte{"/x": []byte("x")}}
		root := page("P", []model.File{{URL: "/x", Name: "../escape"}})
		out := t.TempDir()

		m := NewMaterializer(d, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatal(err)
		}

		if _, err := os.Stat(filepath.Join(out, "escape")); !os.IsNotExist(err) {
			t.Error("file escaped its page directory")
		}
		files := m.Files()
		if len(files) != 1 || files[0].Status != model.FileStatusFailed {
			t.Errorf("files = %+v", files)
		}
		if len(d.fetched) != 0 {
			t.Errorf("unsafe file was downloaded: %v", d.fetched)
		}
	})

	t.Run("sanitized directory names", func(t *testing.T) {
		t.Parallel()

		out := t.TempDir()
		root := page("Release Notes", nil, page("a/b", nil))

		m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatal(err)
		}

		if info, err := os.Stat(filepath.Join(out, "Release_Notes", "a_b")); err != nil || !info.IsDir() {
			t.Errorf("expected Release_Notes/a_b directory, err = %v", err)
		}
	})

	t.Run("blocked directory skips only its subtree", func(t *testing.T) {
		t.Parallel()

		out := t.TempDir()
		if err := os.MkdirAll(filepath.Join(out, "Root"), 0o750); err != nil {
			t.Fatal(err)
		}
		// A regular file where the Bad directory should go.
		if err := os.WriteFile(filepath.Join(out, "Root", "Bad"), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}

		d := &memDownloader{files: map[string][]byte{"/g": []byte("g")}}
		root := page("Root", nil,
			page("Bad", []model.File{{URL: "/b", Name: "b"}}, page("BadChild", nil)),
			page("Good", []model.File{{URL: "/g", Name: "g"}}),
		)

		m := NewMaterializer(d, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), root, out); err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}

		if got := readFile(t, filepath.Join(out, "Root", "Good", "g")); got != "g" {
			t.Errorf("g = %q", got)
		}
		failures := m.DirFailures()
		if len(failures) != 1 || failures[0].Page != "Bad" {
			t.Errorf("dir failures = %+v", failures)
		}
		for _, u := range d.fetched {
			if u == "/b" {
				t.Error("file of blocked page was downloaded")
			}
		}
	})

	t.Run("output root failure is fatal", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		blocker := filepath.Join(base, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}

		m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()))
		if err := m.Materialize(context.Background(), page("P", nil), filepath.Join(blocker, "out")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := t.TempDir()
		m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()))
		if err := m.Materialize(ctx, page("P", nil), out); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if _, err := os.Stat(filepath.Join(out, "P")); !os.IsNotExist(err) {
			t.Error("page directory created after cancel")
		}
	})
}

// TestMaterializeConcurrency tests bounded parallel downloads.
func TestMaterializeConcurrency(t *testing.T) {
	t.Parallel()

	files := make([]model.File, 0, 8)
	d := &memDownloader{files: make(map[string][]byte), delay: 20 * time.Millisecond}
	for i := range 8 {
		u := fmt.Sprintf("/f%d", i)
		d.files[u] = []byte(u)
		files = append(files, model.File{URL: u, Name: fmt.Sprintf("f%d", i)})
	}

	out := t.TempDir()
	m := NewMaterializer(d, WithLogger(quietLogger()), WithConcurrency(3))
	if err := m.Materialize(context.Background(), page("P", files), out); err != nil {
		t.Fatal(err)
	}

	if peak := d.peak.Load(); peak > 3 || peak < 2 {
		t.Errorf("peak concurrency = %d, want 2..3", peak)
	}
	results := m.Files()
	for i, r := range results {
		if r.Name != fmt.Sprintf("f%d", i) || r.Status != model.FileStatusSaved {
			t.Errorf("result %d = %+v", i, r)
		}
	}
}

// TestMaterializeMarkdown tests the index.md rendition.
func TestMaterializeMarkdown(t *testing.T) {
	t.Parallel()

	p := model.NewPage("Guide", &model.PageData{
		HTML: `<h2>Intro</h2><p>Hello <b>world</b></p><script>alert(1)</script>`,
	}, nil)
	out := t.TempDir()

	m := NewMaterializer(&memDownloader{}, WithLogger(quietLogger()), WithMarkdown(NewRenderer("")))
	if err := m.Materialize(context.Background(), p, out); err != nil {
		t.Fatal(err)
	}

	doc := readFile(t, filepath.Join(out, "Guide", IndexFileName))
	if !strings.HasPrefix(doc, "# Guide\n") {
		t.Errorf("missing title heading: %q", doc)
	}
	if !strings.Contains(doc, "## Intro") || !strings.Contains(doc, "**world**") {
		t.Errorf("unexpected markdown: %q", doc)
	}
	if strings.Contains(doc, "alert") {
		t.Errorf("script survived sanitizing: %q", doc)
	}
}

// TestRendererLinks tests link rewriting in the index.md rendition.
func TestRendererLinks(t *testing.T) {
	t.Parallel()

	home := model.NewPage("Home", &model.PageData{
		HTML: `<p><a href="wiki/Sub">sub</a> ` +
			`<a href="https://wiki.example.com/wiki/Release%20Notes">notes</a> ` +
			`<a href="wiki/Elsewhere">elsewhere</a> ` +
			`<a href="https://go.dev/">go</a> ` +
			`<a href="#top">top</a></p>` +
			`<img src="/files/logo.png" alt="logo">`,
	}, []string{"Sub", "Release Notes", "Elsewhere"})
	home.Children.Set("Sub", model.NewPage("Sub", nil, nil))
	home.Children.Set("Release Notes", model.NewPage("Release Notes", nil, nil))

	doc, err := NewRenderer("https://wiki.example.com").Render(home)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"[sub](Sub/index.md)",
		"[notes](Release_Notes/index.md)",
		"[elsewhere](https://wiki.example.com/wiki/Elsewhere)",
		"[go](https://go.dev/)",
		"[top](#top)",
		"![logo](https://wiki.example.com/files/logo.png)",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected %q in:\n%s", want, doc)
		}
	}

	t.Run("without a domain relative links are kept", func(t *testing.T) {
		t.Parallel()

		doc, err := NewRenderer("").Render(home)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(doc, "[sub](Sub/index.md)") || !strings.Contains(doc, "[elsewhere](wiki/Elsewhere)") {
			t.Errorf("unexpected links:\n%s", doc)
		}
	})
}
