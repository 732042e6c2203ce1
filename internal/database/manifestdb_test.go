package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *ManifestDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// sampleRun builds Home -> {Sub -> {Deep}} with one saved and one failed
// file and one failed page.
func sampleRun(started time.Time) *model.Run {
	run := model.NewRun("Home", "/tmp/out")
	run.StartedAt = started
	run.FinishedAt = started.Add(2 * time.Second)

	home := model.NewPage("Home", &model.PageData{Files: []model.File{{URL: "/f/a", Name: "a"}}}, []string{"Sub", "Gone"})
	sub := model.NewPage("Sub", nil, []string{"Deep", "Home"})
	deep := model.NewPage("Deep", nil, nil)
	sub.Children.Set("Deep", deep)
	home.Children.Set("Sub", sub)
	run.Root = home

	run.PageFailures = append(run.PageFailures, model.PageFailure{Title: "Gone", Parent: "Home", Error: "unexpected status 404"})
	run.Files = append(run.Files,
		model.FileResult{Page: "Home", URL: "https://w/f/a", Name: "a", Path: "/tmp/out/Home/a", Size: 10, Digest: "abc", Status: model.FileStatusSaved},
		model.FileResult{Page: "Home", URL: "https://w/f/b", Name: "b", Path: "/tmp/out/Home/b", Status: model.FileStatusFailed, Error: "reset"},
	)
	return run
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveRun(context.Background(), sampleRun(time.Now()), "https://w"); err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}

		db, err = Open(dir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 {
			t.Errorf("runs = %d, want 1", len(runs))
		}
	})
}

// TestSaveRun tests persisting a run with its pages and files.
func TestSaveRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := db.SaveRun(ctx, sampleRun(started), "https://w")
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	rec, err := db.GetRun(ctx, id)
	if err != nil || rec == nil {
		t.Fatalf("GetRun() = %v, %v", rec, err)
	}
	if rec.RootTitle != "Home" || rec.Host != "https://w" || rec.OutputDir != "/tmp/out" {
		t.Errorf("run = %+v", rec)
	}
	if !rec.StartedAt.Equal(started) || !rec.FinishedAt.Equal(started.Add(2*time.Second)) {
		t.Errorf("times = %v .. %v", rec.StartedAt, rec.FinishedAt)
	}
	want := model.Summary{PagesExported: 3, PagesFailed: 1, FilesSaved: 1, FilesFailed: 1, BytesWritten: 10}
	if rec.Summary != want {
		t.Errorf("summary = %+v, want %+v", rec.Summary, want)
	}

	pages, err := db.ListPages(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 4 {
		t.Fatalf("pages = %+v", pages)
	}
	expected := []struct{ title, parent, status string }{
		{"Home", "", PageStatusExported},
		{"Sub", "Home", PageStatusExported},
		{"Deep", "Sub", PageStatusExported},
		{"Gone", "Home", PageStatusFailed},
	}
	for i, e := range expected {
		p := pages[i]
		if p.Title != e.title || p.Parent != e.parent || p.Status != e.status {
			t.Errorf("page %d = %+v, want %+v", i, p, e)
		}
	}
	if pages[0].LinkCount != 2 || pages[0].FileCount != 1 || pages[0].ChildCount != 1 {
		t.Errorf("Home counts = %+v", pages[0])
	}
	if pages[3].Error == "" {
		t.Error("failed page should carry its error")
	}

	files, err := db.ListFiles(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Status != model.FileStatusSaved || files[0].Digest != "abc" || files[0].Size != 10 {
		t.Errorf("file 0 = %+v", files[0])
	}
	if files[1].Status != model.FileStatusFailed || files[1].Error != "reset" {
		t.Errorf("file 1 = %+v", files[1])
	}
}

// TestSaveRunNilRoot tests an unreachable root.
func TestSaveRunNilRoot(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	run := model.NewRun("Home", "/out")
	run.PageFailures = append(run.PageFailures, model.PageFailure{Title: "Home", Error: "connection refused"})

	id, err := db.SaveRun(ctx, run, "https://w")
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	pages, err := db.ListPages(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].Status != PageStatusFailed {
		t.Errorf("pages = %+v", pages)
	}
	rec, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", rec.FinishedAt)
	}
}

// TestListRuns tests ordering, limits and lookups.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		if _, err := db.SaveRun(ctx, sampleRun(base.Add(time.Duration(i)*time.Hour)), "https://w"); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs = %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) || !runs[1].StartedAt.After(runs[2].StartedAt) {
		t.Errorf("runs not newest first: %v, %v, %v", runs[0].StartedAt, runs[1].StartedAt, runs[2].StartedAt)
	}

	limited, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d", len(limited))
	}

	missing, err := db.GetRun(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("GetRun(9999) = %v, %v; want nil, nil", missing, err)
	}
}

// TestDeleteRunsBefore tests pruning with cascading deletes.
func TestDeleteRunsBefore(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	oldID, err := db.SaveRun(ctx, sampleRun(old), "https://w")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveRun(ctx, sampleRun(recent), "https://w"); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteRunsBefore(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	pages, err := db.ListPages(ctx, oldID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("pages of deleted run remain: %d", len(pages))
	}
}

// TestParseTimestamp tests parsing of stored timestamps.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{"2026-01-02T03:04:05.123456789Z", false},
		{"2026-01-02T03:04:05Z", false},
		{"2026-01-02 03:04:05", false},
		{"", true},
		{"not a time", true},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
		}
	}
}
