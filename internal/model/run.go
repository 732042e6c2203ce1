package model

import "time"

// FileStatus is the outcome of one file download.
type FileStatus string

const (
	// FileStatusSaved means the file was downloaded and written.
	FileStatusSaved FileStatus = "saved"

	// FileStatusFailed means the download or the write failed.
	FileStatusFailed FileStatus = "failed"
)

// PageFailure records a page whose fetch failed during traversal.
type PageFailure struct {
	// Title is the page that could not be fetched.
	Title string `json:"title"`

	// Parent is the page whose link led to Title. Empty for the root.
	Parent string `json:"parent,omitempty"`

	// Error is the failure message.
	Error string `json:"error"`
}

// FileResult records the outcome of one file download.
type FileResult struct {
	// Page is the title of the page owning the file.
	Page string `json:"page"`

	// URL is the absolute URL that was fetched.
	URL string `json:"url"`

	// Name is the file name on disk.
	Name string `json:"name"`

	// Path is the local path the file was written to.
	Path string `json:"path"`

	// Size is the number of bytes written.
	Size int64 `json:"size"`

	// Digest is the hex BLAKE2b-256 digest of the content.
	Digest string `json:"digest,omitempty"`

	// Status is saved or failed.
	Status FileStatus `json:"status"`

	// Error is the failure message when Status is failed.
	Error string `json:"error,omitempty"`
}

// DirFailure records a page directory that could not be created. The
// page's files and its subtree are skipped.
type DirFailure struct {
	Page  string `json:"page"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Run is the accumulated state of one export. Pipeline steps read and
// extend it in order.
type Run struct {
	// ID is the manifest row id, zero when no manifest is kept.
	ID int64 `json:"id,omitempty"`

	// RootTitle is the page traversal starts from.
	RootTitle string `json:"root_title"`

	// OutputDir is the directory the tree is materialized under.
	OutputDir string `json:"output_dir"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Root is the discovered tree, nil when the root page was unreachable.
	Root *Page `json:"root"`

	// Visited holds every title whose fetch was initiated.
	Visited *VisitedSet `json:"-"`

	// PageFailures lists pages that could not be fetched.
	PageFailures []PageFailure `json:"page_failures,omitempty"`

	// Files lists every attempted download in order.
	Files []FileResult `json:"files,omitempty"`

	// DirFailures lists page directories that could not be created.
	DirFailures []DirFailure `json:"dir_failures,omitempty"`

	// CompletedSteps names the pipeline steps that ran.
	CompletedSteps []string `json:"completed_steps,omitempty"`
}

// NewRun creates a Run for rootTitle writing under outputDir.
func NewRun(rootTitle, outputDir string) *Run {
	return &Run{
		RootTitle:    rootTitle,
		OutputDir:    outputDir,
		StartedAt:    time.Now(),
		Visited:      NewVisitedSet(),
		PageFailures: make([]PageFailure, 0),
		Files:        make([]FileResult, 0),
		DirFailures:  make([]DirFailure, 0),
	}
}

// Summary holds the counters shown in reports and stored in the manifest.
type Summary struct {
	PagesExported int   `json:"pages_exported"`
	PagesFailed   int   `json:"pages_failed"`
	FilesSaved    int   `json:"files_saved"`
	FilesFailed   int   `json:"files_failed"`
	BytesWritten  int64 `json:"bytes_written"`
	DirsFailed    int   `json:"dirs_failed"`
}

// Summary computes the run counters.
func (r *Run) Summary() Summary {
	s := Summary{
		PagesFailed: len(r.PageFailures),
		DirsFailed:  len(r.DirFailures),
	}
	if r.Root != nil {
		s.PagesExported = r.Root.Count()
	}
	for _, f := range r.Files {
		if f.Status == FileStatusSaved {
			s.FilesSaved++
			s.BytesWritten += f.Size
		} else {
			s.FilesFailed++
		}
	}
	return s
}
