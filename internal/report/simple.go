package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// SimpleWriter outputs a plain text run summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every failed page and file.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists individual failures.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder
	s := run.Summary()

	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Root:     %s\n", run.RootTitle))
	sb.WriteString(fmt.Sprintf("Output:   %s\n", run.OutputDir))
	if run.Root == nil {
		sb.WriteString("Status:   root page unreachable, nothing exported\n")
	}
	sb.WriteString(fmt.Sprintf("Pages:    %d exported, %d failed\n", s.PagesExported, s.PagesFailed))
	sb.WriteString(fmt.Sprintf("Files:    %d saved, %d failed (%s)\n", s.FilesSaved, s.FilesFailed, formatBytes(s.BytesWritten)))
	if s.DirsFailed > 0 {
		sb.WriteString(fmt.Sprintf("Dirs:     %d could not be created\n", s.DirsFailed))
	}
	if !run.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
	}

	if w.verbose {
		for _, f := range run.PageFailures {
			sb.WriteString(fmt.Sprintf("  [page] %s: %s\n", f.Title, f.Error))
		}
		for _, f := range run.Files {
			if f.Status == model.FileStatusFailed {
				sb.WriteString(fmt.Sprintf("  [file] %s: %s\n", f.URL, f.Error))
			}
		}
		for _, f := range run.DirFailures {
			sb.WriteString(fmt.Sprintf("  [dir]  %s: %s\n", f.Path, f.Error))
		}
	}
	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
