package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// MarkdownWriter outputs a run report in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := run.Summary()

	w.writeHeader(md, run)
	w.writeSummary(md, s)
	w.writeTree(md, run.Root)
	w.writePageFailures(md, run.PageFailures)
	w.writeFiles(md, run.Files)
	w.writeDirFailures(md, run.DirFailures)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Wiki Export Report")
	md.PlainText("")

	finished := "-"
	duration := "-"
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.Format("2006-01-02 15:04:05 MST")
		duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root Page", "`" + run.RootTitle + "`"},
			{"Output Directory", "`" + run.OutputDir + "`"},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", finished},
			{"Duration", duration},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"Pages exported", strconv.Itoa(s.PagesExported)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Files saved", strconv.Itoa(s.FilesSaved)},
			{"Files failed", strconv.Itoa(s.FilesFailed)},
			{"Bytes written", formatBytes(s.BytesWritten)},
			{"Directories failed", strconv.Itoa(s.DirsFailed)},
		},
	})
	md.PlainText("")

	if s.FilesSaved+s.FilesFailed > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("File Downloads"),
			piechart.WithShowData(true),
		)
		if s.FilesSaved > 0 {
			chart.LabelAndIntValue("Saved", uint64(s.FilesSaved)) //nolint:gosec // non-negative count
		}
		if s.FilesFailed > 0 {
			chart.LabelAndIntValue("Failed", uint64(s.FilesFailed)) //nolint:gosec // non-negative count
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.PagesExported == 0:
		md.Cautionf("The root page could not be fetched. Nothing was exported.")
	case s.PagesFailed+s.FilesFailed+s.DirsFailed > 0:
		md.Warningf(
			"Export finished with failures: %d page(s), %d file(s), %d directory(ies).",
			s.PagesFailed, s.FilesFailed, s.DirsFailed,
		)
	default:
		md.Tip("Export finished without failures.")
	}
	md.PlainText("")
}

// writeTree writes the page hierarchy as a nested list.
func (w *MarkdownWriter) writeTree(md *markdown.Markdown, root *model.Page) {
	md.H2("Page Tree")
	md.PlainText("")

	if root == nil {
		md.PlainText("No pages exported.")
		md.PlainText("")
		return
	}

	depth := map[*model.Page]int{}
	var sb strings.Builder
	root.Walk(func(page, parent *model.Page) bool {
		d := 0
		if parent != nil {
			d = depth[parent] + 1
		}
		depth[page] = d
		sb.WriteString(strings.Repeat("  ", d))
		sb.WriteString("- ")
		sb.WriteString(page.Title)
		if n := len(page.Files); n > 0 {
			sb.WriteString(" (")
			sb.WriteString(strconv.Itoa(n))
			sb.WriteString(" files)")
		}
		sb.WriteString("\n")
		return true
	})
	md.PlainText(strings.TrimRight(sb.String(), "\n"))
	md.PlainText("")
}

func (w *MarkdownWriter) writePageFailures(md *markdown.Markdown, failures []model.PageFailure) {
	if len(failures) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(failures))
	for i, f := range failures {
		parent := f.Parent
		if parent == "" {
			parent = "-"
		}
		rows[i] = []string{f.Title, parent, truncateString(f.Error, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Linked From", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, files []model.FileResult) {
	if len(files) == 0 {
		return
	}

	md.H2("Files")
	md.PlainText("")

	rows := make([][]string, len(files))
	for i, f := range files {
		detail := formatBytes(f.Size)
		if f.Status == model.FileStatusFailed {
			detail = truncateString(f.Error, 60)
		}
		rows[i] = []string{f.Page, f.Name, statusLabel(string(f.Status)), detail}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "File", "Status", "Size / Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDirFailures(md *markdown.Markdown, failures []model.DirFailure) {
	if len(failures) == 0 {
		return
	}

	md.H2("Skipped Subtrees")
	md.PlainText("")
	items := make([]string, len(failures))
	for i, f := range failures {
		items[i] = "`" + f.Path + "`: " + f.Error
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by wikiexport*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
