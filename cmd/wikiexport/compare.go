package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/davintoo/wiki-export-demo/internal/database"
)

// NewCompareCmd creates the compare command.
// This command compares two export runs stored in the manifest.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [previous-id] [current-id]",
		Short: "Compare two export runs",
		Long: `Compare displays differences between two export runs recorded in the manifest.

It shows:
- Pages that appeared or disappeared from the tree
- Pages that started or stopped failing
- Files whose content changed, by BLAKE2b digest

Without arguments the latest two runs are compared. With one ID, that run
is compared with the latest run.

Examples:
  # Compare the latest two runs
  wikiexport compare

  # Compare run 3 with the latest run
  wikiexport compare 3

  # Compare run 3 with run 7 in Markdown format
  wikiexport compare --markdown 3 7`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().String("manifest-dir", "",
		"Directory of the run manifest database (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid run ID %q", arg)
		}
		ids = append(ids, id)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}

	db, err := openManifest(cmd)
	if errors.Is(err, errNoManifest) {
		return errors.New("no export runs recorded yet; run 'wikiexport' first")
	}
	if err != nil {
		return err
	}
	defer db.Close()

	previous, current, err := loadComparedRuns(cmd, db, ids)
	if err != nil {
		return err
	}

	result := compareRuns(previous, current)

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return writeJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// runSnapshot is one side of a comparison.
type runSnapshot struct {
	Run   database.RunRecord
	Pages []database.PageRecord
	Files []database.FileRecord
}

// loadComparedRuns resolves ids into the previous and current run.
func loadComparedRuns(cmd *cobra.Command, db *database.ManifestDB, ids []int64) (*runSnapshot, *runSnapshot, error) {
	ctx := cmd.Context()

	var previousID, currentID int64
	switch len(ids) {
	case 2:
		previousID, currentID = ids[0], ids[1]
	default:
		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			return nil, nil, err
		}
		if len(ids) == 1 {
			if len(runs) == 0 {
				return nil, nil, errors.New("no export runs recorded yet")
			}
			previousID, currentID = ids[0], runs[0].ID
			break
		}
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previousID, currentID = runs[1].ID, runs[0].ID
	}
	if previousID == currentID {
		return nil, nil, fmt.Errorf("cannot compare run %d with itself", previousID)
	}

	load := func(id int64) (*runSnapshot, error) {
		run, err := db.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("run with ID %d not found", id)
		}
		pages, err := db.ListPages(ctx, id)
		if err != nil {
			return nil, err
		}
		files, err := db.ListFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		return &runSnapshot{Run: *run, Pages: pages, Files: files}, nil
	}

	previous, err := load(previousID)
	if err != nil {
		return nil, nil, err
	}
	current, err := load(currentID)
	if err != nil {
		return nil, nil, err
	}
	return previous, current, nil
}

// ComparisonResult holds the differences between two runs.
type ComparisonResult struct {
	// PreviousRun and CurrentRun describe the compared runs.
	PreviousRun RunMetadata `json:"previous_run"`
	CurrentRun  RunMetadata `json:"current_run"`

	// AddedPages are exported now but were not before.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages were exported before but are not now, either because
	// nothing links to them any more or because they fail.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// NewlyFailedPages fail now but did not before.
	NewlyFailedPages []string `json:"newly_failed_pages,omitempty"`

	// RecoveredPages failed before but do not now.
	RecoveredPages []string `json:"recovered_pages,omitempty"`

	// ChangedFiles are saved in both runs with different content.
	ChangedFiles []string `json:"changed_files,omitempty"`

	// UnchangedPages is the number of pages exported in both runs.
	UnchangedPages int `json:"unchanged_pages"`
}

// RunMetadata summarizes one compared run.
type RunMetadata struct {
	ID            int64     `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	PagesExported int       `json:"pages_exported"`
	PagesFailed   int       `json:"pages_failed"`
	FilesSaved    int       `json:"files_saved"`
	FilesFailed   int       `json:"files_failed"`
}

func newRunMetadata(r database.RunRecord) RunMetadata {
	return RunMetadata{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		PagesExported: r.Summary.PagesExported,
		PagesFailed:   r.Summary.PagesFailed,
		FilesSaved:    r.Summary.FilesSaved,
		FilesFailed:   r.Summary.FilesFailed,
	}
}

// compareRuns computes the differences between previous and current.
// Lists keep the order pages and files were recorded in.
func compareRuns(previous, current *runSnapshot) *ComparisonResult {
	result := &ComparisonResult{
		PreviousRun: newRunMetadata(previous.Run),
		CurrentRun:  newRunMetadata(current.Run),
	}

	prevPages := pageStatuses(previous.Pages)
	curPages := pageStatuses(current.Pages)

	for _, p := range current.Pages {
		before, seen := prevPages[p.Title]
		switch p.Status {
		case database.PageStatusExported:
			switch {
			case !seen:
				result.AddedPages = append(result.AddedPages, p.Title)
			case before == database.PageStatusFailed:
				result.RecoveredPages = append(result.RecoveredPages, p.Title)
			default:
				result.UnchangedPages++
			}
		case database.PageStatusFailed:
			if before != database.PageStatusFailed {
				result.NewlyFailedPages = append(result.NewlyFailedPages, p.Title)
			}
		}
	}
	for _, p := range previous.Pages {
		if p.Status != database.PageStatusExported {
			continue
		}
		if curPages[p.Title] != database.PageStatusExported {
			result.RemovedPages = append(result.RemovedPages, p.Title)
		}
	}

	prevDigests := fileDigests(previous.Files)
	for _, f := range current.Files {
		if f.Digest == "" {
			continue
		}
		if before, ok := prevDigests[f.URL]; ok && before != f.Digest {
			result.ChangedFiles = append(result.ChangedFiles, f.URL)
		}
	}

	return result
}

// pageStatuses maps titles to their status. Exported wins over failed when
// a title was recorded twice.
func pageStatuses(pages []database.PageRecord) map[string]string {
	m := make(map[string]string, len(pages))
	for _, p := range pages {
		if m[p.Title] == database.PageStatusExported {
			continue
		}
		m[p.Title] = p.Status
	}
	return m
}

// fileDigests maps URLs of saved files to their digest.
func fileDigests(files []database.FileRecord) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		if f.Digest != "" {
			m[f.URL] = f.Digest
		}
	}
	return m
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1(fmt.Sprintf("Run Comparison: #%d → #%d", result.PreviousRun.ID, result.CurrentRun.ID))
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date",
				result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"),
				result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"),
				"-"},
			countRow("Pages exported", result.PreviousRun.PagesExported, result.CurrentRun.PagesExported),
			countRow("Pages failed", result.PreviousRun.PagesFailed, result.CurrentRun.PagesFailed),
			countRow("Files saved", result.PreviousRun.FilesSaved, result.CurrentRun.FilesSaved),
			countRow("Files failed", result.PreviousRun.FilesFailed, result.CurrentRun.FilesFailed),
		},
	})
	md.PlainText("")

	sections := []struct {
		title string
		items []string
	}{
		{"Added Pages", result.AddedPages},
		{"Removed Pages", result.RemovedPages},
		{"Newly Failed Pages", result.NewlyFailedPages},
		{"Recovered Pages", result.RecoveredPages},
		{"Changed Files", result.ChangedFiles},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", s.title, len(s.items)))
		md.PlainText("")
		md.BulletList(s.items...)
		md.PlainText("")
	}

	if result.UnchangedPages > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d pages unchanged*", result.UnchangedPages)
	}

	return md.Build()
}

func countRow(label string, previous, current int) []string {
	return []string{label, strconv.Itoa(previous), strconv.Itoa(current), formatDelta(current - previous)}
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Run Comparison: #%d -> #%d\n", result.PreviousRun.ID, result.CurrentRun.ID)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s\n", result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  %s\n", result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	for _, row := range [][]string{
		countRow("Pages exported", result.PreviousRun.PagesExported, result.CurrentRun.PagesExported),
		countRow("Pages failed", result.PreviousRun.PagesFailed, result.CurrentRun.PagesFailed),
		countRow("Files saved", result.PreviousRun.FilesSaved, result.CurrentRun.FilesSaved),
		countRow("Files failed", result.PreviousRun.FilesFailed, result.CurrentRun.FilesFailed),
	} {
		fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}

	printList := func(title, marker string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s (%d):\n", title, len(items))
		for _, item := range items {
			fmt.Fprintf(out, "  [%s] %s\n", marker, item)
		}
	}
	printList("Added Pages", "+", result.AddedPages)
	printList("Removed Pages", "-", result.RemovedPages)
	printList("Newly Failed Pages", "!", result.NewlyFailedPages)
	printList("Recovered Pages", "*", result.RecoveredPages)
	printList("Changed Files", "~", result.ChangedFiles)

	if result.UnchangedPages > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", result.UnchangedPages)
	}

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
