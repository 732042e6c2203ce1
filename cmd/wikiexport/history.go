package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/davintoo/wiki-export-demo/internal/config"
	"github.com/davintoo/wiki-export-demo/internal/database"
)

// errNoManifest is returned when no run was ever recorded.
var errNoManifest = errors.New("no run manifest found")

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous export runs",
		Long: `History lists export runs recorded in the run manifest database.

Each run records the root page, the output directory, when it ran, and how
many pages and files were exported or failed.

Examples:
  # List the 20 most recent runs
  wikiexport history

  # Show the pages and files of run 3
  wikiexport history --show 3

  # Remove runs older than 30 days
  wikiexport history --prune 720h

  # Output runs in JSON format
  wikiexport history --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("manifest-dir", "",
		"Directory of the run manifest database (default: XDG data directory)")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().Int64P("show", "s", 0,
		"Show the pages and files of the run with this ID")
	cmd.Flags().Duration("prune", 0,
		"Delete runs older than this duration")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	prune, err := cmd.Flags().GetDuration("prune")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if prune < 0 {
		return errors.New("prune duration must be positive")
	}

	out := cmd.OutOrStdout()
	db, err := openManifest(cmd)
	if errors.Is(err, errNoManifest) {
		fmt.Fprintln(out, "No export runs recorded yet.")
		fmt.Fprintln(out, "\nRun 'wikiexport' to export the wiki.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if prune > 0 {
		n, err := db.DeleteRunsBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		fmt.Fprintf(out, "Deleted %d run(s) older than %s\n", n, prune)
		return nil
	}

	if showID > 0 {
		return showRun(ctx, out, db, showID, jsonOutput)
	}
	return listRuns(ctx, out, db, limit, jsonOutput)
}

// manifestDir resolves the manifest directory from the flag, falling back
// to the settings file, the environment and the XDG default.
func manifestDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("manifest-dir")
	if err != nil {
		return "", err
	}
	if dir != "" {
		return dir, nil
	}
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		return "", err
	}
	return cfg.ManifestDir, nil
}

// openManifest opens an existing manifest without creating one.
func openManifest(cmd *cobra.Command) (*database.ManifestDB, error) {
	dir, err := manifestDir(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dir, database.Options{EnableWAL: true})
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNoManifest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return db, nil
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, out io.Writer, db *database.ManifestDB, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No export runs recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Export runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-12s  %-14s  %s\n", "ID", "Started", "Root", "Pages", "Files")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %-12s  %-14s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.RootTitle,
			fmt.Sprintf("%d ok, %d failed", r.Summary.PagesExported, r.Summary.PagesFailed),
			fmt.Sprintf("%d ok, %d failed", r.Summary.FilesSaved, r.Summary.FilesFailed),
		)
	}
	fmt.Fprintln(out, "\nUse 'wikiexport history --show <id>' to see the pages of a run.")
	fmt.Fprintln(out, "Use 'wikiexport compare' to compare the latest two runs.")
	return nil
}

// runDetail is the JSON shape of --show.
type runDetail struct {
	Run   *database.RunRecord   `json:"run"`
	Pages []database.PageRecord `json:"pages"`
	Files []database.FileRecord `json:"files"`
}

// showRun prints the pages and files of one run.
func showRun(ctx context.Context, out io.Writer, db *database.ManifestDB, id int64, jsonOutput bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run with ID %d not found", id)
	}
	pages, err := db.ListPages(ctx, id)
	if err != nil {
		return err
	}
	files, err := db.ListFiles(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, runDetail{Run: run, Pages: pages, Files: files})
	}

	fmt.Fprintf(out, "Run %d: %s on %s\n", run.ID, run.RootTitle, run.Host)
	fmt.Fprintf(out, "Output:   %s\n", run.OutputDir)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	fmt.Fprintf(out, "\nPages (%d):\n", len(pages))
	for _, p := range pages {
		if p.Status == database.PageStatusFailed {
			fmt.Fprintf(out, "  [x] %s: %s\n", p.Title, p.Error)
			continue
		}
		fmt.Fprintf(out, "  [ ] %s (%d files, %d children)\n", p.Title, p.FileCount, p.ChildCount)
	}

	if len(files) > 0 {
		fmt.Fprintf(out, "\nFiles (%d):\n", len(files))
		for _, f := range files {
			if f.Error != "" {
				fmt.Fprintf(out, "  [x] %s: %s\n", f.URL, f.Error)
				continue
			}
			fmt.Fprintf(out, "  [ ] %s (%d bytes)\n", f.Path, f.Size)
		}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
