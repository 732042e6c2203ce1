package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davintoo/wiki-export-demo/internal/config"
	wlog "github.com/davintoo/wiki-export-demo/internal/log"
	"github.com/davintoo/wiki-export-demo/internal/metrics"
	"github.com/davintoo/wiki-export-demo/internal/model"
	"github.com/davintoo/wiki-export-demo/internal/pipeline"
	"github.com/davintoo/wiki-export-demo/internal/report"
	"github.com/davintoo/wiki-export-demo/internal/tracing"
	"github.com/davintoo/wiki-export-demo/internal/wiki"
)

// NewRootCmd creates the root command. Running it without a subcommand
// performs an export.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikiexport",
		Short: "Mirror a wiki into a local directory tree",
		Long: `wikiexport walks a wiki from its root page, following links between pages,
and writes one directory per page holding the page's attachments.

Every page is fetched once, even when pages link to each other in cycles.
A page that cannot be fetched is skipped together with the pages only it
links to; the export continues with everything else.

The wiki host and API token are read from the environment (or a .env file):
  CBT_HOST    wiki base URL, e.g. https://wiki.example.com
  API_TOKEN   API bearer token
  OUTPUT_DIR  export directory (default: "out" beside the executable)

Examples:
  # Export from "Home" into ./out
  CBT_HOST=https://wiki.example.com API_TOKEN=secret wikiexport

  # Export into a specific directory with a run report
  wikiexport -o ./mirror --report ./mirror-report.md

  # Also write each page as Markdown and dump the page tree
  wikiexport --markdown --tree-json ./tree.json`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Configuration sources
	cmd.Flags().StringP("config", "c", "",
		"Settings file path (default: .wikiexport in current or home directory)")
	cmd.Flags().String("env-file", "",
		"Environment file to load (default: .env in current directory)")

	// Export flags
	cmd.Flags().String("host", "",
		"Wiki base URL (overrides CBT_HOST)")
	cmd.Flags().StringP("output", "o", "",
		"Export directory (overrides OUTPUT_DIR)")
	cmd.Flags().StringP("root", "r", config.DefaultRootTitle,
		"Title of the page the export starts from")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each HTTP request (0 disables it)")
	cmd.Flags().Duration("delay", config.DefaultRequestDelay,
		"Pause between page fetches (overrides REQUEST_DELAY)")
	cmd.Flags().IntP("concurrency", "j", config.DefaultDownloadConcurrency,
		"Number of files of one page downloaded at the same time")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes (0 means no limit)")
	cmd.Flags().String("log-format", config.DefaultLogFormat,
		"Log format: text or json")

	// Output flags
	cmd.Flags().Bool("markdown", false,
		"Write each page's content as index.md in its directory")
	cmd.Flags().String("report", "",
		"Write a Markdown run report to the specified file")
	cmd.Flags().String("tree-json", "",
		"Write the discovered page tree as JSON to the specified file")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus text-format metrics to the specified file")
	cmd.Flags().String("manifest-dir", "",
		"Directory of the run manifest database (default: XDG data directory)")
	cmd.Flags().Bool("no-manifest", false,
		"Do not record the run in the manifest database")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runRootCmd executes the export.
func runRootCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceCfg := tracing.DefaultConfig(getVersion())
	traceCfg.Writer = cmd.ErrOrStderr()
	return runExport(ctx, cfg, traceCfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig loads the settings file, .env and environment, then applies
// the flags the user set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFilePath: configPath,
		EnvFile:        envFile,
	})
	if err != nil {
		return nil, err
	}

	if getVerboseFlag(cmd) {
		cfg.Verbose = true
	}

	stringFlags := map[string]*string{
		"host":         &cfg.Host,
		"output":       &cfg.OutputDir,
		"root":         &cfg.RootTitle,
		"user-agent":   &cfg.UserAgent,
		"log-format":   &cfg.LogFormat,
		"report":       &cfg.ReportFile,
		"tree-json":    &cfg.TreeJSONFile,
		"metrics-file": &cfg.MetricsFile,
		"manifest-dir": &cfg.ManifestDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("timeout") {
		if cfg.RequestTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.RequestDelay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.DownloadConcurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("markdown") {
		if cfg.WriteMarkdown, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-manifest") {
		noManifest, err := flags.GetBool("no-manifest")
		if err != nil {
			return nil, err
		}
		cfg.SaveManifest = !noManifest
	}

	cfg.Normalize()
	return cfg, nil
}

// setupLogger creates a structured logger that never prints the token.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return wlog.New(w, wlog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogFormat == "json",
		Secrets: []string{cfg.Token},
	})
}

// runExport builds the tree, materializes it and writes the enabled
// outputs. Page, file and directory failures only show up in the logs and
// the summary; the returned error is non-nil for fatal problems. A tracing
// setup failure is logged and the export runs untraced.
func runExport(ctx context.Context, cfg *config.Config, traceCfg tracing.Config, logger *slog.Logger, out io.Writer) error {
	shutdown, err := tracing.Setup(ctx, traceCfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
	}

	client, err := wiki.NewClient(cfg.Host, cfg.Token,
		wiki.WithUserAgent(cfg.UserAgent),
		wiki.WithHeaders(cfg.Headers),
		wiki.WithMaxBodySize(cfg.MaxBodySize),
		wiki.WithTimeout(cfg.RequestTimeout),
		wiki.WithMetrics(m),
		wiki.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create wiki client: %w", err)
	}

	p := pipeline.DefaultPipeline(client,
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipelineOptions(cfg, logger, m)...,
	)

	logger.Debug("starting export",
		"host", cfg.Host,
		"root", cfg.RootTitle,
		"output", cfg.OutputDir,
		"steps", p.StepNames(),
	)

	run := model.NewRun(cfg.RootTitle, cfg.OutputDir)
	if err := p.Execute(ctx, run); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if _, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).Write(run); err != nil {
		logger.Warn("failed to print summary", "error", err)
	}
	fmt.Fprintln(out, "Done")
	return nil
}

// pipelineOptions maps cfg onto the default pipeline's options.
func pipelineOptions(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) []pipeline.DefaultPipelineOption {
	opts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineLogger(logger),
		pipeline.WithPipelineDownloadConcurrency(cfg.DownloadConcurrency),
		pipeline.WithPipelineRequestDelay(cfg.RequestDelay),
		pipeline.WithPipelineMarkdown(cfg.WriteMarkdown),
	}
	if cfg.TreeJSONFile != "" {
		opts = append(opts, pipeline.WithPipelineTreeJSON(cfg.TreeJSONFile))
	}
	if cfg.ReportFile != "" {
		opts = append(opts, pipeline.WithPipelineReport(cfg.ReportFile))
	}
	if cfg.SaveManifest && cfg.ManifestDir != "" {
		opts = append(opts, pipeline.WithPipelineManifest(cfg.ManifestDir))
	}
	if m != nil {
		opts = append(opts, pipeline.WithPipelineMetrics(m, cfg.MetricsFile))
	}
	return opts
}
