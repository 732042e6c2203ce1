package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/davintoo/wiki-export-demo/internal/crawler"
	"github.com/davintoo/wiki-export-demo/internal/database"
	"github.com/davintoo/wiki-export-demo/internal/metrics"
	"github.com/davintoo/wiki-export-demo/internal/mirror"
	"github.com/davintoo/wiki-export-demo/internal/model"
	"github.com/davintoo/wiki-export-demo/internal/report"
	"github.com/davintoo/wiki-export-demo/internal/wiki"
)

// Step names.
const (
	StepBuild       = "build"
	StepMaterialize = "materialize"
	StepTreeJSON    = "tree_json"
	StepReport      = "report"
	StepManifest    = "manifest"
	StepMetrics     = "metrics"
)

// BuildStep discovers the page tree from run.RootTitle.
type BuildStep struct {
	builder *crawler.Builder
	logger  *slog.Logger
}

// NewBuildStep creates a build step around builder.
func NewBuildStep(builder *crawler.Builder, logger *slog.Logger) *BuildStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildStep{builder: builder, logger: logger}
}

// Name returns the step name.
func (s *BuildStep) Name() string {
	return StepBuild
}

// Do builds the tree into run.Root and records failed pages. An
// unreachable root leaves run.Root nil and is not an error.
func (s *BuildStep) Do(ctx context.Context, run *model.Run) error {
	s.logger.Info("start crawl wiki", "root", run.RootTitle)

	run.Root = s.builder.Build(ctx, run.RootTitle, run.Visited)
	run.PageFailures = append(run.PageFailures, s.builder.Failures()...)

	stats := s.builder.Stats()
	s.logger.Info("wiki crawl finished",
		"pages", stats.Fetched,
		"failed", stats.Failed,
		"links", stats.LinksFound,
	)
	if run.Root == nil {
		s.logger.Warn("root page unreachable, nothing to export", "root", run.RootTitle)
	}
	return ctx.Err()
}

// MaterializeStep writes run.Root under run.OutputDir.
type MaterializeStep struct {
	materializer *mirror.Materializer
}

// NewMaterializeStep creates a materialize step around m.
func NewMaterializeStep(m *mirror.Materializer) *MaterializeStep {
	return &MaterializeStep{materializer: m}
}

// Name returns the step name.
func (s *MaterializeStep) Name() string {
	return StepMaterialize
}

// Do materializes the tree and records file and directory outcomes. It
// fails only when the output root cannot be created or ctx ends.
func (s *MaterializeStep) Do(ctx context.Context, run *model.Run) error {
	err := s.materializer.Materialize(ctx, run.Root, run.OutputDir)
	run.Files = append(run.Files, s.materializer.Files()...)
	run.DirFailures = append(run.DirFailures, s.materializer.DirFailures()...)
	run.FinishedAt = time.Now()
	return err
}

// TreeJSONStep writes the discovered tree as JSON.
type TreeJSONStep struct {
	path   string
	logger *slog.Logger
}

// NewTreeJSONStep creates a step writing the tree to path.
func NewTreeJSONStep(path string, logger *slog.Logger) *TreeJSONStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeJSONStep{path: path, logger: logger}
}

// Name returns the step name.
func (s *TreeJSONStep) Name() string {
	return StepTreeJSON
}

// Do writes the tree file. Failures are logged.
func (s *TreeJSONStep) Do(_ context.Context, run *model.Run) error {
	err := report.WriteFile(s.path, run, func(w io.Writer) report.Writer {
		return report.NewJSONWriter(w, report.WithTreeOnly(), report.WithPrettyPrint())
	})
	if err != nil {
		s.logger.Warn("failed to write tree json", "path", s.path, "error", err)
		return nil
	}
	s.logger.Info("wrote tree json", "path", s.path)
	return nil
}

// ReportStep writes a Markdown run report.
type ReportStep struct {
	path   string
	logger *slog.Logger
}

// NewReportStep creates a step writing the run report to path.
func NewReportStep(path string, logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{path: path, logger: logger}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return StepReport
}

// Do writes the report. Failures are logged.
func (s *ReportStep) Do(_ context.Context, run *model.Run) error {
	err := report.WriteFile(s.path, run, func(w io.Writer) report.Writer {
		return report.NewMarkdownWriter(w)
	})
	if err != nil {
		s.logger.Warn("failed to write report", "path", s.path, "error", err)
		return nil
	}
	s.logger.Info("wrote report", "path", s.path)
	return nil
}

// ManifestStep stores the run in the SQLite manifest.
type ManifestStep struct {
	dir    string
	host   string
	logger *slog.Logger
}

// NewManifestStep creates a step saving runs against host into the
// manifest database in dir.
func NewManifestStep(dir, host string, logger *slog.Logger) *ManifestStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManifestStep{dir: dir, host: host, logger: logger}
}

// Name returns the step name.
func (s *ManifestStep) Name() string {
	return StepManifest
}

// Do saves the run and sets run.ID. Failures are logged.
func (s *ManifestStep) Do(ctx context.Context, run *model.Run) error {
	db, err := database.Open(s.dir, database.DefaultOptions())
	if err != nil {
		s.logger.Warn("failed to open manifest", "dir", s.dir, "error", err)
		return nil
	}
	defer func() {
		if err := db.Close(); err != nil {
			s.logger.Warn("failed to close manifest", "error", err)
		}
	}()

	id, err := db.SaveRun(ctx, run, s.host)
	if err != nil {
		s.logger.Warn("failed to save run to manifest", "path", db.Path(), "error", err)
		return nil
	}
	run.ID = id
	s.logger.Debug("saved run to manifest", "id", id, "path", db.Path())
	return nil
}

// MetricsStep records run totals and writes the metrics textfile.
type MetricsStep struct {
	metrics *metrics.Metrics
	path    string
	logger  *slog.Logger
}

// NewMetricsStep creates a step writing m to path.
func NewMetricsStep(m *metrics.Metrics, path string, logger *slog.Logger) *MetricsStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsStep{metrics: m, path: path, logger: logger}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return StepMetrics
}

// Do writes the textfile. Failures are logged.
func (s *MetricsStep) Do(_ context.Context, run *model.Run) error {
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	s.metrics.ObserveRun(run.Summary().PagesExported, finished)

	if err := s.metrics.WriteTextfile(s.path); err != nil {
		s.logger.Warn("failed to write metrics", "path", s.path, "error", err)
		return nil
	}
	s.logger.Debug("wrote metrics", "path", s.path)
	return nil
}

// DefaultPipelineConfig holds the settings of the default export pipeline.
type DefaultPipelineConfig struct {
	// Logger is passed to every step and component.
	Logger *slog.Logger

	// DownloadConcurrency bounds parallel downloads within a page.
	DownloadConcurrency int

	// RequestDelay is waited between page fetches.
	RequestDelay time.Duration

	// Markdown writes index.md into each page directory.
	Markdown bool

	// TreeJSONFile enables the tree dump when non-empty.
	TreeJSONFile string

	// ReportFile enables the Markdown run report when non-empty.
	ReportFile string

	// ManifestDir enables the run manifest when non-empty.
	ManifestDir string

	// MetricsFile enables the metrics textfile when non-empty.
	MetricsFile string

	// Metrics receives counters; required for MetricsFile.
	Metrics *metrics.Metrics
}

// DefaultPipelineOption configures DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineLogger sets the logger of all steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// WithPipelineDownloadConcurrency sets per-page download parallelism.
func WithPipelineDownloadConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DownloadConcurrency = n
	}
}

// WithPipelineRequestDelay sets the pause between page fetches.
func WithPipelineRequestDelay(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RequestDelay = d
	}
}

// WithPipelineMarkdown enables index.md renditions.
func WithPipelineMarkdown(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Markdown = enabled
	}
}

// WithPipelineTreeJSON enables the tree dump at path.
func WithPipelineTreeJSON(path string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.TreeJSONFile = path
	}
}

// WithPipelineReport enables the run report at path.
func WithPipelineReport(path string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ReportFile = path
	}
}

// WithPipelineManifest enables the run manifest in dir.
func WithPipelineManifest(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ManifestDir = dir
	}
}

// WithPipelineMetrics writes m to path after the run.
func WithPipelineMetrics(m *metrics.Metrics, path string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Metrics = m
		c.MetricsFile = path
	}
}

// DefaultPipeline creates the export pipeline: build, then materialize,
// then the output steps enabled by configOpts.
func DefaultPipeline(client *wiki.Client, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		Logger:              slog.Default(),
		DownloadConcurrency: 1,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := New(append([]Option{WithLogger(cfg.Logger)}, pipelineOpts...)...)

	builder := crawler.NewBuilder(client, client.Host(),
		crawler.WithLogger(cfg.Logger),
		crawler.WithDelay(cfg.RequestDelay),
	)

	mirrorOpts := []mirror.Option{
		mirror.WithLogger(cfg.Logger),
		mirror.WithConcurrency(cfg.DownloadConcurrency),
	}
	if cfg.Markdown {
		mirrorOpts = append(mirrorOpts, mirror.WithMarkdown(mirror.NewRenderer(client.Host())))
	}

	p.AddSteps(
		NewBuildStep(builder, cfg.Logger),
		NewMaterializeStep(mirror.NewMaterializer(client, mirrorOpts...)),
	)

	if cfg.TreeJSONFile != "" {
		p.AddStep(NewTreeJSONStep(cfg.TreeJSONFile, cfg.Logger))
	}
	if cfg.ReportFile != "" {
		p.AddStep(NewReportStep(cfg.ReportFile, cfg.Logger))
	}
	if cfg.ManifestDir != "" {
		p.AddStep(NewManifestStep(cfg.ManifestDir, client.Host(), cfg.Logger))
	}
	if cfg.MetricsFile != "" && cfg.Metrics != nil {
		p.AddStep(NewMetricsStep(cfg.Metrics, cfg.MetricsFile, cfg.Logger))
	}

	return p
}
