package pipeline

import (
	"context"
	"log/slog"

	"github.com/davintoo/wiki-export-demo/internal/model"
	"github.com/davintoo/wiki-export-demo/internal/tracing"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run
// accumulated by previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; non-critical errors
	// should be recorded in the run or logged, and return nil.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// Cancellation is checked before each step; steps handle it themselves
// while running.
//
// Returns the first error encountered if continueOnError is false, or the
// last error otherwise. Completed steps are appended to run.CompletedSteps.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	var lastErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "root", run.RootTitle)

		stepCtx, span := tracing.StartSpan(ctx, "pipeline."+step.Name())
		err := step.Do(stepCtx, run)
		tracing.RecordError(span, err)
		span.End()

		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"root", run.RootTitle,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			lastErr = err
			continue
		}

		p.logger.Debug("step completed", "step", step.Name())
		run.CompletedSteps = append(run.CompletedSteps, step.Name())
	}

	return lastErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
