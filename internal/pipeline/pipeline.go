package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/imagecrawler/internal/browser"
	"github.com/nao1215/imagecrawler/internal/model"
)

// Visit is the state of one page as it moves through the pipeline.
type Visit struct {
	// Task is the page being visited.
	Task model.CrawlTask

	// Page is the loaded document.
	Page browser.Page

	// StartedAt is when the page was opened. Candidates of the page are
	// stamped with it.
	StartedAt time.Time

	// Candidates are the image candidates of the page. Extraction fills
	// them in and filtering narrows them down.
	Candidates []model.ImageCandidate

	// Results are the acquisition results in candidate order.
	Results []model.DownloadResult

	// Links are the page's a[href] targets in document order.
	Links []string

	// Children are the tasks admitted from Links.
	Children []model.CrawlTask

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string
}

// Step defines the interface that all pipeline steps must implement.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
type Step interface {
	// Do executes the pipeline step.
	// Returning an error aborts the page; problems a page can live with
	// are logged by the step, which then returns nil.
	Do(ctx context.Context, v *Visit) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Recorder receives everything a crawl reports about its pages.
// report.Session implements it.
type Recorder interface {
	Record(result model.DownloadResult)
	AddScreenshot(record model.ScreenshotRecord)
	Catalogue(cands []model.ImageCandidate)
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
//
// The default is to stop: a page whose extraction failed has nothing to
// filter or download.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
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

// Execute runs all pipeline steps in sequence over v.
//
// Cancellation is checked before each step; steps bound their own waits.
// The first step error is returned unless continueOnError is set, in which
// case the first error is returned after every step has run.
func (p *Pipeline) Execute(ctx context.Context, v *Visit) error {
	var firstErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", v.Task.URL,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", v.Task.URL,
		)

		if err := step.Do(ctx, v); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", v.Task.URL,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		v.PerformedSteps = append(v.PerformedSteps, step.Name())
	}

	return firstErr
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
