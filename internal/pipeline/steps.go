package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/imagecrawler/internal/acquire"
	"github.com/nao1215/imagecrawler/internal/browser"
	"github.com/nao1215/imagecrawler/internal/crawler"
	"github.com/nao1215/imagecrawler/internal/extract"
	"github.com/nao1215/imagecrawler/internal/filter"
	"github.com/nao1215/imagecrawler/internal/metrics"
	"github.com/nao1215/imagecrawler/internal/model"
)

// ImagesWait is the fixed budget of the images-loaded wait. Running out of
// it is logged and the page goes on with whatever has loaded.
const ImagesWait = 15 * time.Second

// ScreenshotDir is the subdirectory of the output directory that receives
// page screenshots.
const ScreenshotDir = "screenshots"

// WaitStep lets the page settle before anything is read from it.
//
// The network-idle wait is bounded by the configured page timeout and a
// timeout there aborts the page. The images-loaded wait only logs.
type WaitStep struct {
	timeout    time.Duration
	waitImages bool
	imagesWait time.Duration
	logger     *slog.Logger
}

// NewWaitStep creates a wait step. waitImages enables the images-loaded wait.
func NewWaitStep(timeout time.Duration, waitImages bool, logger *slog.Logger) *WaitStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &WaitStep{
		timeout:    timeout,
		waitImages: waitImages,
		imagesWait: ImagesWait,
		logger:     logger,
	}
}

// Name returns the step name.
func (s *WaitStep) Name() string {
	return "wait"
}

// Do executes the wait step.
func (s *WaitStep) Do(ctx context.Context, v *Visit) error {
	if err := v.Page.WaitNetworkIdle(ctx, s.timeout); err != nil {
		return fmt.Errorf("wait for network idle: %w", err)
	}
	if !s.waitImages {
		return nil
	}

	if err := v.Page.WaitImagesLoaded(ctx, s.imagesWait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("images did not finish loading", "url", v.Task.URL, "error", err)
	}
	return nil
}

// LazyLoadStep triggers lazy-loaded images and gives them time to start.
// The trigger is best effort: a failure is logged and the page goes on.
type LazyLoadStep struct {
	settle time.Duration
	logger *slog.Logger
}

// NewLazyLoadStep creates a lazy-load step that waits extract.LazySettle
// after the trigger.
func NewLazyLoadStep(logger *slog.Logger) *LazyLoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LazyLoadStep{settle: extract.LazySettle, logger: logger}
}

// Name returns the step name.
func (s *LazyLoadStep) Name() string {
	return "lazy_load"
}

// Do executes the lazy-load step.
func (s *LazyLoadStep) Do(ctx context.Context, v *Visit) error {
	promoted, err := v.Page.TriggerLazyLoad(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("lazy-load trigger failed", "url", v.Task.URL, "error", err)
		return nil
	}
	s.logger.Debug("lazy images promoted", "url", v.Task.URL, "count", promoted)

	timer := time.NewTimer(s.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ScreenshotStep saves a full-page PNG of every page under
// <outputDir>/screenshots/<unix-millis>_<depth>.png.
//
// Screenshots are a by-product of the crawl, so a failed capture or write
// is logged and the page goes on.
type ScreenshotStep struct {
	outputDir string
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewScreenshotStep creates a screenshot step.
func NewScreenshotStep(outputDir string, recorder Recorder, logger *slog.Logger) *ScreenshotStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenshotStep{
		outputDir: outputDir,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string {
	return "screenshot"
}

// Do executes the screenshot step.
func (s *ScreenshotStep) Do(ctx context.Context, v *Visit) error {
	png, err := v.Page.Screenshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, browser.ErrScreenshotUnsupported) {
			s.logger.Debug("screenshot skipped", "url", v.Task.URL, "error", err)
		} else {
			s.logger.Warn("screenshot failed", "url", v.Task.URL, "error", err)
		}
		return nil
	}

	taken := s.now()
	dir := filepath.Join(s.outputDir, ScreenshotDir)
	name := strconv.FormatInt(taken.UnixMilli(), 10) + "_" + strconv.Itoa(v.Task.Depth) + ".png"
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		s.logger.Warn("failed to create screenshot directory", "dir", dir, "error", err)
		return nil
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		s.logger.Warn("failed to save screenshot", "path", path, "error", err)
		return nil
	}

	s.recorder.AddScreenshot(model.ScreenshotRecord{
		URL:       v.Task.URL,
		Path:      path,
		Depth:     v.Task.Depth,
		Timestamp: taken,
	})
	return nil
}

// ExtractStep runs the extractor on the page and normalizes its records
// into candidates stamped with the visit time and depth.
type ExtractStep struct {
	params  extract.Params
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewExtractStep creates an extraction step. m may be nil.
func NewExtractStep(params extract.Params, m *metrics.Metrics, logger *slog.Logger) *ExtractStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStep{params: params, metrics: m, logger: logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
func (s *ExtractStep) Do(ctx context.Context, v *Visit) error {
	raws, err := v.Page.Extract(ctx, s.params)
	if err != nil {
		return fmt.Errorf("extract images: %w", err)
	}

	stamp := extract.Stamp{CrawledAt: v.StartedAt, Depth: v.Task.Depth}
	v.Candidates = extract.Normalize(v.Page.URL(), raws, stamp)

	byType := make(map[model.SourceType]int)
	for _, c := range v.Candidates {
		byType[c.Type]++
	}
	for typ, n := range byType {
		s.metrics.AddCandidates(typ.String(), n)
	}

	s.logger.Debug("images extracted", "url", v.Task.URL, "raw", len(raws), "candidates", len(v.Candidates))
	return nil
}

// FilterStep applies the filter options to the candidates.
type FilterStep struct {
	opts filter.Options
}

// NewFilterStep creates a filter step.
func NewFilterStep(opts filter.Options) *FilterStep {
	return &FilterStep{opts: opts}
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return "filter"
}

// Do executes the filter step.
func (s *FilterStep) Do(_ context.Context, v *Visit) error {
	v.Candidates = filter.Apply(v.Candidates, s.opts)
	return nil
}

// AcquireStep materializes the candidates into the output directory and
// records every result. Acquisition failures are results, never errors.
type AcquireStep struct {
	acquirer *acquire.Acquirer
	workers  int
	recorder Recorder
	metrics  *metrics.Metrics
}

// NewAcquireStep creates an acquisition step with a per-page pool of
// workers. One worker keeps downloads in document order.
func NewAcquireStep(a *acquire.Acquirer, workers int, recorder Recorder, m *metrics.Metrics) *AcquireStep {
	return &AcquireStep{acquirer: a, workers: workers, recorder: recorder, metrics: m}
}

// Name returns the step name.
func (s *AcquireStep) Name() string {
	return "acquire"
}

// Do executes the acquisition step.
func (s *AcquireStep) Do(ctx context.Context, v *Visit) error {
	v.Results = s.acquirer.AcquireAll(ctx, v.Candidates, v.Task.URL, s.workers)

	for _, r := range v.Results {
		s.recorder.Record(r)

		switch {
		case r.Skipped:
			s.metrics.IncImage(metrics.OutcomeSkipped)
		case r.Success:
			s.metrics.IncImage(metrics.OutcomeDownloaded)
			s.metrics.AddBytes(r.Size)
		default:
			s.metrics.IncImage(metrics.OutcomeFailed)
		}
	}
	return nil
}

// CatalogueStep hands the candidates to the session catalogue.
type CatalogueStep struct {
	recorder Recorder
	metrics  *metrics.Metrics
}

// NewCatalogueStep creates a catalogue step.
func NewCatalogueStep(recorder Recorder, m *metrics.Metrics) *CatalogueStep {
	return &CatalogueStep{recorder: recorder, metrics: m}
}

// Name returns the step name.
func (s *CatalogueStep) Name() string {
	return "catalogue"
}

// Do executes the catalogue step.
func (s *CatalogueStep) Do(_ context.Context, v *Visit) error {
	s.recorder.Catalogue(v.Candidates)
	for range v.Candidates {
		s.metrics.IncImage(metrics.OutcomeCatalogued)
	}
	return nil
}

// EnqueueStep reads the page's links and admits the children the policy
// allows.
type EnqueueStep struct {
	policy     crawler.Policy
	seedOrigin string
}

// NewEnqueueStep creates a link admission step scoped to seedOrigin.
func NewEnqueueStep(policy crawler.Policy, seedOrigin string) *EnqueueStep {
	return &EnqueueStep{policy: policy, seedOrigin: seedOrigin}
}

// Name returns the step name.
func (s *EnqueueStep) Name() string {
	return "enqueue"
}

// Do executes the link admission step.
func (s *EnqueueStep) Do(ctx context.Context, v *Visit) error {
	// Nothing below the depth bound can be admitted, so skip reading links.
	if v.Task.Depth >= s.policy.MaxDepth {
		return nil
	}

	links, err := v.Page.Links(ctx)
	if err != nil {
		return fmt.Errorf("read links: %w", err)
	}
	v.Links = links
	v.Children = s.policy.Admit(v.Task, links, s.seedOrigin)
	return nil
}
