package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/imagecrawler/internal/acquire"
	"github.com/nao1215/imagecrawler/internal/browser"
	"github.com/nao1215/imagecrawler/internal/config"
	"github.com/nao1215/imagecrawler/internal/crawler"
	"github.com/nao1215/imagecrawler/internal/database"
	"github.com/nao1215/imagecrawler/internal/extract"
	"github.com/nao1215/imagecrawler/internal/filter"
	"github.com/nao1215/imagecrawler/internal/imagemeta"
	"github.com/nao1215/imagecrawler/internal/metrics"
	"github.com/nao1215/imagecrawler/internal/model"
	"github.com/nao1215/imagecrawler/internal/pipeline"
	"github.com/nao1215/imagecrawler/internal/report"
	"github.com/nao1215/imagecrawler/internal/robots"
	"github.com/nao1215/imagecrawler/internal/tor"
)

// Result describes a finished crawl.
type Result struct {
	RunID      string
	Mode       string
	Download   bool
	StartedAt  time.Time
	FinishedAt time.Time

	// Stats are the session counters. ByType is set in catalogue mode only.
	Stats model.SessionStats

	// Spider holds the page counters of the crawl.
	Spider crawler.SpiderStats

	// Images is the deduplicated catalogue. It is empty in download mode.
	Images []model.ImageCandidate

	// Report is the structured report. It is nil in catalogue mode.
	Report *model.CrawlReport

	// ReportPath is where the report or catalogue was written.
	ReportPath string
}

// Duration returns how long the crawl took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns the console summary of the crawl.
func (r *Result) Summary(seed string) report.Summary {
	return report.Summary{
		Seed:         seed,
		Download:     r.Download,
		Stats:        r.Stats,
		Images:       len(r.Images),
		PagesVisited: r.Spider.PagesVisited,
		PagesFailed:  r.Spider.PagesFailed,
		ReportPath:   r.ReportPath,
		Duration:     r.Duration(),
	}
}

// Harvester runs a crawl for one configuration.
//
// Design decision: Config is passed in explicitly and never read from the
// environment because:
//  1. Tests can run several harvesters side by side in one process
//  2. Everything that influences a run is visible at the call site
type Harvester struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time

	// newEngine starts the page engine. Tests replace it.
	newEngine func(opts browser.Options, proxied *http.Client) (browser.Engine, error)
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithLogger sets the logger used by the harvester and every component it
// creates.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harvester) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Harvester for cfg. cfg is not validated until Run.
func New(cfg *config.Config, opts ...Option) *Harvester {
	h := &Harvester{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	h.newEngine = h.startEngine
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run crawls the site and writes the report. When ctx is cancelled the
// pages visited so far are still reported and ctx.Err() is returned along
// with the result.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	cfg := h.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Mode:      model.ModeBrowser,
		Download:  cfg.Download,
		StartedAt: h.now(),
		Images:    make([]model.ImageCandidate, 0),
	}
	if cfg.Engine == config.EngineStatic {
		res.Mode = model.ModeStatic
	}
	logger := h.logger.With("run", res.RunID)

	if cfg.Download || cfg.CaptureScreenshots {
		if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	proxied, stopProxy, err := h.startProxy(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer stopProxy()
	client := httpClientOf(proxied)

	engineOpts := browser.Options{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}
	if proxied != nil {
		engineOpts.ProxyURL = proxied.ProxyURL()
	}
	engine, err := h.newEngine(engineOpts, client)
	if err != nil {
		return nil, fmt.Errorf("failed to start page engine: %w", err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Warn("failed to close page engine", "error", cerr)
		}
	}()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		wait := m.Serve(metricsCtx, cfg.MetricsAddr, logger)
		defer func() {
			stopMetrics()
			wait()
		}()
	}

	session := report.NewSession()
	p, err := h.buildPipeline(session, m, client, logger)
	if err != nil {
		return nil, err
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithConcurrency(cfg.MaxConcurrent),
		crawler.WithLogger(logger),
	}
	if cfg.RespectRobots {
		spiderOpts = append(spiderOpts, crawler.WithRobots(robots.NewAgent(client, cfg.UserAgent)))
	}
	spider := crawler.NewSpider(spiderOpts...)

	logger.Info("starting crawl",
		"seed", cfg.SeedURL,
		"mode", res.Mode,
		"download", cfg.Download,
		"maxDepth", cfg.MaxDepth,
		"concurrency", cfg.MaxConcurrent,
	)

	crawlErr := spider.Crawl(ctx, cfg.SeedURL, pipeline.NewPageHandler(engine, p, m, logger))
	if crawlErr != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("crawl failed: %w", crawlErr)
	}
	if crawlErr != nil {
		logger.Warn("crawl interrupted, reporting partial results", "error", crawlErr)
	}

	res.FinishedAt = h.now()
	res.Spider = spider.Stats()
	res.Stats = session.Stats()
	res.ReportPath = cfg.ReportPath()

	data, err := h.encode(res, session)
	if err != nil {
		return nil, err
	}
	if err := report.WriteFile(res.ReportPath, data); err != nil {
		return nil, err
	}
	logger.Info("report written", "path", res.ReportPath, "bytes", len(data))

	if cfg.SaveHistory {
		// The run is recorded even when ctx was cancelled.
		h.saveHistory(context.WithoutCancel(ctx), res, data, logger)
	}

	return res, crawlErr
}

// startProxy starts the embedded Tor daemon or checks the external proxy.
// It returns a nil client when no proxy is configured.
func (h *Harvester) startProxy(ctx context.Context, logger *slog.Logger) (*tor.Client, func(), error) {
	cfg := h.cfg
	noop := func() {}

	switch {
	case cfg.UseTor:
		embedded := tor.NewEmbeddedTor(
			tor.WithStartupTimeout(cfg.TorStartupTimeout),
			tor.WithLogger(logger),
		)
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		client, err := embedded.NewClient(cfg.Timeout)
		if err != nil {
			stop()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			stop()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
		}
		return client, stop, nil

	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed at %s: %w", client.ProxyAddress(), status.Error())
		}
		logger.Info("proxy connection verified", "address", client.ProxyAddress())
		return client, noop, nil

	default:
		return nil, noop, nil
	}
}

// startEngine is the default engine factory.
func (h *Harvester) startEngine(opts browser.Options, proxied *http.Client) (browser.Engine, error) {
	if h.cfg.Engine == config.EngineStatic {
		var transport http.RoundTripper
		if proxied != nil {
			transport = proxied.Transport
		}
		return browser.NewStatic(opts, transport, h.logger), nil
	}
	return browser.NewChrome(opts, h.logger)
}

// buildPipeline assembles the per-page steps in their fixed order.
func (h *Harvester) buildPipeline(session *report.Session, m *metrics.Metrics, client *http.Client, logger *slog.Logger) (*pipeline.Pipeline, error) {
	cfg := h.cfg

	seedOrigin, err := crawler.Origin(cfg.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewWaitStep(cfg.Timeout, cfg.WaitForImages, logger))
	if cfg.DetectLazyLoad {
		p.AddStep(pipeline.NewLazyLoadStep(logger))
	}
	if cfg.CaptureScreenshots {
		p.AddStep(pipeline.NewScreenshotStep(cfg.OutputDir, session, logger))
	}
	p.AddSteps(
		pipeline.NewExtractStep(extract.Params{
			IncludeBackgrounds: cfg.IncludeBackgrounds,
			IncludeHidden:      cfg.IncludeHiddenImages,
		}, m, logger),
		pipeline.NewFilterStep(filter.Options{
			ExcludeDataURI: cfg.ExcludeDataURI,
			Extensions:     cfg.NormalizedFilter(),
			MinSize:        cfg.MinSize,
		}),
	)
	if cfg.Download {
		p.AddStep(pipeline.NewAcquireStep(h.newAcquirer(client, logger), cfg.Workers, session, m))
	} else {
		p.AddStep(pipeline.NewCatalogueStep(session, m))
	}
	p.AddStep(pipeline.NewEnqueueStep(crawler.NewPolicy(cfg.MaxDepth), seedOrigin))

	logger.Debug("pipeline ready", "steps", p.StepNames())
	return p, nil
}

// newAcquirer creates the downloader, sharing the proxy and the per-host
// rate limit across every page.
func (h *Harvester) newAcquirer(client *http.Client, logger *slog.Logger) *acquire.Acquirer {
	cfg := h.cfg

	fetcherOpts := []acquire.FetcherOption{acquire.WithHTTPClient(client)}
	if cfg.RateLimit > 0 {
		fetcherOpts = append(fetcherOpts, acquire.WithHostLimiter(acquire.NewHostLimiter(cfg.RateLimit, 1)))
	}

	opts := []acquire.Option{
		acquire.WithGetter(acquire.NewFetcher(fetcherOpts...)),
		acquire.WithUserAgent(cfg.UserAgent),
		acquire.WithLogger(logger),
	}
	if cfg.InspectEXIF {
		opts = append(opts, acquire.WithInspector(imagemeta.NewInspector()))
	}
	return acquire.NewAcquirer(cfg.OutputDir, opts...)
}

// encode serializes the catalogue or the structured report and stores the
// matching view on res.
func (h *Harvester) encode(res *Result, session *report.Session) ([]byte, error) {
	cfg := h.cfg

	if !cfg.Download {
		res.Images = session.Images()
		data, err := report.EncodeCatalogue(cfg.Format, res.Images)
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalogue: %w", err)
		}
		return data, nil
	}

	res.Report = session.Report(report.Meta{
		RunID:     res.RunID,
		Seed:      cfg.SeedURL,
		Mode:      res.Mode,
		CrawledAt: res.FinishedAt,
		Config:    cfg.ReportConfig(),
	})
	data, err := report.EncodeReport(cfg.Format, res.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// saveHistory records the run. Failures are logged and never fail the crawl.
func (h *Harvester) saveHistory(ctx context.Context, res *Result, data []byte, logger *slog.Logger) {
	db, err := database.Open(h.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Error("failed to open history database", "dir", h.cfg.DBDir, "error", err)
		return
	}
	defer db.Close()

	run := &database.Run{
		RunID:        res.RunID,
		Seed:         h.cfg.SeedURL,
		Mode:         res.Mode,
		Download:     res.Download,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		PagesVisited: res.Spider.PagesVisited,
		PagesFailed:  res.Spider.PagesFailed,
		Images:       len(res.Images),
		Downloaded:   res.Stats.Success - res.Stats.Skipped,
		Failed:       res.Stats.Failed,
		Skipped:      res.Stats.Skipped,
		TotalSize:    res.Stats.TotalSize,
		ReportPath:   res.ReportPath,
	}
	if json.Valid(data) {
		run.Report = string(data)
	}

	if _, err := db.SaveRun(ctx, run); err != nil {
		logger.Error("failed to save run", "error", err)
		return
	}
	logger.Info("run saved to history", "db", db.Path())
}

// httpClientOf returns the proxied HTTP client, or nil without a proxy.
func httpClientOf(c *tor.Client) *http.Client {
	if c == nil {
		return nil
	}
	return c.NewHTTPClient()
}

// IsInterrupted reports whether err from Run means the crawl was cancelled
// and a partial report was written.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
