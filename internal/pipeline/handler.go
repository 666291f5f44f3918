package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/imagecrawler/internal/browser"
	"github.com/nao1215/imagecrawler/internal/metrics"
	"github.com/nao1215/imagecrawler/internal/model"
)

// PageHandler opens each crawl task with a browser engine and runs the
// pipeline over it. It implements crawler.Handler.
type PageHandler struct {
	engine   browser.Engine
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewPageHandler creates a handler. m may be nil.
func NewPageHandler(engine browser.Engine, p *Pipeline, m *metrics.Metrics, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		engine:   engine,
		pipeline: p,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Visit loads task and returns the children the page admitted.
// Any error aborts this page only; the crawler logs it and moves on.
func (h *PageHandler) Visit(ctx context.Context, task model.CrawlTask) ([]model.CrawlTask, error) {
	started := h.now()
	defer func() {
		h.metrics.ObservePage(time.Since(started))
	}()

	page, err := h.engine.Open(ctx, task.URL)
	if err != nil {
		h.metrics.IncPage(metrics.PageFailed)
		return nil, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			h.logger.Debug("failed to close page", "url", task.URL, "error", cerr)
		}
	}()

	v := &Visit{
		Task:      task,
		Page:      page,
		StartedAt: started,
	}
	if err := h.pipeline.Execute(ctx, v); err != nil {
		h.metrics.IncPage(metrics.PageFailed)
		return nil, err
	}

	h.metrics.IncPage(metrics.PageVisited)
	h.logger.Info("page processed",
		"url", task.URL,
		"depth", task.Depth,
		"images", len(v.Candidates),
		"links", len(v.Children),
	)
	return v.Children, nil
}
