// Package metrics exposes crawl counters as Prometheus collectors.
//
// Every helper is safe to call on a nil *Metrics, so components take an
// optional *Metrics and never check whether metrics are enabled.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for images.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeCatalogued = "catalogued"
)

// Outcome labels for pages.
const (
	PageVisited = "visited"
	PageFailed  = "failed"
)

// Metrics bundles the Prometheus collectors of one crawl process.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      *prometheus.CounterVec
	ImagesTotal     *prometheus.CounterVec
	CandidatesTotal *prometheus.CounterVec
	BytesTotal      prometheus.Counter
	PageDuration    prometheus.Histogram
}

// New constructs and registers all collectors on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagecrawler_pages_total",
			Help: "Pages processed by outcome.",
		},
		[]string{"outcome"},
	)
	images := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagecrawler_images_total",
			Help: "Image candidates handled by outcome.",
		},
		[]string{"outcome"},
	)
	candidates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagecrawler_candidates_total",
			Help: "Image candidates extracted, by source type.",
		},
		[]string{"type"},
	)
	bytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imagecrawler_downloaded_bytes_total",
			Help: "Bytes written for downloaded images.",
		},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imagecrawler_page_duration_seconds",
			Help:    "Time spent processing one page.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	registry.MustRegister(pages, images, candidates, bytesTotal, pageDuration)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		ImagesTotal:     images,
		CandidatesTotal: candidates,
		BytesTotal:      bytesTotal,
		PageDuration:    pageDuration,
	}
}

// IncPage counts a page by outcome.
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// IncImage counts an image by outcome.
func (m *Metrics) IncImage(outcome string) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(outcome).Inc()
}

// AddCandidates counts extracted candidates of one source type.
func (m *Metrics) AddCandidates(sourceType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CandidatesTotal.WithLabelValues(sourceType).Add(float64(n))
}

// AddBytes adds to the downloaded byte counter.
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesTotal.Add(float64(n))
}

// ObservePage records how long one page took.
func (m *Metrics) ObservePage(d time.Duration) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server for the registry on addr and shuts it down
// when ctx is done. The returned function waits for the shutdown.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics server enabled", "addr", addr)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	}()

	return func() { <-stopped }
}
