package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/nao1215/imagecrawler/internal/crawler"
	"github.com/nao1215/imagecrawler/internal/extract"
)

// Static loads raw HTML over HTTP without running scripts.
//
// Design decision: We fetch with colly rather than a bare http.Client
// because colly already handles charset detection, body size limits and
// redirects the way a crawler wants them, and its collectors can be cloned
// cheaply per page while sharing one transport.
type Static struct {
	base      *colly.Collector
	extractor *extract.StaticExtractor
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewStatic creates a static engine. A nil transport uses the default one;
// pass a proxied transport to route page fetches through a proxy.
func NewStatic(opts Options, transport http.RoundTripper, logger *slog.Logger) *Static {
	if logger == nil {
		logger = slog.Default()
	}

	collectorOpts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(ua))
	}
	base := colly.NewCollector(collectorOpts...)
	base.SetRequestTimeout(opts.timeout())
	if transport != nil {
		base.WithTransport(transport)
	}

	return &Static{
		base:      base,
		extractor: extract.NewStaticExtractor(),
		logger:    logger,
	}
}

// Open fetches pageURL and parses it.
func (s *Static) Open(ctx context.Context, pageURL string) (Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		body     []byte
		location string
	)
	c := s.base.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		location = r.Request.URL.String()
	})
	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, pageURL, err)
	}
	if location == "" {
		location = pageURL
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, pageURL, err)
	}

	s.logger.Debug("page fetched", "url", location, "bytes", len(body))

	return &staticPage{
		location:  location,
		body:      body,
		doc:       doc,
		extractor: s.extractor,
	}, nil
}

// Close marks the engine closed.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type staticPage struct {
	location  string
	body      []byte
	doc       *goquery.Document
	extractor *extract.StaticExtractor
}

func (p *staticPage) URL() string {
	return p.location
}

// The document is complete once the response body has arrived.
func (p *staticPage) WaitNetworkIdle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *staticPage) WaitImagesLoaded(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (p *staticPage) TriggerLazyLoad(ctx context.Context) (int, error) {
	return 0, ctx.Err()
}

func (p *staticPage) Extract(ctx context.Context, params extract.Params) ([]extract.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.extractor.Extract(p.doc, p.location, params), nil
}

func (p *staticPage) Links(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := crawler.ParseLinks(p.location, bytes.NewReader(p.body))
	if err != nil {
		return nil, fmt.Errorf("parse links: %w", err)
	}
	return result.Links, nil
}

func (p *staticPage) Screenshot(context.Context) ([]byte, error) {
	return nil, ErrScreenshotUnsupported
}

func (p *staticPage) Close() error {
	return nil
}
