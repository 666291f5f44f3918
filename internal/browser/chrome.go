package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/imagecrawler/internal/crawler"
	"github.com/nao1215/imagecrawler/internal/extract"
)

// imagesCompleteJS is true once every <img> has finished loading or failed.
const imagesCompleteJS = `Array.from(document.images).every((img) => img.complete)`

// Chrome renders pages in a shared headless Chrome process.
//
// Design decision: We start one browser per crawl and open one tab per
// page instead of one browser per page because:
//  1. Starting Chrome costs far more than opening a tab
//  2. Tabs share the HTTP cache, so repeated assets load once
//  3. Closing the engine tears down every tab with the process
type Chrome struct {
	opts   Options
	logger *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChrome starts Chrome with the given options.
func NewChrome(opts Options, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+8)
	execOpts = append(execOpts, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
	)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if opts.ProxyURL != "" {
		execOpts = append(execOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrBrowserStart, err)
	}

	logger.Debug("chrome started", "headless", opts.Headless, "proxy", opts.ProxyURL != "")

	return &Chrome{
		opts:          opts,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Open loads pageURL in a new tab.
func (c *Chrome) Open(ctx context.Context, pageURL string) (Page, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	p := &chromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		tracker: newRequestTracker(),
	}
	chromedp.ListenTarget(tabCtx, p.tracker.observe)

	// Create the tab outside the navigation deadline so that the deadline
	// does not close it.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	var location string
	err := p.run(ctx, c.opts.timeout(),
		network.Enable(),
		network.SetBlockedURLs(c.opts.blockedURLs()),
		chromedp.EmulateViewport(ViewportWidth, ViewportHeight),
		chromedp.Navigate(pageURL),
		chromedp.Location(&location),
	)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrNavigation, pageURL, err)
	}

	p.location = location
	if p.location == "" {
		p.location = pageURL
	}
	return p, nil
}

// Close stops the browser process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.browserCancel()
	c.allocCancel()
	return nil
}

// chromePage is one tab.
type chromePage struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tracker  *requestTracker
	location string
}

func (p *chromePage) URL() string {
	return p.location
}

// run executes actions on the tab. The run is aborted when ctx is done or
// timeout passes; a zero timeout only follows ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.derive(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// derive returns a child of the tab context that also ends with ctx.
func (p *chromePage) derive(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// poll calls cond every pollInterval until it reports true.
func (p *chromePage) poll(ctx context.Context, timeout time.Duration, what string, cond func(context.Context) (bool, error)) error {
	runCtx, cancel := p.derive(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond(runCtx)
		if err != nil && runCtx.Err() == nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if ok {
			return nil
		}
		select {
		case <-runCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", what, ErrWaitTimeout)
		case <-ticker.C:
		}
	}
}

func (p *chromePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return p.poll(ctx, timeout, "network idle", func(context.Context) (bool, error) {
		return p.tracker.quietFor(time.Now()) >= networkQuietPeriod, nil
	})
}

func (p *chromePage) WaitImagesLoaded(ctx context.Context, timeout time.Duration) error {
	return p.poll(ctx, timeout, "images loaded", func(runCtx context.Context) (bool, error) {
		var done bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(imagesCompleteJS, &done)); err != nil {
			return false, err
		}
		return done, nil
	})
}

func (p *chromePage) TriggerLazyLoad(ctx context.Context) (int, error) {
	var promoted int
	if err := p.run(ctx, 0, chromedp.Evaluate(extract.LazyExpression(), &promoted)); err != nil {
		return 0, fmt.Errorf("lazy-load trigger: %w", err)
	}
	return promoted, nil
}

func (p *chromePage) Extract(ctx context.Context, params extract.Params) ([]extract.Raw, error) {
	expr, err := extract.Expression(params)
	if err != nil {
		return nil, err
	}

	var raws []extract.Raw
	if err := p.run(ctx, 0, chromedp.Evaluate(expr, &raws)); err != nil {
		return nil, fmt.Errorf("image extraction: %w", err)
	}
	return raws, nil
}

func (p *chromePage) Links(ctx context.Context) ([]string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	result, err := crawler.ParseLinks(p.location, strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse links: %w", err)
	}
	return result.Links, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG encoding.
	if err := p.run(ctx, 0, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// requestTracker follows the requests of a tab to detect network idleness.
type requestTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newRequestTracker() *requestTracker {
	return &requestTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

// observe is registered with chromedp.ListenTarget.
func (t *requestTracker) observe(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *requestTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
}

func (t *requestTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = time.Now()
}

// quietFor returns how long the tab has had no request in flight as of now.
// It is zero while any request is pending.
func (t *requestTracker) quietFor(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inflight) > 0 {
		return 0
	}
	return now.Sub(t.lastActivity)
}
