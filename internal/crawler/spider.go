package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imagecrawler/internal/model"
)

// Default spider limits.
const (
	DefaultMaxPages    = 1000
	DefaultConcurrency = 3
)

// ErrInvalidSeed is returned by Crawl when the seed URL has no origin.
var ErrInvalidSeed = errors.New("invalid seed url")

// Handler processes one page visit and returns the child tasks it admits.
// A returned error is a page-level failure: it is logged and the crawl
// moves on.
type Handler interface {
	Visit(ctx context.Context, task model.CrawlTask) ([]model.CrawlTask, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task model.CrawlTask) ([]model.CrawlTask, error)

// Visit calls f(ctx, task).
func (f HandlerFunc) Visit(ctx context.Context, task model.CrawlTask) ([]model.CrawlTask, error) {
	return f(ctx, task)
}

// RobotsChecker reports whether robots.txt lets the crawler fetch a URL.
type RobotsChecker interface {
	Allowed(ctx context.Context, pageURL string) bool
}

// Spider drives page visits breadth first from a seed URL.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
//
// Design decision: Levels are processed one at a time because:
//  1. A page at depth n is always visited before any page at depth n+1
//  2. The page cap then keeps the shallowest pages, like a FIFO queue would
//  3. Concurrency inside a level needs no shared queue
type Spider struct {
	// maxDepth limits how deep to crawl. The seed is depth 1.
	maxDepth int

	// maxPages limits the total number of pages dispatched.
	// This prevents runaway crawling on large sites.
	maxPages int

	// concurrency is the number of pages processed at the same time.
	concurrency int

	// robots is consulted before every visit when non-nil.
	robots RobotsChecker

	logger *slog.Logger

	// visited tracks URLs already dispatched to avoid duplicates.
	visited *VisitedSet

	// mutex protects the counters below.
	mutex sync.Mutex

	pagesVisited int
	pagesFailed  int
	pagesBlocked int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. 1 = only the seed page.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithConcurrency sets how many pages are processed in parallel.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = n
	}
}

// WithRobots makes the spider skip URLs disallowed by robots.txt.
func WithRobots(r RobotsChecker) SpiderOption {
	return func(s *Spider) {
		s.robots = r
	}
}

// WithLogger sets the logger for page-level events.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider.
func NewSpider(opts ...SpiderOption) *Spider {
	s := &Spider{
		maxDepth:    1,
		maxPages:    DefaultMaxPages,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.concurrency < 1 {
		s.concurrency = 1
	}
	s.visited = NewVisitedSet(uint(max(s.maxPages, 0)) * DefaultLinkCap)

	return s
}

// Crawl visits seedURL at depth 1 and then every task the handler admits,
// level by level, until no tasks remain or the page cap is reached.
// It returns ctx.Err() when the context is cancelled; pages already
// visited are reflected in Stats.
func (s *Spider) Crawl(ctx context.Context, seedURL string, h Handler) error {
	if _, err := Origin(seedURL); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSeed, seedURL)
	}

	level := []model.CrawlTask{{URL: seedURL, Depth: 1}}
	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := s.crawlLevel(ctx, level, h)
		if err != nil {
			return err
		}
		level = next
	}

	return nil
}

// crawlLevel dispatches the tasks of one depth level and returns the
// children admitted by their handlers, in the order of their parents.
func (s *Spider) crawlLevel(ctx context.Context, level []model.CrawlTask, h Handler) ([]model.CrawlTask, error) {
	children := make([][]model.CrawlTask, len(level))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, task := range level {
		if ctx.Err() != nil {
			break
		}
		if !s.dispatchable(ctx, task) {
			continue
		}

		g.Go(func() error {
			found, err := h.Visit(ctx, task)
			if err != nil {
				s.logger.Warn("page visit failed", "url", task.URL, "depth", task.Depth, "error", err)
				s.mutex.Lock()
				s.pagesFailed++
				s.mutex.Unlock()
				return nil
			}
			children[i] = found
			return nil
		})
	}

	// Handlers never return errors to the group.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var next []model.CrawlTask
	for _, found := range children {
		next = append(next, found...)
	}
	return next, nil
}

// dispatchable reports whether task should be visited and, if so, counts
// it against the page cap.
func (s *Spider) dispatchable(ctx context.Context, task model.CrawlTask) bool {
	if task.Depth < 1 || task.Depth > s.maxDepth {
		return false
	}

	s.mutex.Lock()
	capped := s.pagesVisited >= s.maxPages
	s.mutex.Unlock()
	if capped {
		return false
	}

	if s.visited.TestAndAdd(task.URL) {
		return false
	}

	if s.robots != nil && !s.robots.Allowed(ctx, task.URL) {
		s.logger.Info("blocked by robots.txt", "url", task.URL)
		s.mutex.Lock()
		s.pagesBlocked++
		s.mutex.Unlock()
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.pagesVisited >= s.maxPages {
		return false
	}
	s.pagesVisited++
	return true
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pagesVisited,
		PagesFailed:  s.pagesFailed,
		PagesBlocked: s.pagesBlocked,
		URLsSeen:     s.visited.Len(),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages handed to the handler.
	PagesVisited int

	// PagesFailed is the number of visits that returned an error.
	PagesFailed int

	// PagesBlocked is the number of URLs skipped because of robots.txt.
	PagesBlocked int

	// URLsSeen is the number of unique URLs encountered.
	URLsSeen int
}
