package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/imagecrawler/internal/model"
)

func TestOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lower-cases scheme and host", input: "HTTPS://Example.COM/a/b", want: "https://example.com"},
		{name: "keeps explicit port", input: "http://example.com:8080/x", want: "http://example.com:8080"},
		{name: "drops default https port", input: "https://Example.com:443/x", want: "https://example.com"},
		{name: "drops default http port", input: "http://example.com:80/x", want: "http://example.com"},
		{name: "keeps https port on http", input: "http://example.com:443/x", want: "http://example.com:443"},
		{name: "ignores path query fragment", input: "https://example.com/p?q=1#f", want: "https://example.com"},
		{name: "relative url has no origin", input: "/relative/path", wantErr: true},
		{name: "mailto has no host", input: "mailto:a@example.com", wantErr: true},
		{name: "unparseable url", input: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Origin(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Origin(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Origin(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Origin(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPolicyDecide(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com"
	policy := Policy{MaxDepth: 3, LinkCap: 20}

	tests := []struct {
		name      string
		parent    model.CrawlTask
		link      string
		index     int
		wantOK    bool
		wantURL   string
		wantDepth int
	}{
		{
			name:      "same origin link is admitted one level deeper",
			parent:    model.CrawlTask{URL: seed + "/", Depth: 1},
			link:      "https://example.com/gallery",
			wantOK:    true,
			wantURL:   "https://example.com/gallery",
			wantDepth: 2,
		},
		{
			name:      "fragment is stripped",
			parent:    model.CrawlTask{URL: seed + "/", Depth: 2},
			link:      "https://example.com/a#top",
			wantOK:    true,
			wantURL:   "https://example.com/a",
			wantDepth: 3,
		},
		{
			name:   "parent at max depth admits nothing",
			parent: model.CrawlTask{URL: seed + "/", Depth: 3},
			link:   "https://example.com/a",
		},
		{
			name:   "other host is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "https://cdn.example.com/a",
		},
		{
			name:   "other scheme is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "http://example.com/a",
		},
		{
			name:      "explicit default port is the same origin",
			parent:    model.CrawlTask{URL: seed + "/", Depth: 1},
			link:      "https://example.com:443/gallery",
			wantOK:    true,
			wantURL:   "https://example.com:443/gallery",
			wantDepth: 2,
		},
		{
			name:   "http default port on https seed is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "http://example.com:80/a",
		},
		{
			name:   "other port is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "https://example.com:8443/a",
		},
		{
			name:   "link beyond cap is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "https://example.com/a",
			index:  20,
		},
		{
			name:   "unparseable link is rejected",
			parent: model.CrawlTask{URL: seed + "/", Depth: 1},
			link:   "::not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := policy.Decide(tt.parent, tt.link, tt.index, seed)
			if ok != tt.wantOK {
				t.Fatalf("Decide() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tt.wantURL)
			}
			if got.Depth != tt.wantDepth {
				t.Errorf("Depth = %d, want %d", got.Depth, tt.wantDepth)
			}
		})
	}
}

func TestPolicyAdmit(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com"

	t.Run("only the first links in document order count", func(t *testing.T) {
		t.Parallel()

		links := make([]string, 0, 30)
		// The first five links leave the origin and still use up the cap.
		for i := range 5 {
			links = append(links, fmt.Sprintf("https://other.example/%d", i))
		}
		for i := range 25 {
			links = append(links, fmt.Sprintf("https://example.com/p%d", i))
		}

		policy := NewPolicy(4)
		tasks := policy.Admit(model.CrawlTask{URL: seed, Depth: 1}, links, seed)

		if len(tasks) != 15 {
			t.Fatalf("expected 15 admitted tasks, got %d", len(tasks))
		}
		if tasks[0].URL != "https://example.com/p0" || tasks[14].URL != "https://example.com/p14" {
			t.Errorf("unexpected admission order: first=%s last=%s", tasks[0].URL, tasks[14].URL)
		}
	})

	t.Run("every admitted task respects depth and origin", func(t *testing.T) {
		t.Parallel()

		policy := Policy{MaxDepth: 2, LinkCap: 5}
		links := []string{"https://example.com/a", "https://evil.example/b", "/relative", "https://example.com/c"}
		for depth := 1; depth <= 3; depth++ {
			tasks := policy.Admit(model.CrawlTask{URL: seed, Depth: depth}, links, seed)
			for _, task := range tasks {
				if task.Depth < 1 || task.Depth > policy.MaxDepth {
					t.Errorf("task %v violates depth bound", task)
				}
				if origin, _ := Origin(task.URL); origin != seed {
					t.Errorf("task %v has foreign origin %q", task, origin)
				}
			}
		}
	})
}

func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title> Test Page </title></head><body></body></html>`
		result, err := ParseLinks("https://example.com/page", strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("resolves links in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/b">B</a>
			<a href="a">A</a>
			<a href="https://other.example/x">X</a>
			<a href="/b">B again</a>
			<a href="#">top</a>
			<a href="javascript:void(0)">js</a>
			<a href="mailto:me@example.com">mail</a>
			<a>no href</a>
		</body></html>`

		result, err := ParseLinks("https://example.com/dir/page", strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{"https://example.com/b", "https://example.com/dir/a", "https://other.example/x"}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %v, got %v", want, result.Links)
		}
		for i := range want {
			if result.Links[i] != want[i] {
				t.Errorf("link %d = %q, want %q", i, result.Links[i], want[i])
			}
		}
	})

	t.Run("honors base element", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><base href="https://example.com/root/"></head><body><a href="x">x</a></body></html>`
		result, err := ParseLinks("https://example.com/deep/page", strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(result.Links) != 1 || result.Links[0] != "https://example.com/root/x" {
			t.Errorf("unexpected links %v", result.Links)
		}
	})
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	v := NewVisitedSet(100)
	if v.TestAndAdd("https://Example.com") {
		t.Fatal("first add reported as seen")
	}
	for _, u := range []string{"https://example.com/", "https://example.com/#frag", "HTTPS://EXAMPLE.COM/", "https://example.com:443/"} {
		if !v.TestAndAdd(u) {
			t.Errorf("%q should normalize to an already seen url", u)
		}
	}
	if v.TestAndAdd("https://example.com/other") {
		t.Error("distinct url reported as seen")
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
}

// siteHandler serves a synthetic site where every page links to the pages
// listed in graph.
type siteHandler struct {
	mu     sync.Mutex
	graph  map[string][]string
	visits []model.CrawlTask
	failOn string
	policy Policy
	origin string
}

func (h *siteHandler) Visit(_ context.Context, task model.CrawlTask) ([]model.CrawlTask, error) {
	h.mu.Lock()
	h.visits = append(h.visits, task)
	h.mu.Unlock()

	if task.URL == h.failOn {
		return nil, errors.New("navigation failed")
	}
	return h.policy.Admit(task, h.graph[task.URL], h.origin), nil
}

func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com/"

	t.Run("visits breadth first within depth and dedups", func(t *testing.T) {
		t.Parallel()

		h := &siteHandler{
			graph: map[string][]string{
				seed:                         {"https://example.com/a", "https://example.com/b", "https://other.example/"},
				"https://example.com/a":      {"https://example.com/", "https://example.com/a/deep"},
				"https://example.com/b":      {"https://example.com/a"},
				"https://example.com/a/deep": {"https://example.com/too-deep"},
			},
			policy: NewPolicy(3),
			origin: "https://example.com",
		}

		spider := NewSpider(WithMaxDepth(3), WithConcurrency(2))
		if err := spider.Crawl(context.Background(), seed, h); err != nil {
			t.Fatalf("Crawl() error: %v", err)
		}

		if len(h.visits) != 4 {
			t.Fatalf("expected 4 visits, got %v", h.visits)
		}
		for _, v := range h.visits {
			if v.Depth < 1 || v.Depth > 3 {
				t.Errorf("visit %v outside depth bounds", v)
			}
			if v.URL == "https://example.com/too-deep" {
				t.Error("page beyond max depth was visited")
			}
		}
		if stats := spider.Stats(); stats.PagesVisited != 4 {
			t.Errorf("PagesVisited = %d, want 4", stats.PagesVisited)
		}
	})

	t.Run("page cap bounds visits", func(t *testing.T) {
		t.Parallel()

		links := make([]string, 0, 10)
		for i := range 10 {
			links = append(links, fmt.Sprintf("https://example.com/%d", i))
		}
		h := &siteHandler{
			graph:  map[string][]string{seed: links},
			policy: NewPolicy(2),
			origin: "https://example.com",
		}

		spider := NewSpider(WithMaxDepth(2), WithMaxPages(5))
		if err := spider.Crawl(context.Background(), seed, h); err != nil {
			t.Fatalf("Crawl() error: %v", err)
		}
		if len(h.visits) != 5 {
			t.Errorf("expected 5 visits, got %d", len(h.visits))
		}
	})

	t.Run("failed page does not stop the crawl", func(t *testing.T) {
		t.Parallel()

		h := &siteHandler{
			graph:  map[string][]string{seed: {"https://example.com/a", "https://example.com/b"}},
			failOn: "https://example.com/a",
			policy: NewPolicy(2),
			origin: "https://example.com",
		}

		spider := NewSpider(WithMaxDepth(2))
		if err := spider.Crawl(context.Background(), seed, h); err != nil {
			t.Fatalf("Crawl() error: %v", err)
		}
		stats := spider.Stats()
		if stats.PagesVisited != 3 || stats.PagesFailed != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("robots disallow skips the page", func(t *testing.T) {
		t.Parallel()

		h := &siteHandler{
			graph:  map[string][]string{seed: {"https://example.com/private", "https://example.com/public"}},
			policy: NewPolicy(2),
			origin: "https://example.com",
		}
		robots := robotsFunc(func(u string) bool { return !strings.Contains(u, "/private") })

		spider := NewSpider(WithMaxDepth(2), WithRobots(robots))
		if err := spider.Crawl(context.Background(), seed, h); err != nil {
			t.Fatalf("Crawl() error: %v", err)
		}
		for _, v := range h.visits {
			if strings.Contains(v.URL, "/private") {
				t.Errorf("disallowed page was visited: %v", v)
			}
		}
		if spider.Stats().PagesBlocked != 1 {
			t.Errorf("PagesBlocked = %d, want 1", spider.Stats().PagesBlocked)
		}
	})

	t.Run("cancelled context stops the crawl", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		handler := HandlerFunc(func(_ context.Context, task model.CrawlTask) ([]model.CrawlTask, error) {
			cancel()
			return []model.CrawlTask{{URL: "https://example.com/next", Depth: task.Depth + 1}}, nil
		})

		spider := NewSpider(WithMaxDepth(5))
		err := spider.Crawl(ctx, seed, handler)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if spider.Stats().PagesVisited != 1 {
			t.Errorf("PagesVisited = %d, want 1", spider.Stats().PagesVisited)
		}
	})

	t.Run("seed without origin is rejected", func(t *testing.T) {
		t.Parallel()

		err := NewSpider().Crawl(context.Background(), "not-a-url", HandlerFunc(nil))
		if !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})
}

type robotsFunc func(string) bool

func (f robotsFunc) Allowed(_ context.Context, u string) bool { return f(u) }
