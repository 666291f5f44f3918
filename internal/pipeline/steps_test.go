package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/imagecrawler/internal/acquire"
	"github.com/nao1215/imagecrawler/internal/browser"
	"github.com/nao1215/imagecrawler/internal/crawler"
	"github.com/nao1215/imagecrawler/internal/extract"
	"github.com/nao1215/imagecrawler/internal/filter"
	"github.com/nao1215/imagecrawler/internal/model"
)

// pngPayload is the base64 of the PNG signature.
const pngPayload = "iVBORw0KGgo="

// fakePage is a scripted browser.Page.
type fakePage struct {
	url        string
	raws       []extract.Raw
	links      []string
	screenshot []byte

	idleErr       error
	imagesErr     error
	lazyErr       error
	extractErr    error
	linksErr      error
	screenshotErr error

	mu           sync.Mutex
	lazyCalls    int
	imagesCalls  int
	gotParams    extract.Params
	linksCalls   int
	closed       bool
	imagesBudget time.Duration
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) WaitNetworkIdle(context.Context, time.Duration) error { return p.idleErr }

func (p *fakePage) WaitImagesLoaded(_ context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imagesCalls++
	p.imagesBudget = timeout
	return p.imagesErr
}

func (p *fakePage) TriggerLazyLoad(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lazyCalls++
	return 2, p.lazyErr
}

func (p *fakePage) Extract(_ context.Context, params extract.Params) ([]extract.Raw, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotParams = params
	return p.raws, p.extractErr
}

func (p *fakePage) Links(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linksCalls++
	return p.links, p.linksErr
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return p.screenshot, p.screenshotErr
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeRecorder collects everything recorded.
type fakeRecorder struct {
	mu          sync.Mutex
	results     []model.DownloadResult
	screenshots []model.ScreenshotRecord
	catalogue   []model.ImageCandidate
}

func (r *fakeRecorder) Record(res model.DownloadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *fakeRecorder) AddScreenshot(rec model.ScreenshotRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screenshots = append(r.screenshots, rec)
}

func (r *fakeRecorder) Catalogue(cands []model.ImageCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogue = append(r.catalogue, cands...)
}

func visitOf(p *fakePage, depth int) *Visit {
	return &Visit{
		Task:      model.CrawlTask{URL: p.url, Depth: depth},
		Page:      p,
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWaitStep(t *testing.T) {
	t.Parallel()

	t.Run("network idle timeout aborts the page", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{url: "https://example.com/", idleErr: browser.ErrWaitTimeout}
		err := NewWaitStep(time.Second, true, nil).Do(context.Background(), visitOf(page, 1))
		if !errors.Is(err, browser.ErrWaitTimeout) {
			t.Errorf("Do() error = %v, want ErrWaitTimeout", err)
		}
		if page.imagesCalls != 0 {
			t.Error("images wait must not run after a failed idle wait")
		}
	})

	t.Run("images timeout is only logged", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{url: "https://example.com/", imagesErr: browser.ErrWaitTimeout}
		if err := NewWaitStep(time.Second, true, nil).Do(context.Background(), visitOf(page, 1)); err != nil {
			t.Errorf("Do() error = %v, want nil", err)
		}
		if page.imagesBudget != ImagesWait {
			t.Errorf("images wait budget = %v, want %v", page.imagesBudget, ImagesWait)
		}
	})

	t.Run("images wait can be disabled", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{url: "https://example.com/"}
		if err := NewWaitStep(time.Second, false, nil).Do(context.Background(), visitOf(page, 1)); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if page.imagesCalls != 0 {
			t.Error("images wait ran although disabled")
		}
	})
}

func TestLazyLoadStep(t *testing.T) {
	t.Parallel()

	t.Run("waits the settle time", func(t *testing.T) {
		t.Parallel()

		step := NewLazyLoadStep(nil)
		step.settle = 20 * time.Millisecond
		page := &fakePage{url: "https://example.com/"}

		start := time.Now()
		if err := step.Do(context.Background(), visitOf(page, 1)); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < step.settle {
			t.Errorf("returned after %v, want at least %v", elapsed, step.settle)
		}
		if page.lazyCalls != 1 {
			t.Errorf("trigger called %d times, want 1", page.lazyCalls)
		}
	})

	t.Run("trigger failure is not fatal", func(t *testing.T) {
		t.Parallel()

		step := NewLazyLoadStep(nil)
		page := &fakePage{url: "https://example.com/", lazyErr: errors.New("evaluation failed")}
		if err := step.Do(context.Background(), visitOf(page, 1)); err != nil {
			t.Errorf("Do() error = %v, want nil", err)
		}
	})

	t.Run("cancellation interrupts the settle wait", func(t *testing.T) {
		t.Parallel()

		step := NewLazyLoadStep(nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		page := &fakePage{url: "https://example.com/"}
		if err := step.Do(ctx, visitOf(page, 1)); !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	})
}

func TestScreenshotStep(t *testing.T) {
	t.Parallel()

	t.Run("writes png and records it", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &fakeRecorder{}
		step := NewScreenshotStep(dir, rec, nil)
		step.now = func() time.Time { return time.UnixMilli(1714564800123) }

		page := &fakePage{url: "https://example.com/a", screenshot: []byte("png-bytes")}
		if err := step.Do(context.Background(), visitOf(page, 2)); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		want := filepath.Join(dir, ScreenshotDir, "1714564800123_2.png")
		data, err := os.ReadFile(want)
		if err != nil {
			t.Fatalf("screenshot not written: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Errorf("screenshot content = %q", data)
		}
		if len(rec.screenshots) != 1 {
			t.Fatalf("recorded %d screenshots, want 1", len(rec.screenshots))
		}
		got := rec.screenshots[0]
		if got.Path != want || got.URL != "https://example.com/a" || got.Depth != 2 {
			t.Errorf("unexpected record %+v", got)
		}
	})

	t.Run("unsupported engine is skipped", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		page := &fakePage{url: "https://example.com/", screenshotErr: browser.ErrScreenshotUnsupported}
		if err := NewScreenshotStep(t.TempDir(), rec, nil).Do(context.Background(), visitOf(page, 1)); err != nil {
			t.Errorf("Do() error = %v, want nil", err)
		}
		if len(rec.screenshots) != 0 {
			t.Error("nothing should be recorded")
		}
	})
}

func TestExtractStep(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		url: "https://example.com/gallery/",
		raws: []extract.Raw{
			{URL: "a.png", Type: "img-tag", Element: "img", Visible: true},
			{URL: "a.png", Type: "img-tag", Element: "img", Visible: true},
			{URL: "javascript:void(0)", Type: "img-tag", Element: "img"},
			{URL: "/b.png", Type: "not-a-type", Element: "img"},
		},
	}
	params := extract.Params{IncludeBackgrounds: true}
	v := visitOf(page, 3)

	if err := NewExtractStep(params, nil, nil).Do(context.Background(), v); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if page.gotParams != params {
		t.Errorf("extractor got params %+v, want %+v", page.gotParams, params)
	}
	if len(v.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(v.Candidates), v.Candidates)
	}
	c := v.Candidates[0]
	if c.URL != "https://example.com/gallery/a.png" || c.Depth != 3 || !c.CrawledAt.Equal(v.StartedAt) {
		t.Errorf("unexpected candidate %+v", c)
	}

	failing := &fakePage{url: "https://example.com/", extractErr: errors.New("boom")}
	if err := NewExtractStep(params, nil, nil).Do(context.Background(), visitOf(failing, 1)); err == nil {
		t.Error("extraction failure must abort the page")
	}
}

func TestFilterStep(t *testing.T) {
	t.Parallel()

	v := &Visit{Candidates: []model.ImageCandidate{
		{URL: "https://example.com/a.png", Type: model.SourceImgTag},
		{URL: "https://example.com/b.gif", Type: model.SourceImgTag},
	}}
	if err := NewFilterStep(filter.Options{Extensions: []string{"png"}}).Do(context.Background(), v); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(v.Candidates) != 1 || v.Candidates[0].URL != "https://example.com/a.png" {
		t.Errorf("unexpected candidates %+v", v.Candidates)
	}
}

func TestAcquireStep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := &fakeRecorder{}
	step := NewAcquireStep(acquire.NewAcquirer(dir), 2, rec, nil)

	v := &Visit{
		Task: model.CrawlTask{URL: "https://example.com/", Depth: 1},
		Candidates: []model.ImageCandidate{
			{URL: "data:image/png;base64," + pngPayload, Type: model.SourceCanvasSnapshot, IsDataURI: true},
			{URL: "ftp://example.com/a.png", Type: model.SourceImgTag},
		},
	}
	if err := step.Do(context.Background(), v); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if len(v.Results) != 2 || len(rec.results) != 2 {
		t.Fatalf("results = %d, recorded = %d, want 2 and 2", len(v.Results), len(rec.results))
	}
	if !v.Results[0].Success || v.Results[0].Skipped {
		t.Errorf("inline image should be written: %+v", v.Results[0])
	}
	if v.Results[1].Success {
		t.Errorf("unsupported url should fail: %+v", v.Results[1])
	}
	if _, err := os.Stat(filepath.Join(dir, v.Results[0].Filename)); err != nil {
		t.Errorf("inline image missing on disk: %v", err)
	}
}

func TestCatalogueStep(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	v := &Visit{Candidates: []model.ImageCandidate{{URL: "https://example.com/a.png"}}}
	if err := NewCatalogueStep(rec, nil).Do(context.Background(), v); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(rec.catalogue) != 1 {
		t.Errorf("catalogued %d candidates, want 1", len(rec.catalogue))
	}
}

func TestEnqueueStep(t *testing.T) {
	t.Parallel()

	links := []string{
		"https://example.com/a",
		"https://other.example/b",
		"https://example.com/c#section",
	}

	t.Run("admits same-origin children", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{url: "https://example.com/", links: links}
		v := visitOf(page, 1)
		if err := NewEnqueueStep(crawler.NewPolicy(2), "https://example.com").Do(context.Background(), v); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(v.Children) != 2 {
			t.Fatalf("children = %+v, want 2", v.Children)
		}
		if v.Children[1].URL != "https://example.com/c" || v.Children[1].Depth != 2 {
			t.Errorf("unexpected child %+v", v.Children[1])
		}
	})

	t.Run("skips link reading at the depth bound", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{url: "https://example.com/", links: links}
		v := visitOf(page, 2)
		if err := NewEnqueueStep(crawler.NewPolicy(2), "https://example.com").Do(context.Background(), v); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if page.linksCalls != 0 || len(v.Children) != 0 {
			t.Errorf("links read %d times, children %v", page.linksCalls, v.Children)
		}
	})
}
