package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Response is a streaming image response. The caller must close Body.
type Response struct {
	Body          io.ReadCloser
	ContentType   string
	StatusCode    int
	ContentLength int64
}

// Getter is the byte transfer used by the Acquirer.
type Getter interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error)
}

// Fetcher performs single-attempt streaming GETs.
//
// Design decision: Fetcher never retries because:
//  1. A failed image is reported in failedDownloads, not hidden
//  2. The next crawl skips files that already exist, so re-running is the retry
type Fetcher struct {
	client  *http.Client
	limiter *HostLimiter
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client, for example one that goes through a
// SOCKS5 proxy.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithHostLimiter throttles requests per host.
func WithHostLimiter(limiter *HostLimiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// NewFetcher creates a Fetcher. Without options it uses a plain
// http.Client and relies on the request context for timeouts.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET for rawURL with headers. Statuses outside 2xx are
// returned as ErrHTTPStatus with the body already closed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	return &Response{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
	}, nil
}
