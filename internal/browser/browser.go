package browser

import (
	"context"
	"time"

	"github.com/nao1215/imagecrawler/internal/extract"
)

// Viewport size of rendered pages.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// networkQuietPeriod is how long no request may be in flight before the
// network counts as idle.
const networkQuietPeriod = 500 * time.Millisecond

// pollInterval is the interval of in-page readiness checks.
const pollInterval = 100 * time.Millisecond

// Engine opens pages. Implementations are safe for concurrent use.
type Engine interface {
	// Open loads pageURL and returns the loaded page. Navigation is bounded
	// by the engine's timeout.
	Open(ctx context.Context, pageURL string) (Page, error)

	// Close releases the engine. Pages must be closed first.
	Close() error
}

// Page is one loaded document.
type Page interface {
	// URL returns the address of the loaded document after redirects.
	URL() string

	// WaitNetworkIdle blocks until no request has been in flight for a
	// short quiet period, or until timeout.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// WaitImagesLoaded blocks until every <img> reports complete, or
	// until timeout.
	WaitImagesLoaded(ctx context.Context, timeout time.Duration) error

	// TriggerLazyLoad scrolls the document and promotes lazy-load
	// attributes onto src. It returns the number of promoted images.
	TriggerLazyLoad(ctx context.Context) (int, error)

	// Extract returns the raw image records of the document.
	Extract(ctx context.Context, params extract.Params) ([]extract.Raw, error)

	// Links returns the absolute a[href] targets in document order.
	Links(ctx context.Context) ([]string, error)

	// Screenshot returns a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the page.
	Close() error
}

// Options configures an engine.
type Options struct {
	// Headless runs Chrome without a window.
	Headless bool

	// UserAgent is sent with every request of the page.
	UserAgent string

	// Timeout bounds navigation.
	Timeout time.Duration

	// ProxyURL routes browser traffic through a proxy such as
	// "socks5://127.0.0.1:9050".
	ProxyURL string

	// BlockedURLs are request patterns the rendered engine refuses to load.
	// Nil selects DefaultBlockedURLs.
	BlockedURLs []string
}

// DefaultBlockedURLs keeps fonts and media out of rendered pages. Neither
// contributes image references and both slow down the network-idle wait.
var DefaultBlockedURLs = []string{
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
	"*.mp4", "*.webm", "*.ogv", "*.mov",
	"*.mp3", "*.ogg", "*.wav", "*.m4a", "*.flac",
}

func (o Options) blockedURLs() []string {
	if o.BlockedURLs == nil {
		return DefaultBlockedURLs
	}
	return o.BlockedURLs
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}
