package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/imagecrawler/internal/model"
)

// Default configuration values.
// These values match the JSON config files of earlier crawler versions, so
// an existing config file keeps fetching the same images.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imagecrawler"

	// DefaultMaxDepth bounds how many link hops away from the seed are visited.
	// The seed page itself is depth 1.
	DefaultMaxDepth = 4

	// DefaultMaxConcurrent is the number of pages rendered in parallel.
	DefaultMaxConcurrent = 3

	// DefaultMaxPages caps the total number of page visits in one crawl.
	// The depth and fanout limits usually stop a crawl long before this.
	DefaultMaxPages = 1000

	// DefaultTimeout applies to navigation and the network-idle wait.
	DefaultTimeout = 30 * time.Second

	// DefaultOutputDir is where images, screenshots and the report go.
	DefaultOutputDir = "./images"

	// DefaultOutputFile is the report or catalogue file name.
	DefaultOutputFile = "images_report.json"

	// DefaultWorkers is the number of concurrent downloads per page.
	// One keeps the per-page loop strictly sequential in document order.
	DefaultWorkers = 1

	// DefaultUserAgent is sent by the browser and by image fetches.
	// A desktop Chrome string avoids sites serving stripped-down mobile markup.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// EngineChrome renders pages in headless Chrome through chromedp.
	EngineChrome = "chrome"

	// EngineStatic fetches raw HTML without running scripts.
	EngineStatic = "static"
)

// Config holds all configuration options for a crawl.
// This struct is populated from CLI flags and an optional config file and is
// passed explicitly into the harvester; nothing reads process-wide state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable, and every option maps
// one-to-one onto a CLI flag and a config file key.
type Config struct {
	// SeedURL is the page the crawl starts from. Its origin scopes the crawl.
	SeedURL string

	// OutputDir receives downloaded images, screenshots and, when either is
	// enabled, the report.
	OutputDir string

	// OutputFile is the report or catalogue file name.
	OutputFile string

	// Format selects the catalogue/report serialization.
	Format model.Format

	// MaxDepth is the deepest page depth that is visited. The seed is depth 1.
	MaxDepth int

	// MaxConcurrent is the number of pages processed in parallel.
	MaxConcurrent int

	// MaxPages caps the total number of page visits.
	MaxPages int

	// Timeout bounds navigation and the network-idle wait of each page.
	// The images-loaded wait has its own fixed timeout.
	Timeout time.Duration

	// Engine selects the page engine: EngineChrome or EngineStatic.
	Engine string

	// Headless runs Chrome without a window.
	Headless bool

	// Download materializes images into OutputDir. When false, the crawl
	// only builds a catalogue of image references.
	Download bool

	// CaptureScreenshots saves a full-page PNG of every visited page.
	CaptureScreenshots bool

	// WaitForImages waits for every <img> to finish loading before extraction.
	WaitForImages bool

	// DetectLazyLoad scrolls the page and promotes lazy-load attributes.
	DetectLazyLoad bool

	// IncludeBackgrounds extracts computed CSS background images.
	IncludeBackgrounds bool

	// IncludeHiddenImages keeps images whose element has no on-screen box.
	IncludeHiddenImages bool

	// ImageFilter is the extension allow-list. Empty allows everything.
	ImageFilter []string

	// MinSize drops data URIs smaller than this many (approximate) bytes and
	// remote images whose pixel area is smaller than this value.
	MinSize int64

	// ExcludeDataURI drops inline data URI images.
	ExcludeDataURI bool

	// UserAgent is sent by the browser and with every image fetch.
	UserAgent string

	// Workers is the number of concurrent downloads per page.
	Workers int

	// RespectRobots skips pages disallowed by robots.txt.
	RespectRobots bool

	// RateLimit is the maximum number of image fetches per second per host.
	// Zero disables rate limiting.
	RateLimit float64

	// ProxyAddress routes traffic through a SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes traffic through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for Tor to bootstrap.
	TorStartupTimeout time.Duration

	// InspectEXIF reads EXIF metadata from downloaded images into the report.
	InspectEXIF bool

	// MetricsAddr serves Prometheus metrics on this address when set.
	MetricsAddr string

	// SaveHistory records the run in the history database under DBDir.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory.
	DBDir string

	// ConfigFilePath is the config file given on the command line.
	ConfigFilePath string

	// Verbose enables debug logging. Quiet suppresses everything but errors
	// and the console summary.
	Verbose bool
	Quiet   bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (depth, timeouts, the
// headless and lazy-load switches). This also documents the defaults.
func NewConfig() *Config {
	return &Config{
		OutputDir:          DefaultOutputDir,
		OutputFile:         DefaultOutputFile,
		Format:             model.FormatJSON,
		MaxDepth:           DefaultMaxDepth,
		MaxConcurrent:      DefaultMaxConcurrent,
		MaxPages:           DefaultMaxPages,
		Timeout:            DefaultTimeout,
		Engine:             EngineChrome,
		Headless:           true,
		Download:           true,
		WaitForImages:      true,
		DetectLazyLoad:     true,
		IncludeBackgrounds: true,
		UserAgent:          DefaultUserAgent,
		Workers:            DefaultWorkers,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		SaveHistory:        true,
		DBDir:              XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for imagecrawler.
// On Linux: ~/.local/share/imagecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imagecrawler.
// On Linux: ~/.config/imagecrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ReportPath returns where the report or catalogue is written.
// It lives under OutputDir whenever downloads or screenshots are enabled,
// so that everything one crawl produces stays in one directory. An
// OutputFile that would leave OutputDir is reduced to its base name.
func (c *Config) ReportPath() string {
	if c.Download || c.CaptureScreenshots {
		name := c.OutputFile
		if !filepath.IsLocal(name) {
			name = filepath.Base(name)
		}
		return filepath.Join(c.OutputDir, name)
	}
	return c.OutputFile
}

// NormalizedFilter returns ImageFilter lower-cased, trimmed, without
// leading dots and without empty entries.
func (c *Config) NormalizedFilter() []string {
	out := make([]string, 0, len(c.ImageFilter))
	for _, ext := range c.ImageFilter {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error so callers can
// use errors.Is.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast with a clear message before a browser starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" {
		return ErrNoTarget
	}
	if !model.IsAbsoluteHTTPURL(c.SeedURL) {
		return ErrInvalidTarget
	}

	if c.MaxDepth < 1 {
		return ErrInvalidDepth
	}
	if c.MaxConcurrent < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.MinSize < 0 {
		return ErrInvalidMinSize
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.OutputFile == "" {
		return ErrNoOutputFile
	}
	if c.Download || c.CaptureScreenshots {
		if c.OutputDir == "" {
			return ErrNoOutputDir
		}
		if !filepath.IsLocal(c.OutputFile) {
			return ErrOutputFileOutsideDir
		}
	}

	switch c.Engine {
	case EngineChrome:
	case EngineStatic:
		// The static engine has no layout, so there is nothing to screenshot.
		if c.CaptureScreenshots {
			return ErrScreenshotNeedsBrowser
		}
	default:
		return ErrUnknownEngine
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.UseTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}

	return nil
}

// ReportConfig returns the subset of the configuration recorded in reports.
func (c *Config) ReportConfig() model.ReportConfig {
	return model.ReportConfig{
		MaxDepth:            c.MaxDepth,
		MaxConcurrent:       c.MaxConcurrent,
		Timeout:             c.Timeout.Milliseconds(),
		Headless:            c.Headless,
		WaitForImages:       c.WaitForImages,
		CaptureScreenshots:  c.CaptureScreenshots,
		DetectLazyLoad:      c.DetectLazyLoad,
		IncludeBackgrounds:  c.IncludeBackgrounds,
		IncludeHiddenImages: c.IncludeHiddenImages,
	}
}
