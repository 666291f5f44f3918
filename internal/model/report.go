package model

import "time"

// CrawlMode is the engine label written to the report.
const (
	ModeBrowser = "chromedp-browser"
	ModeStatic  = "static-html"
)

// CrawlReport is the structured report written at the end of a download-mode crawl.
//
// Design decision: The report carries trimmed per-item summaries rather than
// the full DownloadResult values. Paths and candidates are already on disk or
// in the history database; the report is meant to be small and diffable.
type CrawlReport struct {
	// RunID uniquely identifies the crawl run.
	RunID string `json:"runId,omitempty"`

	// CrawledURL is the seed URL.
	CrawledURL string `json:"crawledUrl"`

	// CrawledAt is the time the report was built.
	CrawledAt time.Time `json:"crawledAt"`

	// Mode names the page engine that rendered the pages.
	Mode string `json:"mode"`

	Config ReportConfig `json:"config"`
	Stats  SessionStats `json:"stats"`

	DownloadedImages []DownloadedImage  `json:"downloadedImages"`
	FailedDownloads  []FailedDownload   `json:"failedDownloads"`
	Screenshots      []ScreenshotRecord `json:"screenshots"`
}

// ReportConfig is the subset of the crawl configuration recorded in the report.
type ReportConfig struct {
	MaxDepth            int   `json:"maxDepth"`
	MaxConcurrent       int   `json:"maxConcurrent"`
	Timeout             int64 `json:"timeout"`
	Headless            bool  `json:"headless"`
	WaitForImages       bool  `json:"waitForImages"`
	CaptureScreenshots  bool  `json:"captureScreenshots"`
	DetectLazyLoad      bool  `json:"detectLazyLoad"`
	IncludeBackgrounds  bool  `json:"includeBackgrounds"`
	IncludeHiddenImages bool  `json:"includeHiddenImages"`
}

// SessionStats holds counters aggregated over a whole crawl.
// Total is always Success + Failed; skipped results count as successes.
type SessionStats struct {
	Total       int   `json:"total"`
	Success     int   `json:"success"`
	Failed      int   `json:"failed"`
	Skipped     int   `json:"skipped"`
	TotalSize   int64 `json:"totalSize"`
	Screenshots int   `json:"screenshots"`

	// ByType counts catalogue entries per source type. It is only
	// populated in catalogue mode.
	ByType map[SourceType]int `json:"byType,omitempty"`
}

// DownloadedImage is the report summary of a successful DownloadResult.
type DownloadedImage struct {
	Filename    string         `json:"filename"`
	Size        int64          `json:"size"`
	Type        SourceType     `json:"type"`
	ContentType string         `json:"contentType,omitempty"`
	Metadata    *ImageMetadata `json:"metadata,omitempty"`
}

// FailedDownload is the report summary of a failed DownloadResult.
type FailedDownload struct {
	URL   string     `json:"url"`
	Type  SourceType `json:"type"`
	Error string     `json:"error"`
}

// NewCrawlReport creates an empty report for the given seed.
// Slices are non-nil so that an empty crawl serializes as [] rather than null.
func NewCrawlReport(seed string) *CrawlReport {
	return &CrawlReport{
		CrawledURL:       seed,
		CrawledAt:        time.Now(),
		DownloadedImages: make([]DownloadedImage, 0),
		FailedDownloads:  make([]FailedDownload, 0),
		Screenshots:      make([]ScreenshotRecord, 0),
	}
}
