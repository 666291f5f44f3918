package report

import (
	"sync"
	"time"

	"github.com/nao1215/imagecrawler/internal/filter"
	"github.com/nao1215/imagecrawler/internal/model"
)

// Session is the aggregate of one crawl. It is safe for concurrent use by
// the pages of that crawl.
type Session struct {
	mu          sync.Mutex
	downloaded  []model.DownloadResult
	failed      []model.DownloadResult
	screenshots []model.ScreenshotRecord
	images      []model.ImageCandidate
	deduper     *filter.Deduper
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		downloaded:  make([]model.DownloadResult, 0),
		failed:      make([]model.DownloadResult, 0),
		screenshots: make([]model.ScreenshotRecord, 0),
		images:      make([]model.ImageCandidate, 0),
		deduper:     filter.NewDeduper(),
	}
}

// Record adds one acquisition result. Skipped results count as successes.
func (s *Session) Record(result model.DownloadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Success {
		s.downloaded = append(s.downloaded, result)
		return
	}
	s.failed = append(s.failed, result)
}

// AddScreenshot adds one screenshot record.
func (s *Session) AddScreenshot(record model.ScreenshotRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = append(s.screenshots, record)
}

// Catalogue adds candidates to the catalogue, dropping exact duplicates of
// entries already present.
func (s *Session) Catalogue(cands []model.ImageCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cands {
		if s.deduper.Add(c) {
			s.images = append(s.images, c)
		}
	}
}

// Images returns the catalogue in insertion order.
func (s *Session) Images() []model.ImageCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ImageCandidate, len(s.images))
	copy(out, s.images)
	return out
}

// Screenshots returns the screenshot records in insertion order.
func (s *Session) Screenshots() []model.ScreenshotRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScreenshotRecord, len(s.screenshots))
	copy(out, s.screenshots)
	return out
}

// Stats returns the counters of the session.
// ByType is filled from the catalogue and stays nil when nothing was
// catalogued.
func (s *Session) Stats() model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() model.SessionStats {
	stats := model.SessionStats{
		Total:       len(s.downloaded) + len(s.failed),
		Success:     len(s.downloaded),
		Failed:      len(s.failed),
		Screenshots: len(s.screenshots),
	}
	for _, r := range s.downloaded {
		if r.Skipped {
			stats.Skipped++
		}
		stats.TotalSize += r.Size
	}
	if len(s.images) > 0 {
		stats.ByType = make(map[model.SourceType]int)
		for _, c := range s.images {
			stats.ByType[c.Type]++
		}
	}
	return stats
}

// Meta is the run information a report carries besides the session data.
type Meta struct {
	RunID     string
	Seed      string
	Mode      string
	CrawledAt time.Time
	Config    model.ReportConfig
}

// Report builds the structured download-mode report.
func (s *Session) Report(meta Meta) *model.CrawlReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := model.NewCrawlReport(meta.Seed)
	r.RunID = meta.RunID
	r.Mode = meta.Mode
	r.Config = meta.Config
	if !meta.CrawledAt.IsZero() {
		r.CrawledAt = meta.CrawledAt
	}

	r.Stats = s.statsLocked()
	// The structured report counts downloads only.
	r.Stats.ByType = nil

	for _, d := range s.downloaded {
		r.DownloadedImages = append(r.DownloadedImages, model.DownloadedImage{
			Filename:    d.Filename,
			Size:        d.Size,
			Type:        d.Type,
			ContentType: d.ContentType,
			Metadata:    d.Metadata,
		})
	}
	for _, f := range s.failed {
		r.FailedDownloads = append(r.FailedDownloads, model.FailedDownload{
			URL:   f.Candidate.URL,
			Type:  f.Type,
			Error: f.Error,
		})
	}
	r.Screenshots = append(r.Screenshots, s.screenshots...)
	return r
}
