package model

import "time"

// DownloadResult is the outcome of acquiring a single ImageCandidate.
//
// Skipped means the destination already existed and was left untouched;
// its content is not re-verified. A skipped result is still a success.
type DownloadResult struct {
	// Success is true when the file exists at Path after the attempt.
	Success bool `json:"success"`

	// Skipped is true when nothing was written because the file existed.
	Skipped bool `json:"skipped"`

	// Filename is Path relative to the output directory.
	Filename string `json:"filename,omitempty"`

	// Path is the destination on disk.
	Path string `json:"path,omitempty"`

	// Size is the number of bytes written. Zero for skipped results.
	Size int64 `json:"size,omitempty"`

	// Type is copied from the candidate.
	Type SourceType `json:"type,omitempty"`

	// ContentType is the Content-Type reported by the remote server.
	ContentType string `json:"contentType,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`

	// Candidate is the input that produced this result.
	Candidate ImageCandidate `json:"-"`

	// Metadata holds the EXIF summary when inspection is enabled and
	// the written file carried EXIF data.
	Metadata *ImageMetadata `json:"metadata,omitempty"`
}

// ImageMetadata is a summary of the EXIF tags found in a downloaded image.
type ImageMetadata struct {
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Software string `json:"software,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	HasGPS   bool   `json:"hasGps,omitempty"`
}

// Empty reports whether no tag of interest was found.
func (m *ImageMetadata) Empty() bool {
	return m == nil || (m.Make == "" && m.Model == "" && m.Software == "" && m.DateTime == "" && !m.HasGPS)
}

// ScreenshotRecord describes a full-page screenshot taken during a visit.
type ScreenshotRecord struct {
	URL       string    `json:"url"`
	Path      string    `json:"screenshotPath"`
	Depth     int       `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
}
