// Package model defines the core data structures used throughout imagecrawler.
//
// This package contains the following main types:
//   - CrawlTask: A page scheduled for a visit at a given depth
//   - ImageCandidate: A normalized image reference found on a page
//   - DownloadResult: The outcome of acquiring one candidate
//   - ScreenshotRecord: A full-page screenshot taken during a visit
//   - CrawlReport: The structured report emitted at the end of a crawl
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, extractor, acquisition and report packages all
// exchange these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
