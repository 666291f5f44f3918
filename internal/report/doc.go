// Package report aggregates what a crawl found and writes it out.
//
// A Session collects download results, screenshots and catalogue entries
// from concurrently processed pages. At the end of the crawl the session is
// turned into one of two outputs:
//   - Catalogue mode (no downloads): the deduplicated image candidates,
//     encoded as JSON, CSV, text or Markdown
//   - Download mode: a CrawlReport with statistics, the downloaded files and
//     the failures, encoded as JSON or Markdown
//
// Design decision: Formats are a tagged enum (model.Format) mapped onto a
// table of pure encoder functions. Adding a format means adding one table
// entry, and every encoder can be tested on plain values without a crawl.
//
// Summary writes the human-readable console summary printed after a run.
package report
