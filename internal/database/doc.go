// Package database provides the SQLite crawl history of imagecrawler.
//
// Every finished run is stored with its seed, its counters and the
// serialized report, so that `imagecrawler history` can list what was
// crawled when and with which outcome. The history is write-only from the
// crawler's point of view: nothing stored here changes what a later run
// fetches or skips.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
