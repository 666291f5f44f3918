package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no seed URL is specified.
	ErrNoTarget = errors.New("no target specified: provide the URL to crawl")

	// ErrInvalidTarget is returned when the seed is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrInvalidDepth is returned when the maximum depth is below 1.
	// Depth 1 means only the seed page is visited.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidConcurrency is returned when fewer than one page may run at a time.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidMaxPages is returned when the page cap is below 1.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the per-page download worker count is below 1.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidMinSize is returned when the minimum size is negative.
	ErrInvalidMinSize = errors.New("invalid min size: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrNoOutputFile is returned when the report file name is empty.
	ErrNoOutputFile = errors.New("no output file specified")

	// ErrOutputFileOutsideDir is returned when the report file would be
	// written outside the output directory, for example "../report.json".
	ErrOutputFileOutsideDir = errors.New("invalid output file: must be a relative path inside the output directory")

	// ErrNoOutputDir is returned when downloads or screenshots are enabled
	// without an output directory.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrUnknownEngine is returned for an engine other than chrome or static.
	ErrUnknownEngine = errors.New("unknown engine: must be chrome or static")

	// ErrScreenshotNeedsBrowser is returned when screenshots are requested
	// with the static engine.
	ErrScreenshotNeedsBrowser = errors.New("screenshots require the chrome engine")

	// ErrConflictingProxy is returned when both --tor and --proxy are given.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")
)
