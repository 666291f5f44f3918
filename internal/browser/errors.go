package browser

import "errors"

var (
	// ErrScreenshotUnsupported is returned by engines without a layout.
	ErrScreenshotUnsupported = errors.New("screenshots are not supported by this engine")

	// ErrBrowserStart is returned when the Chrome process cannot be started.
	ErrBrowserStart = errors.New("failed to start browser")

	// ErrNavigation is returned when a page cannot be loaded.
	ErrNavigation = errors.New("navigation failed")

	// ErrEngineClosed is returned by Open after Close.
	ErrEngineClosed = errors.New("engine is closed")
)

// ErrWaitTimeout is returned when a readiness wait runs out of time.
var ErrWaitTimeout = errors.New("wait timed out")
