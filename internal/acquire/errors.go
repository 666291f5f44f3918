package acquire

import "errors"

// Acquisition errors. They end up as the Error text of a failed
// DownloadResult and never abort a crawl.
var (
	// ErrMalformedDataURI is returned for data URIs that are not
	// data:image/<subtype>;base64,<payload>.
	ErrMalformedDataURI = errors.New("malformed data uri")

	// ErrDecode is returned when a data URI payload is not valid base64.
	ErrDecode = errors.New("cannot decode base64 payload")

	// ErrHTTPStatus is returned by Fetch for non-2xx responses.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrUnsupportedURL is returned for candidates that are neither data
	// URIs nor http(s) URLs.
	ErrUnsupportedURL = errors.New("unsupported image url")
)
