// Package log provides the crawler's structured logger, built on log/slog.
//
// Crawls log a lot of URLs, and URLs carry things that should not end up in
// shared logs: credentials in the userinfo part, signed query strings, and
// megabytes of base64 in data URIs. The SecureHandler rewrites attribute
// values before they reach the underlying text or JSON handler:
//   - Attributes whose key names a secret (cookie, authorization, token, ...)
//     are replaced with MaskValue
//   - URL values lose their password and signature-like query parameters
//   - Data URI values are shortened to their media type and payload length
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Info("page visited", "url", pageURL, "depth", 2)
//	slog.SetDefault(logger)
package log
