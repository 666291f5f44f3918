package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"password":            true,
	"passwd":              true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"access_token":        true,
	"session":             true,
	"session_id":          true,
}

// sensitiveQueryParams are query parameter names stripped from logged URLs.
// Signed CDN URLs and OAuth redirects put their secrets here.
var sensitiveQueryParams = []string{
	"token", "access_token", "auth", "key", "apikey", "api_key",
	"signature", "sig", "x-amz-signature", "x-amz-credential",
	"x-goog-signature", "password",
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// maxDataURIPrefix is how much of a data URI is kept before the payload is summarized.
const maxDataURIPrefix = 48

// SecureHandler wraps an slog.Handler and sanitizes attribute values
// before passing records to the underlying handler.
//
// Design decision: We use a handler wrapper rather than a custom logger
// so every package can keep using plain *slog.Logger values, and the
// wrapper works with any underlying handler (text, JSON).
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, SanitizeValue(a.Value.String()))
	}
	return a
}

// SanitizeValue shortens data URIs and scrubs credentials from URLs.
// Other strings are returned unchanged.
func SanitizeValue(v string) string {
	if strings.HasPrefix(v, "data:") {
		return summarizeDataURI(v)
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") ||
		strings.HasPrefix(v, "socks5://") {
		return SanitizeURL(v)
	}
	return v
}

// SanitizeURL removes the userinfo password and masks sensitive query
// parameters. Unparseable input is returned unchanged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveQueryParam(name) {
				q.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	return u.String()
}

func isSensitiveQueryParam(name string) bool {
	name = strings.ToLower(name)
	for _, p := range sensitiveQueryParams {
		if name == p {
			return true
		}
	}
	return false
}

func summarizeDataURI(v string) string {
	comma := strings.IndexByte(v, ',')
	if comma < 0 || len(v) <= maxDataURIPrefix {
		return v
	}
	return fmt.Sprintf("%s,...(%d bytes)", v[:comma], len(v)-comma-1)
}

// Options selects the level and encoding of a logger.
type Options struct {
	// Verbose lowers the level to Debug.
	Verbose bool
	// Quiet raises the level to Error. Verbose wins when both are set.
	Quiet bool
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// Level returns the slog level selected by the options.
// The default is Warn so that normal runs only print the console summary.
func (o Options) Level() slog.Level {
	switch {
	case o.Verbose:
		return slog.LevelDebug
	case o.Quiet:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewLogger creates a *slog.Logger that sanitizes every record.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(handler))
}
