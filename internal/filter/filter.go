// Package filter narrows a page's image candidates down to the ones the
// user asked for, and removes duplicates from the catalogue.
package filter

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/imagecrawler/internal/model"
)

// Options selects which candidates survive Apply. The zero value keeps
// everything.
type Options struct {
	// ExcludeDataURI drops every inline data URI.
	ExcludeDataURI bool

	// Extensions is an allow-list of lower-case extensions. Empty allows all.
	Extensions []string

	// MinSize drops small images when positive. Data URIs are measured by
	// approximate decoded bytes, other candidates by pixel area when both
	// dimensions are known.
	MinSize int64
}

// Apply returns the candidates that pass every rule of opts, in their
// original order. The input slice is not modified.
func Apply(cands []model.ImageCandidate, opts Options) []model.ImageCandidate {
	allowed := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}

	out := make([]model.ImageCandidate, 0, len(cands))
	for _, c := range cands {
		if opts.ExcludeDataURI && c.IsDataURI {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[Extension(c)]; !ok {
				continue
			}
		}
		if tooSmall(c, opts.MinSize) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func tooSmall(c model.ImageCandidate, minSize int64) bool {
	if minSize <= 0 {
		return false
	}
	if c.IsDataURI {
		return c.ApproxSize < minSize
	}
	if c.Width > 0 && c.Height > 0 {
		return c.Width*c.Height < float64(minSize)
	}
	return false
}

// Extension returns the lower-cased file extension of a candidate: the
// declared MIME subtype for data URIs, otherwise the text after the last
// dot of the URL path. It returns "" when there is none.
func Extension(c model.ImageCandidate) string {
	if c.IsDataURI {
		subtype, _, ok := model.ParseDataURI(c.URL)
		if !ok {
			return ""
		}
		return strings.ToLower(subtype)
	}
	return URLExtension(c.URL)
}

// URLExtension returns the lower-cased extension of the path of rawURL,
// ignoring query and fragment.
func URLExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// Dedup removes candidates whose serialized form was already seen, keeping
// the first occurrence. The whole record is the key, so the same URL found
// on two different visits is kept twice.
func Dedup(cands []model.ImageCandidate) []model.ImageCandidate {
	d := NewDeduper()
	out := make([]model.ImageCandidate, 0, len(cands))
	for _, c := range cands {
		if d.Add(c) {
			out = append(out, c)
		}
	}
	return out
}

// Deduper remembers serialized candidates across calls. It is not safe for
// concurrent use.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add reports whether c was new.
func (d *Deduper) Add(c model.ImageCandidate) bool {
	key := Key(c)
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Key is the identity of a catalogue entry: its JSON serialization.
func Key(c model.ImageCandidate) string {
	b, err := json.Marshal(c)
	if err != nil {
		return c.URL
	}
	return string(b)
}
