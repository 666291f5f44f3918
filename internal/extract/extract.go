package extract

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/imagecrawler/internal/model"
)

//go:embed extract.js
var extractScript string

//go:embed lazy.js
var lazyScript string

// LazySettle is how long the page is given to start loading images after
// the lazy-content trigger has promoted their sources.
const LazySettle = 2000 * time.Millisecond

// Params is everything the in-page script is allowed to know.
type Params struct {
	IncludeBackgrounds bool `json:"includeBackgrounds"`
	IncludeHidden      bool `json:"includeHidden"`
}

// Raw is one record as reported by the in-page script, before URL
// resolution and validation.
type Raw struct {
	URL       string  `json:"url"`
	Type      string  `json:"type"`
	Element   string  `json:"element"`
	Selector  string  `json:"selector"`
	Attribute string  `json:"attribute"`
	Alt       string  `json:"alt"`
	Title     string  `json:"title"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Visible   bool    `json:"visible"`
}

// Stamp carries the visit context attached to every candidate of a page.
type Stamp struct {
	CrawledAt time.Time
	Depth     int
}

// Expression returns the JavaScript expression that runs the extractor
// with params and evaluates to a []Raw.
//
// Design decision: params are serialized into the expression instead of
// being read from page globals because:
//  1. The script stays a pure function of the DOM and its argument
//  2. A page cannot tamper with the crawler's settings
func Expression(params Params) (string, error) {
	arg, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode extractor params: %w", err)
	}
	return "(" + strings.TrimSpace(extractScript) + ")(" + string(arg) + ")", nil
}

// LazyExpression returns the JavaScript expression of the lazy-content
// trigger. It evaluates to the number of promoted images.
func LazyExpression() string {
	return "(" + strings.TrimSpace(lazyScript) + ")()"
}

// Normalize turns raw records into candidates. Data URIs must be well
// formed; everything else is resolved against pageURL and must end up as
// an absolute http(s) URL. Records that fail either rule are dropped, and
// identical candidates collapse into one.
func Normalize(pageURL string, raws []Raw, stamp Stamp) []model.ImageCandidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return []model.ImageCandidate{}
	}

	out := make([]model.ImageCandidate, 0, len(raws))
	seen := make(map[model.ImageCandidate]struct{}, len(raws))

	for _, raw := range raws {
		c, ok := normalizeOne(base, raw)
		if !ok {
			continue
		}
		c.CrawledFrom = pageURL
		c.CrawledAt = stamp.CrawledAt
		c.Depth = stamp.Depth

		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out
}

func normalizeOne(base *url.URL, raw Raw) (model.ImageCandidate, bool) {
	typ := model.SourceType(raw.Type)
	if !typ.Valid() {
		return model.ImageCandidate{}, false
	}

	ref := strings.TrimSpace(raw.URL)
	if ref == "" {
		return model.ImageCandidate{}, false
	}

	c := model.ImageCandidate{
		Type:      typ,
		Element:   raw.Element,
		Selector:  raw.Selector,
		Attribute: raw.Attribute,
		Alt:       raw.Alt,
		Title:     raw.Title,
		Width:     raw.Width,
		Height:    raw.Height,
		Visible:   raw.Visible,
	}

	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		if !model.IsDataURI(ref) {
			return model.ImageCandidate{}, false
		}
		c.URL = ref
		c.IsDataURI = true
		c.ApproxSize = ApproxDecodedSize(ref)
		return c, true
	}

	u, err := url.Parse(ref)
	if err != nil {
		return model.ImageCandidate{}, false
	}
	resolved := base.ResolveReference(u).String()
	if !model.IsAbsoluteHTTPURL(resolved) {
		return model.ImageCandidate{}, false
	}
	c.URL = resolved

	return c, true
}

// ApproxDecodedSize estimates the decoded size of a data URI as three
// quarters of its total length, rounded.
func ApproxDecodedSize(dataURI string) int64 {
	return int64(math.Round(float64(len(dataURI)) * 0.75))
}
