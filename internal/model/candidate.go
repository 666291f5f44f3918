package model

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// SourceType classifies where on a page an image reference was found.
type SourceType string

// Image source types, in the order the extractor enumerates them.
const (
	SourceImgTag           SourceType = "img-tag"
	SourceImgSrcset        SourceType = "img-srcset"
	SourceImgLazy          SourceType = "img-lazy"
	SourceBackgroundImage  SourceType = "background-image"
	SourcePseudoBackground SourceType = "pseudo-background"
	SourceSVGImage         SourceType = "svg-image"
	SourcePictureSource    SourceType = "picture-source"
	SourceVideoPoster      SourceType = "video-poster"
	SourceCanvasSnapshot   SourceType = "canvas-snapshot"
	SourceEmbedObject      SourceType = "embed-object"
	SourceFavicon          SourceType = "favicon"
)

// AllSourceTypes returns every known source type in enumeration order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceImgTag,
		SourceImgSrcset,
		SourceImgLazy,
		SourceBackgroundImage,
		SourcePseudoBackground,
		SourceSVGImage,
		SourcePictureSource,
		SourceVideoPoster,
		SourceCanvasSnapshot,
		SourceEmbedObject,
		SourceFavicon,
	}
}

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	for _, known := range AllSourceTypes() {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the wire name of the source type.
func (s SourceType) String() string {
	return string(s)
}

// dataURIPattern matches a well-formed base64 image data URI.
// Group 1 is the MIME subtype, group 2 the base64 payload.
var dataURIPattern = regexp.MustCompile(`^data:image/([^;]+);base64,(.+)$`)

// ParseDataURI splits a base64 image data URI into its MIME subtype and payload.
// ok is false when s is not a well-formed data URI.
func ParseDataURI(s string) (subtype, payload string, ok bool) {
	m := dataURIPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsDataURI reports whether s is a well-formed base64 image data URI.
func IsDataURI(s string) bool {
	return dataURIPattern.MatchString(s)
}

// IsAbsoluteHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// ImageCandidate is one normalized image reference discovered on a page.
//
// The JSON field names match the catalogue format written in non-download
// mode, so a catalogue can be read back by other tools that consume it.
type ImageCandidate struct {
	// URL is an absolute http(s) URL or a base64 image data URI.
	URL string `json:"url"`

	// Type is the surface the reference was found on.
	Type SourceType `json:"type"`

	// Element is the lower-cased tag name, with a pseudo-element suffix
	// such as "div::before" for pseudo backgrounds.
	Element string `json:"element"`

	// Selector is a short CSS path to the element, when one was computed.
	Selector string `json:"selector,omitempty"`

	// Attribute names the lazy-load attribute the URL came from.
	Attribute string `json:"attribute,omitempty"`

	// Alt and Title are copied from the element.
	Alt   string `json:"alt"`
	Title string `json:"title,omitempty"`

	// Width and Height are the natural image size when known,
	// otherwise the rendered bounding box.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Visible is true when the element had a nonzero bounding box.
	Visible bool `json:"visible"`

	// IsDataURI marks inline images.
	IsDataURI bool `json:"isDataUri"`

	// ApproxSize is round(len(URL) * 0.75) for data URIs. It estimates
	// the decoded size from the base64 expansion ratio and is zero for
	// remote images.
	ApproxSize int64 `json:"fileSize,omitempty"`

	// CrawledFrom is the URL of the page the candidate was found on.
	CrawledFrom string `json:"crawledFrom"`

	// CrawledAt is the time of the page visit that found the candidate.
	CrawledAt time.Time `json:"crawledAt"`

	// Depth is the depth of that page visit.
	Depth int `json:"depth"`
}

// Valid reports whether the candidate carries a usable URL.
func (c ImageCandidate) Valid() bool {
	if c.IsDataURI {
		return IsDataURI(c.URL)
	}
	return IsAbsoluteHTTPURL(c.URL)
}

// CrawlTask is a page scheduled for a visit.
// Depth starts at 1 for the seed page.
type CrawlTask struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}
