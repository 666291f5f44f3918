package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/imagecrawler/internal/model"
)

// cssURLPattern matches url(...) tokens of a CSS value.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// lazyAttributes are the attributes lazy-loading libraries keep the real
// image source in.
var lazyAttributes = []string{"data-src", "data-lazy", "data-original", "data-echo"}

// StaticExtractor finds image candidates in HTML that was never rendered.
//
// Design decision: We mirror the in-page extractor's taxonomy over goquery
// because:
//  1. The static engine must report the same source types as the browser
//  2. Sites without JavaScript-injected images are crawled much faster
//
// There is no layout, so an element counts as visible unless it or an
// ancestor carries the hidden attribute or an inline display:none or
// visibility:hidden. Dimensions come from width/height attributes.
// Canvas snapshots and pseudo-element backgrounds cannot be observed.
type StaticExtractor struct{}

// NewStaticExtractor returns a StaticExtractor.
func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{}
}

// Extract returns the raw records of doc in the order the in-page script
// would report them.
func (e *StaticExtractor) Extract(doc *goquery.Document, pageURL string, params Params) []Raw {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var raws []Raw
	include := func(s *goquery.Selection) bool {
		return params.IncludeHidden || visible(s)
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if !include(s) {
			return
		}
		primaryAttr, _ := s.Attr("src")
		primary := resolve(base, primaryAttr)

		if primary != "" && primary != pageURL {
			raws = append(raws, record(s, primaryAttr, model.SourceImgTag, "src"))
		}
		if srcset, ok := s.Attr("srcset"); ok {
			for _, u := range SrcsetURLs(srcset) {
				if resolve(base, u) != primary {
					raws = append(raws, record(s, u, model.SourceImgSrcset, "srcset"))
				}
			}
		}
		for _, attr := range lazyAttributes {
			v, _ := s.Attr(attr)
			if v != "" && resolve(base, v) != primary {
				raws = append(raws, record(s, v, model.SourceImgLazy, attr))
			}
		}
	})

	if params.IncludeBackgrounds {
		doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
			if !include(s) {
				return
			}
			style, _ := s.Attr("style")
			for _, u := range CSSURLs(backgroundValue(style)) {
				raws = append(raws, record(s, u, model.SourceBackgroundImage, "background-image"))
			}
		})
	}

	doc.Find("svg image").Each(func(_ int, s *goquery.Selection) {
		if !include(s) {
			return
		}
		href, attr := s.AttrOr("href", ""), "href"
		if href == "" {
			href, attr = s.AttrOr("xlink:href", ""), "xlink:href"
		}
		if href != "" {
			raws = append(raws, record(s, href, model.SourceSVGImage, attr))
		}
	})

	doc.Find("picture source[srcset]").Each(func(_ int, s *goquery.Selection) {
		for _, u := range SrcsetURLs(s.AttrOr("srcset", "")) {
			r := record(s, u, model.SourcePictureSource, "srcset")
			r.Element = "picture source"
			r.Visible = true
			r.Width, r.Height = 0, 0
			raws = append(raws, r)
		}
	})

	doc.Find("video[poster]").Each(func(_ int, s *goquery.Selection) {
		if include(s) {
			raws = append(raws, record(s, s.AttrOr("poster", ""), model.SourceVideoPoster, "poster"))
		}
	})

	doc.Find("embed[src], object[data]").Each(func(_ int, s *goquery.Selection) {
		if !include(s) {
			return
		}
		if goquery.NodeName(s) == "embed" {
			raws = append(raws, record(s, s.AttrOr("src", ""), model.SourceEmbedObject, "src"))
			return
		}
		raws = append(raws, record(s, s.AttrOr("data", ""), model.SourceEmbedObject, "data"))
	})

	doc.Find(`link[rel*="icon"]`).Each(func(_ int, s *goquery.Selection) {
		r := record(s, s.AttrOr("href", ""), model.SourceFavicon, "href")
		r.Visible = false
		raws = append(raws, r)
	})

	return raws
}

func record(s *goquery.Selection, rawURL string, typ model.SourceType, attr string) Raw {
	return Raw{
		URL:       rawURL,
		Type:      string(typ),
		Element:   goquery.NodeName(s),
		Selector:  selectorOf(s),
		Attribute: attr,
		Alt:       s.AttrOr("alt", ""),
		Title:     s.AttrOr("title", ""),
		Width:     dimension(s, "width"),
		Height:    dimension(s, "height"),
		Visible:   visible(s),
	}
}

// SrcsetURLs returns the URL part of every candidate of a srcset value.
//
// A URL is a run of non-whitespace, so commas inside it (data URIs) belong
// to the URL. Trailing commas end a candidate; otherwise its descriptors
// run up to the next comma outside parentheses.
func SrcsetURLs(srcset string) []string {
	var urls []string
	rest := srcset
	for {
		rest = strings.TrimLeft(rest, " \t\n\r\f,")
		if rest == "" {
			return urls
		}
		end := strings.IndexAny(rest, " \t\n\r\f")
		if end < 0 {
			end = len(rest)
		}
		u := rest[:end]
		rest = rest[end:]
		if strings.HasSuffix(u, ",") {
			u = strings.TrimRight(u, ",")
		} else {
			rest = skipDescriptors(rest)
		}
		if u != "" {
			urls = append(urls, u)
		}
	}
}

// skipDescriptors returns what follows the comma that ends a candidate's
// descriptors.
func skipDescriptors(s string) string {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return s[i+1:]
			}
		}
	}
	return ""
}

// CSSURLs returns every url(...) token of a CSS value, in order.
func CSSURLs(value string) []string {
	var urls []string
	for _, m := range cssURLPattern.FindAllStringSubmatch(value, -1) {
		if u := strings.TrimSpace(m[1]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// backgroundValue returns the concatenated values of the background and
// background-image declarations of an inline style.
func backgroundValue(style string) string {
	var b strings.Builder
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "background", "background-image":
			b.WriteString(value)
			b.WriteString(" ")
		}
	}
	return b.String()
}

func visible(s *goquery.Selection) bool {
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, hidden := n.Attr("hidden"); hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func dimension(s *goquery.Selection, attr string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s.AttrOr(attr, "")), "px"), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func selectorOf(s *goquery.Selection) string {
	if id := s.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	var parts []string
	for n := s; n.Length() > 0 && len(parts) < 3; n = n.Parent() {
		name := goquery.NodeName(n)
		if name == "body" || name == "html" || name == "#document" {
			break
		}
		if classes := strings.Fields(n.AttrOr("class", "")); len(classes) > 0 {
			name += "." + strings.Join(classes[:min(len(classes), 2)], ".")
		}
		parts = append([]string{name}, parts...)
	}
	return strings.Join(parts, " > ")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
