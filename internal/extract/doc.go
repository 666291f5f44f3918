// Package extract finds every image a page references.
//
// Two extractors share one record shape (Raw) and one taxonomy
// (model.SourceType):
//   - extract.js runs inside a rendered page. It inspects the live DOM and
//     computed styles, so it sees srcset choices, CSS backgrounds including
//     ::before/::after, canvas contents and element boxes.
//   - StaticExtractor walks unrendered HTML with goquery.
//
// Both produce raw records only. Normalize is the single place where URLs
// are resolved against the page, data URIs are validated, visit metadata
// is stamped and per-visit duplicates are collapsed.
//
// The lazy-content trigger (lazy.js) scrolls to the bottom of the document
// and promotes data-src, data-lazy, data-original and data-echo onto src.
// Callers wait LazySettle afterwards.
package extract
