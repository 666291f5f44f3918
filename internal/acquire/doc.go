// Package acquire writes image candidates to the output directory.
//
// Two stores are selected by the candidate:
//   - Inline store: a data URI is decoded into base64_<digest>.<subtype>,
//     where digest is the hex BLAKE2b-128 of the base64 text. Equal
//     payload text lands in the same file.
//   - Remote mirror store: an http(s) image is streamed to a path that
//     mirrors its URL path under the output directory, with User-Agent
//     and Referer headers and a 30 second transfer timeout.
//
// Bytes are staged in a temporary file and linked into place, so a
// destination only ever holds a complete image. An existing file yields a
// successful, skipped result and nothing is fetched or written, which makes
// a second crawl over a populated directory a no-op. Failed transfers
// remove their temporary file and are reported, never retried.
package acquire
