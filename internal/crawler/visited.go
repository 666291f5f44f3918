package crawler

import (
	"net/url"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// falsePositiveRate is the probability that an unseen URL is reported as
// already visited.
const falsePositiveRate = 1e-6

// VisitedSet remembers which page URLs the spider has already dispatched.
//
// Design decision: We use a bloom filter instead of a map because:
//  1. Memory stays fixed no matter how many links a site exposes
//  2. A false positive only skips one page, it never breaks the crawl
//  3. The set is never enumerated, only tested
type VisitedSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	count  int
}

// NewVisitedSet sizes the filter for the expected number of URLs.
func NewVisitedSet(expected uint) *VisitedSet {
	if expected < 1024 {
		expected = 1024
	}
	return &VisitedSet{
		filter: bloom.NewWithEstimates(expected, falsePositiveRate),
	}
}

// TestAndAdd marks pageURL as visited and reports whether it was already
// marked. URLs are compared after normalizeURL.
func (v *VisitedSet) TestAndAdd(pageURL string) bool {
	key := normalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter.TestString(key) {
		return true
	}
	v.filter.AddString(key)
	v.count++
	return false
}

// Len returns the number of distinct URLs added.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.count
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. An empty path and "/" address the same resource
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
