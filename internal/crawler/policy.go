package crawler

import (
	"errors"
	"net/url"
	"strings"

	"github.com/nao1215/imagecrawler/internal/model"
)

// DefaultLinkCap is the number of links per page that are considered for
// admission, counted in document order.
const DefaultLinkCap = 20

// ErrNoOrigin is returned by Origin when a URL has no scheme or host.
var ErrNoOrigin = errors.New("url has no origin")

// Origin returns the lower-cased scheme://host[:port] of rawURL.
//
// A port equal to the scheme default is dropped, so "https://example.com"
// and "https://example.com:443" share one origin.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ErrNoOrigin
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + canonicalHost(scheme, u), nil
}

// canonicalHost returns the lower-cased host of u without a default port.
func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Host)
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		host = strings.TrimSuffix(host, ":"+port)
	}
	return host
}

// Policy decides which links discovered on a page re-enter the crawl.
//
// Design decision: Policy is a value type with no state because:
//  1. Admission must be a pure function of (parent, link, position, origin)
//  2. Pages are processed concurrently and share one Policy
//  3. Revisit suppression belongs to the Spider's visited set, not here
type Policy struct {
	// MaxDepth is the deepest level a task may have. The seed is depth 1.
	MaxDepth int

	// LinkCap is how many links per page, in document order, are eligible.
	LinkCap int
}

// NewPolicy returns a Policy with the default link cap.
func NewPolicy(maxDepth int) Policy {
	return Policy{MaxDepth: maxDepth, LinkCap: DefaultLinkCap}
}

// Decide reports whether link, found at position index on the page of
// parent, is admitted. The returned task carries depth parent.Depth+1 and
// the link without its fragment.
func (p Policy) Decide(parent model.CrawlTask, link string, index int, seedOrigin string) (model.CrawlTask, bool) {
	if parent.Depth >= p.MaxDepth {
		return model.CrawlTask{}, false
	}
	if index < 0 || index >= p.linkCap() {
		return model.CrawlTask{}, false
	}

	origin, err := Origin(link)
	if err != nil || origin != seedOrigin {
		return model.CrawlTask{}, false
	}

	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return model.CrawlTask{}, false
	}
	u.Fragment = ""
	u.RawFragment = ""

	return model.CrawlTask{URL: u.String(), Depth: parent.Depth + 1}, true
}

// Admit applies Decide to links in document order and returns the admitted
// child tasks. Only the first LinkCap links are looked at, whether or not
// they turn out to be admissible.
func (p Policy) Admit(parent model.CrawlTask, links []string, seedOrigin string) []model.CrawlTask {
	limit := min(len(links), p.linkCap())
	tasks := make([]model.CrawlTask, 0, limit)
	for i := range limit {
		if task, ok := p.Decide(parent, links[i], i, seedOrigin); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func (p Policy) linkCap() int {
	if p.LinkCap <= 0 {
		return DefaultLinkCap
	}
	return p.LinkCap
}
