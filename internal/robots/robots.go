// Package robots answers whether robots.txt lets the crawler fetch a page.
package robots

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

// DefaultCacheSize is the number of hosts whose rules are kept.
const DefaultCacheSize = 256

// fetchTimeout bounds one robots.txt request.
const fetchTimeout = 10 * time.Second

// Agent evaluates robots.txt rules for one user agent, caching the parsed
// rules per scheme and host.
//
// Errors fetching robots.txt fail open: the page is allowed. A 4xx status
// allows everything and a 5xx status disallows everything, as
// robotstxt.FromResponse decides.
type Agent struct {
	client    *http.Client
	userAgent string
	cache     *lru.Cache[string, *robotstxt.RobotsData]
}

// NewAgent creates an Agent. A nil client gets a plain client with a
// short timeout.
func NewAgent(client *http.Client, userAgent string) *Agent {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	cache, err := lru.New[string, *robotstxt.RobotsData](DefaultCacheSize)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &Agent{
		client:    client,
		userAgent: userAgent,
		cache:     cache,
	}
}

// Allowed reports whether pageURL may be fetched.
func (a *Agent) Allowed(ctx context.Context, pageURL string) bool {
	target, err := url.Parse(pageURL)
	if err != nil || !target.IsAbs() {
		return false
	}

	rules := a.rules(ctx, target)
	if rules == nil {
		return true
	}
	return rules.TestAgent(target.RequestURI(), a.userAgent)
}

func (a *Agent) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(target.Scheme + "://" + target.Host)
	if rules, ok := a.cache.Get(key); ok {
		return rules
	}

	rules := a.fetch(ctx, key+"/robots.txt")
	a.cache.Add(key, rules)
	return rules
}

// fetch returns nil when robots.txt cannot be retrieved or parsed.
func (a *Agent) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// Purge forgets the cached rules of an origin such as "https://example.com".
func (a *Agent) Purge(origin string) {
	a.cache.Remove(strings.ToLower(strings.TrimSuffix(origin, "/")))
}
