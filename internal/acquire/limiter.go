package acquire

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter is a token bucket per host, shared by every page of a crawl.
//
// Design decision: limits are per host rather than global because:
//  1. Images are often served from a CDN host separate from the pages
//  2. Politeness is owed to each server, not to the crawl as a whole
type HostLimiter struct {
	perSecond rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter allows perSecond requests per host with the given burst.
// A nil *HostLimiter, or one built with perSecond <= 0, never waits.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Wait blocks until host may be contacted again or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.perSecond <= 0 || host == "" {
		return nil
	}
	return l.limiterFor(strings.ToLower(host)).Wait(ctx)
}

func (l *HostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.perSecond, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}
