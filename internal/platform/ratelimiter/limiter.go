package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EndpointLimiter applies a token bucket per endpoint key so retry loops
// cannot hammer a backend that is already failing. Idle buckets are
// evicted opportunistically.
type EndpointLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu         sync.Mutex
	byEndpoint map[string]*bucket
	checks     uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates an endpoint limiter; returns nil (everything allowed) if the
// arguments are invalid.
func New(rps float64, burst int, idleTTL time.Duration) *EndpointLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &EndpointLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		idleTTL:    idleTTL,
		byEndpoint: make(map[string]*bucket),
	}
}

// Allow reports whether one request may go out to the endpoint at now.
// A nil limiter always allows.
func (l *EndpointLimiter) Allow(endpoint string, now time.Time) bool {
	if l == nil {
		return true
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byEndpoint[endpoint]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byEndpoint[endpoint] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.checks++
	if l.checks%256 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for key, entry := range l.byEndpoint {
			if entry.lastSeen.Before(cutoff) {
				delete(l.byEndpoint, key)
			}
		}
	}

	return allowed
}
