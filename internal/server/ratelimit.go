package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter applies one token bucket per key (client IP, username).
// Idle buckets are swept on a TTL so the map stays bounded.
type keyedLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int, ttl time.Duration) *keyedLimiter {
	return &keyedLimiter{
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (k *keyedLimiter) allow(key string) bool {
	now := time.Now()
	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now

	// Sweep idle buckets at most once per TTL, not on every request.
	if now.Sub(k.lastSweep) > k.ttl {
		for key, b := range k.buckets {
			if now.Sub(b.lastSeen) > k.ttl {
				delete(k.buckets, key)
			}
		}
		k.lastSweep = now
	}
	return b.lim.Allow()
}

// getClientIP trusts the left-most X-Forwarded-For entry when present and
// falls back to the socket peer address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
