// Package middleware provides HTTP middleware components for the
// razorwire server.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter configuration constants.
const (
	DefaultMaxRequests = 120             // Max requests per window
	DefaultWindow      = 1 * time.Minute // Time window for rate limiting
	DefaultCleanup     = 5 * time.Minute // Cleanup interval for stale buckets
)

// RateLimiter implements a sliding window rate limiter with per-key limiting.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	buckets     map[string]*bucket
	mu          sync.RWMutex
	cleanupDone chan struct{}
}

// bucket tracks request timestamps for a single key.
type bucket struct {
	timestamps []time.Time
	lastAccess time.Time
}

// RateLimiterOption is a functional option for configuring RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithMaxRequests sets the maximum number of requests per window.
func WithMaxRequests(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		if n > 0 {
			r.maxRequests = n
		}
	}
}

// WithWindow sets the time window for rate limiting.
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.window = d
		}
	}
}

// NewRateLimiter creates a new RateLimiter with the given options.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		buckets:     make(map[string]*bucket),
		cleanupDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	go r.cleanupLoop()

	return r
}

// Allow checks if a request from the given key is allowed.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	b, exists := r.buckets[key]
	if !exists {
		b = &bucket{
			timestamps: make([]time.Time, 0, r.maxRequests),
		}
		r.buckets[key] = b
	}

	valid := b.timestamps[:0]
	for _, ts := range b.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	b.timestamps = valid
	b.lastAccess = now

	if len(b.timestamps) >= r.maxRequests {
		return false
	}

	b.timestamps = append(b.timestamps, now)
	return true
}

// Remaining returns the number of remaining requests for a key.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.buckets[key]
	if !exists {
		return r.maxRequests
	}

	cutoff := time.Now().Add(-r.window)
	count := 0
	for _, ts := range b.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}

	if remaining := r.maxRequests - count; remaining > 0 {
		return remaining
	}
	return 0
}

// Close stops the cleanup goroutine.
func (r *RateLimiter) Close() {
	close(r.cleanupDone)
}

// cleanupLoop periodically removes stale buckets.
func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(DefaultCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-r.cleanupDone:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

// cleanup removes buckets that haven't been accessed recently.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window * 2)

	for key, b := range r.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// KeyExtractor is a function that extracts a rate limit key from a request.
type KeyExtractor func(*http.Request) string

// TrustProxy controls whether to trust X-Forwarded-For headers.
// Set to true only when behind a trusted reverse proxy; the headers
// can otherwise be spoofed to bypass rate limiting.
var TrustProxy = false

// IPKeyExtractor extracts the client IP address as the rate limit key.
func IPKeyExtractor(r *http.Request) string {
	if TrustProxy {
		// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2".
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if first, _, ok := strings.Cut(xff, ","); ok {
				return strings.TrimSpace(first)
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HeaderKeyExtractor returns an extractor keyed on the given header,
// falling back to the client IP when the header is absent.
func HeaderKeyExtractor(header string) KeyExtractor {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return v
		}
		return IPKeyExtractor(r)
	}
}

// RateLimitMiddleware returns an HTTP middleware that applies rate limiting.
func RateLimitMiddleware(limiter *RateLimiter, keyExtractor KeyExtractor) func(http.Handler) http.Handler {
	if keyExtractor == nil {
		keyExtractor = IPKeyExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)

			if !limiter.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"RATE_LIMITED","message":"Too many requests. Please wait before trying again."}`))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.maxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

			next.ServeHTTP(w, r)
		})
	}
}
