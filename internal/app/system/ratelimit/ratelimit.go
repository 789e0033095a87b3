// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter provides rate limiting using a sliding window algorithm.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	cleanup  time.Duration // how often to clean old entries
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a new rate limiter.
// limit: maximum requests allowed per duration
// duration: the time window for counting requests
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		cleanup:  duration * 2, // cleanup entries older than 2x duration
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the background cleanup. The limiter still answers Allow.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow checks if a request from the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]

	// If no window exists or window expired, create new one
	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{
			count:     1,
			expiresAt: now.Add(l.duration),
		}
		return true
	}

	// Window still active - check limit
	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		return l.limit
	}

	remaining := l.limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the rate limit for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanupLoop periodically removes expired entries to prevent memory leaks.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list, first is client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (strip port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

// RegistrationLimiter throttles the public registration and status
// endpoints. It tracks both the caller's IP and the identity being
// registered or looked up, so one client cannot enumerate many identities and
// many clients cannot hammer one identity.
type RegistrationLimiter struct {
	ipLimiter       *Limiter
	identityLimiter *Limiter
}

// NewRegistrationLimiter creates a limiter with the default limits:
// 30 requests per IP per minute, 10 per identity per 10 minutes.
func NewRegistrationLimiter() *RegistrationLimiter {
	return NewRegistrationLimiterWithConfig(30, time.Minute, 10, 10*time.Minute)
}

// NewRegistrationLimiterWithConfig creates a registration limiter with custom limits.
func NewRegistrationLimiterWithConfig(ipLimit int, ipDuration time.Duration, identityLimit int, identityDuration time.Duration) *RegistrationLimiter {
	return &RegistrationLimiter{
		ipLimiter:       New(ipLimit, ipDuration),
		identityLimiter: New(identityLimit, identityDuration),
	}
}

// Check reports whether the request may proceed. identity is typically the
// applicant's email; it is skipped when empty. A nil limiter allows everything.
func (rl *RegistrationLimiter) Check(r *http.Request, identity string) (bool, string) {
	if rl == nil {
		return true, ""
	}
	if !rl.ipLimiter.Allow(ClientIP(r)) {
		return false, "Too many requests. Please wait a minute before trying again."
	}
	if identity != "" {
		key := strings.ToLower(strings.TrimSpace(identity))
		if !rl.identityLimiter.Allow(key) {
			return false, "Too many attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetIdentity clears the identity limit, for example after a successful
// registration.
func (rl *RegistrationLimiter) ResetIdentity(identity string) {
	if rl != nil && identity != "" {
		rl.identityLimiter.Reset(strings.ToLower(strings.TrimSpace(identity)))
	}
}

// Stop ends both limiters' cleanup loops.
func (rl *RegistrationLimiter) Stop() {
	if rl != nil {
		rl.ipLimiter.Stop()
		rl.identityLimiter.Stop()
	}
}
