package handlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type rateLimitWindow struct {
	mu       sync.Mutex
	requests []time.Time
}

// allow records a request if fewer than limit fall inside window.
func (w *rateLimitWindow) allow(limit int, window time.Duration, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-window)
	// Remove expired entries
	i := 0
	for i < len(w.requests) && !w.requests[i].After(cutoff) {
		i++
	}
	w.requests = w.requests[i:]
	if len(w.requests) >= limit {
		return false
	}
	w.requests = append(w.requests, now)
	return true
}

// RunRateLimit allows each client address at most perMinute requests in any
// sliding minute. A non-positive limit disables the check.
func RunRateLimit(perMinute int) func(http.Handler) http.Handler {
	var windows sync.Map // client address → *rateLimitWindow
	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			val, _ := windows.LoadOrStore(clientKey(r), &rateLimitWindow{})
			if !val.(*rateLimitWindow).allow(perMinute, time.Minute, time.Now()) {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
