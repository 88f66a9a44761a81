package simulator

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pokemon-trade-client/internal/cache"
)

type window struct {
	count int
	reset time.Time
}

// RateLimiter is a per-client fixed-window request limiter. Windows live in a TTL cache, so a
// client's counter disappears once its window has passed.
type RateLimiter struct {
	limit   int
	period  time.Duration
	mu      sync.Mutex
	windows *cache.TTLCache[string, *window]
	now     func() time.Time
}

// NewRateLimiter allows limit requests per client and period
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		period:  period,
		windows: cache.NewTTLCache[string, *window](period, time.Minute),
		now:     time.Now,
	}

	slog.Info("Rate limiter initialized",
		"requests_per_window", limit,
		"window", period.String())

	return rl
}

// Stop ends the background eviction of expired windows
func (rl *RateLimiter) Stop() {
	rl.windows.Stop()
}

// Allow counts one request from client and reports whether it fits in the current window,
// along with the remaining budget and the window reset time.
func (rl *RateLimiter) Allow(client string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows.Get(client)
	if !ok {
		w = &window{reset: rl.now().Add(rl.period)}
		rl.windows.Set(client, w)
	}
	if w.count >= rl.limit {
		return false, 0, w.reset
	}
	w.count++
	return true, rl.limit - w.count, w.reset
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		allowed, remaining, reset := rl.Allow(clientIP)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			slog.Warn("Rate limit exceeded",
				"client_ip", clientIP,
				"path", r.URL.Path,
				"reset_time", reset.Format(time.RFC3339))
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded, retry later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
