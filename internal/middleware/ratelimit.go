// Package middleware provides HTTP middleware for the upload service.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimitConfig limits how many requests one client IP may make per window.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Requests      int           `yaml:"requests" validate:"min=1"`      // Max requests per IP per window
	BurstSize     int           `yaml:"burst_size" validate:"min=0"`    // Extra requests allowed on top of Requests
	Window        time.Duration `yaml:"window" validate:"gt=0"`         // Fixed window length
	CleanupPeriod time.Duration `yaml:"cleanup_period" validate:"gt=0"` // How often idle clients are forgotten
	ExemptPaths   []string      `yaml:"exempt_paths"`
	TrustProxy    bool          `yaml:"trust_proxy"` // Trust X-Forwarded-For and X-Real-IP
}

// DefaultRateLimitConfig allows 60 uploads a minute per IP, health and
// metrics excluded.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:       true,
		Requests:      60,
		BurstSize:     10,
		Window:        time.Minute,
		CleanupPeriod: 5 * time.Minute,
		ExemptPaths:   []string{"/health", "/metrics"},
	}
}

// RateLimiter is a fixed window limiter keyed by client IP.
type RateLimiter struct {
	cfg         RateLimitConfig
	clients     map[string]*clientState
	mu          sync.Mutex
	exemptPaths map[string]bool
	stop        chan struct{}
	stopOnce    sync.Once
	logger      *slog.Logger

	allowed atomic.Uint64
	limited atomic.Uint64
}

// clientState tracks request counts for a single client IP.
type clientState struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine. Call
// Stop to release it.
func NewRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, path := range cfg.ExemptPaths {
		exempt[path] = true
	}

	rl := &RateLimiter{
		cfg:         cfg,
		clients:     make(map[string]*clientState),
		exemptPaths: exempt,
		stop:        make(chan struct{}),
		logger:      logger,
	}
	if cfg.CleanupPeriod > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Limit returns the number of requests allowed per window.
func (rl *RateLimiter) Limit() int {
	return rl.cfg.Requests + rl.cfg.BurstSize
}

// Allow records a request from ip and reports whether it is within the
// limit, how many requests remain and when the window resets.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Time) {
	return rl.allowAt(ip, time.Now())
}

func (rl *RateLimiter) allowAt(ip string, now time.Time) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[ip]
	if !ok || now.After(client.windowEnd) {
		client = &clientState{windowEnd: now.Add(rl.cfg.Window)}
		rl.clients[ip] = client
	}

	limit := rl.Limit()
	if client.count >= limit {
		rl.limited.Add(1)
		return false, 0, client.windowEnd
	}

	client.count++
	rl.allowed.Add(1)
	return true, limit - client.count, client.windowEnd
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stop:
			return
		}
	}
}

// cleanup forgets clients whose window ended more than one window ago.
func (rl *RateLimiter) cleanup(now time.Time) {
	threshold := now.Add(-rl.cfg.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, client := range rl.clients {
		if client.windowEnd.Before(threshold) {
			delete(rl.clients, ip)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("rate limiter cleanup", "removed", removed, "remaining", len(rl.clients))
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// TrackedClients returns how many client IPs currently hold a window.
func (rl *RateLimiter) TrackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Allowed returns the number of requests let through.
func (rl *RateLimiter) Allowed() uint64 { return rl.allowed.Load() }

// Limited returns the number of requests rejected.
func (rl *RateLimiter) Limited() uint64 { return rl.limited.Load() }

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit headers on every limited path.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled || rl.exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r, rl.cfg.TrustProxy)
		allowed, remaining, reset := rl.Allow(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)

			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"success":     false,
				"error":       "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP. With trustProxy the rightmost
// X-Forwarded-For entry wins, since the nearest proxy appended it.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				if ip := strings.TrimSpace(parts[i]); ip != "" {
					return ip
				}
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
