package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRateConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		Requests:    3,
		BurstSize:   1,
		Window:      time.Minute,
		ExemptPaths: []string{"/health"},
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(testRateConfig(), testLogger())
	defer rl.Stop()

	for i := 0; i < 4; i++ {
		ok, remaining, _ := rl.Allow("10.0.0.1")
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 3 - i; remaining != want {
			t.Errorf("request %d remaining = %d, want %d", i+1, remaining, want)
		}
	}

	if ok, _, _ := rl.Allow("10.0.0.1"); ok {
		t.Error("fifth request should be limited")
	}
	if ok, _, _ := rl.Allow("10.0.0.2"); !ok {
		t.Error("other IPs have their own window")
	}
	if rl.Allowed() != 5 || rl.Limited() != 1 {
		t.Errorf("allowed = %d, limited = %d, want 5 and 1", rl.Allowed(), rl.Limited())
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(testRateConfig(), testLogger())
	defer rl.Stop()

	start := time.Now()
	for i := 0; i < 4; i++ {
		rl.allowAt("10.0.0.1", start)
	}
	if ok, _, _ := rl.allowAt("10.0.0.1", start.Add(time.Second)); ok {
		t.Fatal("expected limit inside the window")
	}
	if ok, _, _ := rl.allowAt("10.0.0.1", start.Add(61*time.Second)); !ok {
		t.Error("expected a fresh window after it expired")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(testRateConfig(), testLogger())
	defer rl.Stop()

	start := time.Now()
	rl.allowAt("10.0.0.1", start)
	rl.allowAt("10.0.0.2", start.Add(90*time.Second))

	rl.cleanup(start.Add(3 * time.Minute))
	if got := rl.TrackedClients(); got != 1 {
		t.Errorf("tracked = %d, want 1", got)
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	cfg := testRateConfig()
	cfg.CleanupPeriod = time.Millisecond
	rl := NewRateLimiter(cfg, testLogger())
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(testRateConfig(), testLogger())
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 4; i++ {
		if rr := send("/upload"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}

	rr := send("/upload")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr.Header().Get("X-RateLimit-Limit") != "4" {
		t.Errorf("X-RateLimit-Limit = %q", rr.Header().Get("X-RateLimit-Limit"))
	}

	if rr := send("/health"); rr.Code != http.StatusOK {
		t.Errorf("exempt path status = %d", rr.Code)
	}
}

func TestRateLimiter_MiddlewareDisabled(t *testing.T) {
	cfg := testRateConfig()
	cfg.Enabled = false
	rl := NewRateLimiter(cfg, testLogger())
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/upload", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	cfg := testRateConfig()
	cfg.Requests = 50
	cfg.BurstSize = 0
	rl := NewRateLimiter(cfg, testLogger())
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.Allow("10.0.0.1")
		}()
	}
	wg.Wait()

	if rl.Allowed() != 50 || rl.Limited() != 50 {
		t.Errorf("allowed = %d, limited = %d, want 50 and 50", rl.Allowed(), rl.Limited())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", nil, false, "192.0.2.1"},
		{"no port", "192.0.2.1", nil, false, "192.0.2.1"},
		{"xff ignored without trust", "192.0.2.1:1", map[string]string{"X-Forwarded-For": "1.1.1.1"}, false, "192.0.2.1"},
		{"rightmost xff", "192.0.2.1:1", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2 "}, true, "2.2.2.2"},
		{"x-real-ip", "192.0.2.1:1", map[string]string{"X-Real-IP": "3.3.3.3"}, true, "3.3.3.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
