package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithHeaders(cfg HeadersConfig) http.Header {
	h := SecurityHeaders(cfg, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	return rr.Header()
}

func TestSecurityHeaders_Defaults(t *testing.T) {
	got := serveWithHeaders(DefaultHeadersConfig())

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
	if got.Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
	if got.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should be off by default")
	}
}

func TestSecurityHeaders_HSTSAndCustom(t *testing.T) {
	cfg := DefaultHeadersConfig()
	cfg.HSTSMaxAge = 3600
	cfg.HSTSIncludeSubdomains = true
	cfg.ReferrerPolicy = ""
	cfg.Custom = map[string]string{"X-Service": "logsentry"}

	got := serveWithHeaders(cfg)
	if got.Get("Strict-Transport-Security") != "max-age=3600; includeSubDomains" {
		t.Errorf("HSTS = %q", got.Get("Strict-Transport-Security"))
	}
	if got.Get("X-Service") != "logsentry" {
		t.Errorf("custom header = %q", got.Get("X-Service"))
	}
	if _, ok := got["Referrer-Policy"]; ok {
		t.Error("empty value should leave the header unset")
	}
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	cfg := DefaultHeadersConfig()
	cfg.Enabled = false
	if got := serveWithHeaders(cfg); len(got) != 0 {
		t.Errorf("expected no headers, got %v", got)
	}
}
