package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, ChartJSOrigin) || !strings.Contains(csp, HTMXOrigin) {
		t.Fatalf("CSP must allow the script CDNs: %q", csp)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSuspicious(t *testing.T) {
	d := NewDetector(nil)
	cases := []struct {
		method, target, agent, want string
	}{
		{http.MethodGet, "/dashboard?range=week", "Mozilla/5.0", ""},
		{http.MethodGet, "/.env", "", "pattern"},
		{http.MethodGet, "/?file=../secrets", "", "pattern"},
		{"TRACE", "/", "", "method"},
		{http.MethodGet, "/", "sqlmap/1.7", "user_agent"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		req.Header.Set("User-Agent", tc.agent)
		if got := d.Suspicious(req); got != tc.want {
			t.Errorf("%s %s: got %q, want %q", tc.method, tc.target, got, tc.want)
		}
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	if ip := d.ExtractClientIP(req); ip != "203.0.113.7" {
		t.Fatalf("trusted proxy: got %s", ip)
	}

	req.RemoteAddr = "198.51.100.1:1234"
	if ip := d.ExtractClientIP(req); ip != "198.51.100.1" {
		t.Fatalf("untrusted peer must not be overridden, got %s", ip)
	}
}

func TestDetectorMiddlewareBlocksProbes(t *testing.T) {
	d := NewDetector(nil)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("probe status = %d", rec.Code)
	}
	if m := d.GetMetrics(); m.SuspiciousRequests != 1 || m.BlockedRequests != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}
