package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

// =============================================================================
// REQUEST ID
// =============================================================================

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_KeepsIncomingID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-lb")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "from-lb", seen)
	assert.Equal(t, "from-lb", w.Header().Get(RequestIDHeader))
}

// =============================================================================
// REQUEST LOGGER
// =============================================================================

func TestWithRequestLogger_AddsRequestAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestID(WithClientIP()(WithRequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		GetLogger(r.Context()).Info("inside")
	}))))

	req := httptest.NewRequest(http.MethodGet, "/hello/bob", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/hello/bob", entry["path"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "203.0.113.7", entry["client_ip"])
}

func TestGetLogger_Fallbacks(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	assert.Same(t, fallback, GetLogger(t.Context(), fallback))
	assert.Same(t, slog.Default(), GetLogger(t.Context()))
}

// =============================================================================
// CLIENT IP
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded list", headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, remote: "10.0.0.2:1234", want: "198.51.100.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.9"}, remote: "10.0.0.2:1234", want: "198.51.100.9"},
		{name: "remote addr", remote: "192.0.2.4:5555", want: "192.0.2.4"},
		{name: "remote addr without port", remote: "192.0.2.4", want: "192.0.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

// =============================================================================
// RATE LIMIT
// =============================================================================

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	defer rl.Stop()

	h := rl.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api_v1/validate_address", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), `"rate_limit"`)
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestCarrierRateLimiterConfig_KeysByClientIP(t *testing.T) {
	cfg := CarrierRateLimiterConfig()
	cfg.BurstSize = 1
	cfg.RequestsPerSecond = 0.001
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	h := rl.Middleware(okHandler)
	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api_v1/validate_address", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusOK, send("203.0.113.2"))
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(CarrierRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

// =============================================================================
// SECURITY HEADERS
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		env      string
		wantHSTS bool
	}{
		{env: "dev", wantHSTS: false},
		{env: "prod", wantHSTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			h := SecurityHeaders(APISecurityHeadersConfig(tt.env))(okHandler)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
			assert.Equal(t, tt.wantHSTS, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

// =============================================================================
// TIMEOUT
// =============================================================================

func TestTimeout_PassesFastHandler(t *testing.T) {
	h := Timeout(time.Second)(okHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestTimeout_SlowHandler(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Request timeout")
}

// countingWriter counts calls that reach it once returned is set.
type countingWriter struct {
	header   http.Header
	returned atomic.Bool
	late     atomic.Int32
}

func (c *countingWriter) Header() http.Header { return c.header }

func (c *countingWriter) WriteHeader(int) {
	if c.returned.Load() {
		c.late.Add(1)
	}
}

func (c *countingWriter) Write(b []byte) (int, error) {
	if c.returned.Load() {
		c.late.Add(1)
	}
	return len(b), nil
}

func TestTimeout_CopiesHandlerHeaders(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Carrier-Transaction-ID", "txn-1")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "txn-1", w.Header().Get("X-Carrier-Transaction-ID"))
	assert.Equal(t, "queued", w.Body.String())
}

func TestTimeout_ClientGoneDropsLateWrites(t *testing.T) {
	finished := make(chan struct{})
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		<-r.Context().Done()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("late"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	cw := &countingWriter{header: make(http.Header)}
	h.ServeHTTP(cw, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	cw.returned.Store(true)

	<-finished
	assert.Zero(t, cw.late.Load())
	assert.Empty(t, cw.header.Get("Content-Type"))
}

func TestTimeout_HandlerSetsHeadersAfterDeadline(t *testing.T) {
	finished := make(chan struct{})
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		<-r.Context().Done()
		for i := 0; i < 100; i++ {
			w.Header().Set("X-Carrier-Transaction-ID", "txn-late")
		}
		w.Write([]byte("late"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	<-finished

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, w.Header().Get("X-Carrier-Transaction-ID"))
	assert.NotContains(t, w.Body.String(), "late")
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetrics_RecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	h := m.Middleware(okHandler)
	for _, path := range []string{"/hello/ann", "/hello/bob", "/"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/hello/:name", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/", "200")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_total"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/api_v1/validate_address", "/api_v1/validate_address"},
		{"/api_v1/list_endpoints", "/api_v1/list_endpoints"},
		{"/hello/world", "/hello/:name"},
		{"/hello/", "other"},
		{"/hello/a/b", "other"},
		{"/wp-login.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[string]int{
		"invalid":      http.StatusBadRequest,
		"unauthorized": http.StatusUnauthorized,
		"rate_limit":   http.StatusTooManyRequests,
		"upstream":     http.StatusBadGateway,
		"unavailable":  http.StatusServiceUnavailable,
		"timeout":      http.StatusGatewayTimeout,
		"bogus":        http.StatusInternalServerError,
	}

	for code, want := range tests {
		assert.Equal(t, want, errorCodeToHTTPStatus(code), code)
	}
}
