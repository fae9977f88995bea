package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client)
	fixed := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	return rl
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	rl := newTestLimiter(t)
	handler := rl.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	limit := defaultConfigs["/subscriptions/sponsor"].Requests
	for i := 0; i < limit; i++ {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions/sponsor", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/sponsor", nil)
	req.RemoteAddr = "198.51.100.7:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many sponsor code attempts")

	// another caller has its own bucket
	req = httptest.NewRequest(http.MethodPost, "/subscriptions/sponsor", nil)
	req.RemoteAddr = "198.51.100.8:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitSkipsReads(t *testing.T) {
	rl := newTestLimiter(t)
	handler := rl.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions", nil))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitSkipsFormValidation(t *testing.T) {
	rl := newTestLimiter(t)
	handler := rl.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// a long description typed one key at a time
	for i := 0; i < defaultConfigs["default"].Requests+50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/subscriptions/validate", nil)
		req.RemoteAddr = "198.51.100.9:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitConfigFor(t *testing.T) {
	rl := newTestLimiter(t)

	assert.Equal(t, defaultConfigs["/internal/session-token"], rl.configFor("/internal/anything"))
	assert.Equal(t, defaultConfigs["default"], rl.configFor("/subscriptions/select"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://www.paypal.com")
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}
