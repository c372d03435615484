package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRateStore struct {
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(scope string) string { return "rl:" + scope }

func loginRequest(email, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
	req.RemoteAddr = ip + ":5555"
	return req
}

func TestRateLimitBlocksByEmail(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("login", time.Minute, 100, 2)
	var bodies []string
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest(" Ada@Example.com", "10.0.0.1"))
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, loginRequest("ada@example.com ", "10.0.0.2"))

	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "Ada@Example.com", "body is restored for the handler")
}

func TestRateLimitBlocksByIP(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("signup", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, loginRequest("a@example.com", "10.0.0.9"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, loginRequest("b@example.com", "10.0.0.9"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, store.counts, "rl:signup:ip:10.0.0.9")
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("login", 0, 1, 1), newFakeRateStore(), nil)(okHandler())
	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, loginRequest("a@example.com", "10.0.0.1"))
		assert.Equal(t, http.StatusOK, resp.Code)
	}
}

func TestRateLimitStoreFailure(t *testing.T) {
	store := &fakeRateStore{counts: map[string]int64{}, err: errors.New("boom")}
	handler := RateLimit(NewRateLimitPolicy("login", time.Minute, 5, 5), store, nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, loginRequest("a@example.com", "10.0.0.1"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}
