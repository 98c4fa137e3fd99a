package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(1, 2, time.Minute)

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"), "expected burst to be exhausted")
	assert.True(t, rl.allow("b"), "expected keys to be limited independently")
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(1, 1, time.Minute)
	rl.allow("stale")

	rl.evict(time.Now().Add(2 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.limiters)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := newRateLimiter(1, 1, time.Minute)
	go rl.gc()

	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

func Test_rateLimit(t *testing.T) {
	app := newTestApp(t)
	app.limiter = newRateLimiter(1, 1, time.Minute)

	handler := app.rateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	req.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func Test_clientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIP("10.0.0.1:8080"))
	assert.Equal(t, "::1", clientIP("[::1]:8080"))
	assert.Equal(t, "pipe", clientIP("pipe"))
}
