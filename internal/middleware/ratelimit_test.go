package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(rl.Middleware())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	router.POST("/api/auth/login", ok)
	router.POST("/api/auth/register", ok)
	return router
}

func hit(router *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":40000"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	defer rl.Stop()
	router := limitedRouter(rl)

	for i := 0; i < 3; i++ {
		if w := hit(router, "/api/auth/login", "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, expected 200", i, w.Code)
		}
	}

	w := hit(router, "/api/auth/login", "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, expected 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, expected 1", got)
	}
	if w.Body.String() != `{"error":"Too many requests, please try again later"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRateLimiter_KeyedByIPAndRoute(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	router := limitedRouter(rl)

	tests := []struct {
		path     string
		ip       string
		expected int
	}{
		{"/api/auth/login", "10.0.0.1", http.StatusOK},
		{"/api/auth/login", "10.0.0.1", http.StatusTooManyRequests},
		{"/api/auth/register", "10.0.0.1", http.StatusOK},
		{"/api/auth/login", "10.0.0.2", http.StatusOK},
	}
	for _, tt := range tests {
		if w := hit(router, tt.path, tt.ip); w.Code != tt.expected {
			t.Errorf("%s from %s: status = %d, expected %d", tt.path, tt.ip, w.Code, tt.expected)
		}
	}
	if rl.Len() != 3 {
		t.Errorf("Len() = %d, expected 3", rl.Len())
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.take("10.0.0.1 /api/auth/login")

	now = now.Add(limiterIdleTTL / 2)
	rl.take("10.0.0.2 /api/auth/login")

	now = now.Add(limiterIdleTTL/2 + time.Second)
	rl.evictIdle()

	if rl.Len() != 1 {
		t.Errorf("Len() = %d, expected 1 after eviction", rl.Len())
	}
	if allowed, _ := rl.take("10.0.0.1 /api/auth/login"); !allowed {
		t.Error("evicted client should start with a fresh bucket")
	}
}
