package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsThenRejects(t *testing.T) {
	rl := NewRateLimiter(0.0001, 2, KeyByUserOrIP())
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimiter_KeysIsolateUsers(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-User-ID"); uid != "" {
			c.Set("userID", uid)
		}
	})
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", user)
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := hit("alpha"); got != http.StatusOK {
		t.Fatalf("alpha first: %d", got)
	}
	if got := hit("alpha"); got != http.StatusTooManyRequests {
		t.Fatalf("alpha second: %d, want 429", got)
	}
	if got := hit("beta"); got != http.StatusOK {
		t.Fatalf("beta must have its own bucket: %d", got)
	}
}

func TestRateLimiter_BypassOnReplay(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true) })
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("replayed request %d limited: %d", i, w.Code)
		}
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Millisecond

	rl.get("user:stale")
	time.Sleep(5 * time.Millisecond)
	rl.lookups = 5000
	rl.get("user:fresh")

	rl.mu.Lock()
	_, staleAlive := rl.buckets["user:stale"]
	_, freshAlive := rl.buckets["user:fresh"]
	rl.mu.Unlock()
	if staleAlive {
		t.Error("stale bucket survived sweep")
	}
	if !freshAlive {
		t.Error("fresh bucket evicted")
	}
}
