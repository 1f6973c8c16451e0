package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyValidator_NoHeaderIsNoOp(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/posts", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Error("key present without header")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/posts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 10}, nil))
	r.POST("/posts", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []string{"has spaces", "way-too-long-for-limit", "bad\x00byte"}
	for _, key := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/posts", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", key, w.Code)
		}
	}
}

func TestIdempotencyValidator_DetectsReplay(t *testing.T) {
	lookup := func(_ context.Context, userID, key string, _ time.Time) (bool, error) {
		return userID == "u1" && key == "retry-1", nil
	}

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	var replay, bypass bool
	r.POST("/posts", func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/posts", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-1")
	r.ServeHTTP(w, req)

	if !replay {
		t.Error("replay not detected")
	}
	if !bypass {
		t.Error("rate bypass not set on replay")
	}

	// A fresh key is not a replay.
	replay, bypass = false, false
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/posts", nil)
	req.Header.Set(HeaderIdempotencyKey, "retry-2")
	r.ServeHTTP(w, req)
	if replay || bypass {
		t.Error("fresh key flagged as replay")
	}
}

func TestGetIdempotencyKey_ReturnsValidatedKey(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	var got string
	r.POST("/posts", func(c *gin.Context) {
		got, _ = GetIdempotencyKey(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/posts", nil)
	req.Header.Set(HeaderIdempotencyKey, "create-abc.1")
	r.ServeHTTP(w, req)
	if got != "create-abc.1" {
		t.Fatalf("key = %q", got)
	}
	if strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatal("valid key rejected")
	}
}
