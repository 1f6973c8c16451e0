package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing generated X-Request-ID")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Fatalf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestLogger_AttachesRequestScopedLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(LoggerOptions{MaskHeaders: []string{"X-Api-Key"}}))
	var hadLogger bool
	r.GET("/", func(c *gin.Context) {
		hadLogger = LoggerFrom(c) != nil
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	if !hadLogger {
		t.Fatal("request-scoped logger not attached")
	}
}

func TestScrubQuery_MasksAccessTokens(t *testing.T) {
	got := scrubQuery("metric=views&access_token=SECRET123&limit=5")
	if strings.Contains(got, "SECRET123") {
		t.Fatalf("token leaked: %q", got)
	}
	if !strings.Contains(got, "access_token=[REDACTED]") {
		t.Fatalf("token not masked: %q", got)
	}
	if !strings.Contains(got, "metric=views") {
		t.Fatalf("benign params mangled: %q", got)
	}
}

func TestScrubQuery_TruncatesLongQueries(t *testing.T) {
	long := strings.Repeat("a", maxQueryLogLength+100)
	got := scrubQuery(long)
	if len(got) <= maxQueryLogLength {
		t.Fatal("expected ellipsis suffix")
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing ellipsis: %q", got[len(got)-8:])
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("body = %s, want internal_error code", w.Body.String())
	}
}

func TestLoggerFrom_FallbackWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatal("fallback logger is nil")
	}
}
