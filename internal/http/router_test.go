package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/threadflow/go-post-scheduler/internal/config"
	"github.com/threadflow/go-post-scheduler/internal/domain"
	"github.com/threadflow/go-post-scheduler/internal/http/middleware"
	"github.com/threadflow/go-post-scheduler/internal/repo"
	"github.com/threadflow/go-post-scheduler/internal/services"
)

// --- tiny fake job runner to satisfy handlers.JobRunner ---
type fakeJobs struct{}

func (fakeJobs) RunNow(context.Context, string) (services.JobResult, error) {
	return services.JobResult{}, nil
}

func (fakeJobs) Jobs() []string { return nil }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routerdb?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      10,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig() // empty CORS triggers AllowAllOrigins branch
	db := newTestDB(t)

	RegisterRoutes(r, db, fakeJobs{}, cfg)

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	db := newTestDB(t)

	RegisterRoutes(r, db, fakeJobs{}, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // only set on https
	db := newTestDB(t)
	RegisterRoutes(r, db, fakeJobs{}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func Test_postRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	shim := postRepoShim{}
	ctx := context.Background()

	tags, err := shim.FindOrCreateHashtags(ctx, db, []string{"go", "dev"})
	if err != nil {
		t.Fatalf("FindOrCreateHashtags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("FindOrCreateHashtags expected 2, got %d", len(tags))
	}

	p1 := &domain.Post{ID: "11111111-1111-1111-1111-111111111111", UserID: "u1", Title: "A", Content: "one", Status: domain.PostStatusDraft, Hashtags: tags}
	if err := shim.CreatePost(ctx, db, p1); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	got, err := shim.GetPost(ctx, db, p1.ID, "u1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.ID != p1.ID || len(got.Hashtags) != 2 {
		t.Fatalf("GetPost mismatch: %+v", got)
	}

	// Seed more for pagination
	p2 := &domain.Post{ID: "22222222-2222-2222-2222-222222222222", UserID: "u1", Title: "B", Content: "two", Status: domain.PostStatusDraft}
	if err := shim.CreatePost(ctx, db, p2); err != nil {
		t.Fatalf("CreatePost p2: %v", err)
	}

	n, err := shim.CountPosts(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountPosts: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountPosts expected 2, got %d", n)
	}

	page, err := shim.ListPostsPage(ctx, db, "u1", 0, 1)
	if err != nil {
		t.Fatalf("ListPostsPage: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("ListPostsPage expected 1, got %d", len(page))
	}

	at := time.Now().UTC().Add(time.Hour)
	if err := shim.SchedulePost(ctx, db, p1.ID, "u1", at); err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	got, err = shim.GetPost(ctx, db, p1.ID, "u1")
	if err != nil {
		t.Fatalf("GetPost (after schedule): %v", err)
	}
	if got.Status != domain.PostStatusScheduled {
		t.Fatalf("SchedulePost failed, status=%q", got.Status)
	}

	if err := shim.SoftDeletePost(ctx, db, p2.ID, "u1"); err != nil {
		t.Fatalf("SoftDeletePost: %v", err)
	}
	if _, err := shim.GetPost(ctx, db, p2.ID, "u1"); err == nil {
		t.Fatalf("expected deleted post to be invisible")
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.APIBasePath = "/api/vX"
	db := newTestDB(t)
	RegisterRoutes(r, db, fakeJobs{}, cfg)

	const userID = "u1"
	const key = "key-hit"

	// --- MISS: record does not exist ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but the middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:        "idem-seed-1",
		UserID:    userID,
		Key:       key,
		PostID:    "p-1",
		Status:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// again, 405 is fine; goal is to drive the middleware branch.
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()

	db, err := gorm.Open(sqlite.Open("file:routerdb_err?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	// Wire routes first...
	RegisterRoutes(r, db, fakeJobs{}, cfg)

	// ...then force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives the error branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

// End-to-end create through the full pipeline.
func TestRegisterRoutes_CreatePost_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	db := newTestDB(t)
	RegisterRoutes(r, db, fakeJobs{}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts",
		bytes.NewBufferString(`{"title":"Hi","content":"hello world","hashtags":["go"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-e2e")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/posts = %d body=%s", w.Code, w.Body.String())
	}

	n, err := repo.CountPosts(context.Background(), db, "u-e2e")
	if err != nil || n != 1 {
		t.Fatalf("post count = %d err=%v", n, err)
	}
}
