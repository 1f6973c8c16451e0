// Post HTTP handlers.
//
// This file exposes REST endpoints for post resources:
//   - POST   /posts                 (create, idempotent via Idempotency-Key)
//   - GET    /posts                 (list, paginated)
//   - GET    /posts/{id}            (fetch)
//   - PUT    /posts/{id}/schedule   (schedule or reschedule)
//   - DELETE /posts/{id}            (soft delete)
//   - GET    /posts/{id}/analytics  (engagement snapshots)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
	"github.com/threadflow/go-post-scheduler/internal/http/middleware"
	"github.com/threadflow/go-post-scheduler/internal/repo"
	"github.com/threadflow/go-post-scheduler/internal/services"
	"github.com/threadflow/go-post-scheduler/internal/utils"
)

//
// Service contracts (context-aware)
//

// PostService defines post lifecycle operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context.
type PostService interface {
	// Create inserts a new post for userID, optionally directly scheduled.
	Create(ctx context.Context, userID, title, content string, hashtags []string, scheduledAt *time.Time) (*domain.Post, error)
	// Get fetches one post owned by userID, hashtags included.
	Get(ctx context.Context, userID, postID string) (*domain.Post, error)
	// ListPage returns a page of the user's posts and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Post, int64, error)
	// Schedule moves a post into the scheduled state at the given time.
	Schedule(ctx context.Context, userID, postID string, at time.Time) error
	// Delete soft-deletes a post owned by userID.
	Delete(ctx context.Context, userID, postID string) error
}

// JobRunner triggers one cycle of a named background job on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (services.JobResult, error)
	Jobs() []string
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for posts, background jobs, and
// operational stats.
type Handlers struct {
	postSvc PostService
	jobs    JobRunner
	db      *gorm.DB

	// idemTTL bounds how long a stored create result stays replayable.
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given dependencies.
func New(postSvc PostService, jobs JobRunner, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{postSvc: postSvc, jobs: jobs, db: db, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from the Gin context (set by
// upstream middleware), falling back to the X-User-ID header and finally
// to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreatePostRequest is the JSON payload for creating a post.
type CreatePostRequest struct {
	// Title names the post in listings; not part of the published content.
	Title string `json:"title" example:"Launch announcement"`
	// Content is the body text published to the platform.
	Content string `json:"content" binding:"required" example:"We are live!"`
	// Hashtags are appended to the published content, '#' optional.
	Hashtags []string `json:"hashtags" example:"launch,golang"`
	// ScheduledAt optionally schedules the post immediately (RFC 3339).
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" example:"2026-09-01T15:04:05Z"`
}

// SchedulePostRequest is the JSON payload for scheduling a post.
type SchedulePostRequest struct {
	// ScheduledAt is the future publication time (RFC 3339).
	ScheduledAt time.Time `json:"scheduled_at" binding:"required" example:"2026-09-01T15:04:05Z"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.PageParams(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

//
// Handlers
//

// CreatePost godoc
// @ID          createPost
// @Summary     Create a new post
// @Description Creates a post for the current user, optionally scheduled. Retries carrying the same Idempotency-Key return the originally created post.
// @Tags        Posts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.CreatePostRequest  true  "Create post payload"
//
// @Success     201  {object}  domain.Post
// @Success     200  {object}  domain.Post  "Replay of a previous create"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// Serve replays without re-executing side effects.
	if middleware.IsReplay(c) {
		if key, has := middleware.GetIdempotencyKey(c); has {
			if rec, err := repo.GetIdempotency(ctx, h.db, uid, key, time.Now().UTC()); err == nil {
				if p, err := h.postSvc.Get(ctx, uid, rec.PostID); err == nil {
					ok(c, rec.Status, p)
					return
				}
			}
		}
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.postSvc.Create(ctx, uid, req.Title, req.Content, req.Hashtags, req.ScheduledAt)
	if err != nil {
		switch {
		case isClientError(err):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Record the result for future replays; failures here must not undo
	// the create.
	if key, has := middleware.GetIdempotencyKey(c); has {
		_, _ = repo.CreateIdempotency(ctx, h.db, uid, key, p.ID, http.StatusOK, h.idemTTL)
	}

	ok(c, http.StatusCreated, p)
}

// GetPost godoc
// @ID          getPost
// @Summary     Fetch one post
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Post ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Post
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Post not found"
// @Router      /posts/{id} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	postID := c.Param("id")
	if _, err := uuid.Parse(postID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	p, err := h.postSvc.Get(c.Request.Context(), userID(c), postID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
		return
	}
	ok(c, http.StatusOK, p)
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List posts (paginated)
// @Description Returns a page of the user's posts, newest first.
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPostsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.postSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListPostsResponse{
		Posts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SchedulePost godoc
// @ID          schedulePost
// @Summary     Schedule a post
// @Description Moves a draft, scheduled, or failed post to the scheduled state at a future time. Published posts cannot be rescheduled.
// @Tags        Posts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Post ID (UUID)"  format(uuid)
// @Param       body       body    handlers.SchedulePostRequest  true  "Schedule payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     409  {object} handlers.ErrorResponse "Post cannot be scheduled"
// @Router      /posts/{id}/schedule [put]
func (h *Handlers) SchedulePost(c *gin.Context) {
	postID := c.Param("id")
	if _, err := uuid.Parse(postID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	var req SchedulePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scheduled_at (RFC 3339) required")
		return
	}

	err := h.postSvc.Schedule(c.Request.Context(), userID(c), postID, req.ScheduledAt)
	switch {
	case err == nil:
		noContent(c)
	case err == services.ErrScheduleInPast:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case err == services.ErrNotSchedulable:
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case err == services.ErrPostNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeScheduleFailed, err.Error())
	}
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a post
// @Description Soft-deletes a post; the scheduler never selects deleted posts.
// @Tags        Posts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Post ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Router      /posts/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	postID := c.Param("id")
	if _, err := uuid.Parse(postID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	if err := h.postSvc.Delete(c.Request.Context(), userID(c), postID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
		return
	}
	noContent(c)
}

// ListPostAnalytics godoc
// @ID          listPostAnalytics
// @Summary     List engagement snapshots for a post
// @Description Returns recent analytics snapshots, newest first.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Post ID (UUID)"  format(uuid)
//
// @Success     200  {array}  domain.AnalyticsSnapshot
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Router      /posts/{id}/analytics [get]
func (h *Handlers) ListPostAnalytics(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("id")
	if _, err := uuid.Parse(postID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	// Ownership check before exposing metrics.
	if _, err := h.postSvc.Get(ctx, userID(c), postID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
		return
	}

	snaps, err := repo.ListSnapshots(ctx, h.db, postID, 100)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, snaps)
}

// isClientError reports whether the service error is the caller's fault.
func isClientError(err error) bool {
	switch err {
	case services.ErrEmptyContent, services.ErrContentTooLong, services.ErrScheduleInPast:
		return true
	}
	return false
}
