// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Post model:
// CRUD used by the editing surface, plus the due-post selection and the
// status transitions driven by the publish executor.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a post is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// DuePost is one row of the due-post selection: the post itself plus the
// owner's current access credential and the materialized hashtag names.
type DuePost struct {
	Post        domain.Post
	AccessToken string
	Hashtags    []string
}

// CreatePost inserts a new Post row owned by userID together with its
// hashtag associations. The post ID is a randomly generated UUID and
// CreatedAt is set to UTC.
func CreatePost(ctx context.Context, db *gorm.DB, p *domain.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetPost fetches a single post by its ID and owner (userID), hashtags
// preloaded. If the record does not exist, it returns ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Post, error) {
	var p domain.Post
	err := db.WithContext(ctx).
		Preload("Hashtags").
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPosts returns the total number of posts owned by userID.
func CountPosts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListPostsPage returns a paginated slice of posts for userID, ordered by
// creation time descending, hashtags preloaded. Use CountPosts to obtain
// the total for pagination metadata.
func ListPostsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Preload("Hashtags").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SchedulePost sets a post's scheduling timestamp and moves it to the
// scheduled status. Only draft, scheduled, or failed posts may be
// (re)scheduled; published posts are terminal. Returns ErrNotFound when no
// matching row was updated.
func SchedulePost(ctx context.Context, db *gorm.DB, id, userID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID,
			[]string{domain.PostStatusDraft, domain.PostStatusScheduled, domain.PostStatusFailed}).
		Updates(map[string]any{
			"scheduled_at": at,
			"status":       domain.PostStatusScheduled,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDeletePost marks a post deleted (gorm soft delete). Deleted posts are
// never selected by the scheduler again. Returns ErrNotFound when the post
// does not exist or is not owned by userID.
func SoftDeletePost(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SelectDuePosts returns up to limit posts that are due for publishing:
// status scheduled, scheduled_at <= now, not soft-deleted, and whose owner
// has a non-empty access credential. Rows are ordered ascending by
// scheduled_at so the oldest due post is attempted first.
//
// It returns an empty slice, never an error, when nothing is due; a store
// failure is propagated so the caller can skip the cycle.
func SelectDuePosts(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]DuePost, error) {
	var posts []domain.Post
	err := db.WithContext(ctx).
		Preload("Hashtags").
		Joins("JOIN accounts ON accounts.user_id = posts.user_id AND accounts.access_token <> ''").
		Where("posts.status = ?", domain.PostStatusScheduled).
		Where("posts.scheduled_at IS NOT NULL AND posts.scheduled_at <= ?", now).
		Order("posts.scheduled_at ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return joinCredentials(ctx, db, posts)
}

// joinCredentials materializes DuePost rows for the given posts by loading
// the owners' access tokens in one query.
func joinCredentials(ctx context.Context, db *gorm.DB, posts []domain.Post) ([]DuePost, error) {
	if len(posts) == 0 {
		return []DuePost{}, nil
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	var accounts []domain.Account
	if err := db.WithContext(ctx).Where("user_id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	tokens := make(map[string]string, len(accounts))
	for _, a := range accounts {
		tokens[a.UserID] = a.AccessToken
	}

	out := make([]DuePost, 0, len(posts))
	for _, p := range posts {
		names := make([]string, 0, len(p.Hashtags))
		for _, h := range p.Hashtags {
			names = append(names, h.Name)
		}
		out = append(out, DuePost{Post: p, AccessToken: tokens[p.UserID], Hashtags: names})
	}
	return out, nil
}

// ClaimPost performs an optimistic claim on a post before the gateway call:
// the row is bumped only when its status and updated_at still match what the
// selecting query saw. A false return means another executor got there
// first and the caller must skip the post.
func ClaimPost(ctx context.Context, db *gorm.DB, id, expectStatus string, seenUpdatedAt, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ? AND status = ? AND updated_at = ?", id, expectStatus, seenUpdatedAt).
		Update("updated_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPostPublished moves a post to the published status, recording the
// remote post identifier and the publish timestamp and clearing any previous
// error message. Returns ErrNotFound when the post does not exist.
func MarkPostPublished(ctx context.Context, db *gorm.DB, id, remoteID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         domain.PostStatusPublished,
			"remote_post_id": remoteID,
			"published_at":   now,
			"error_message":  nil,
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkPostFailed moves a post to the failed status, recording the error
// message of the attempt. Returns ErrNotFound when the post does not exist.
func MarkPostFailed(ctx context.Context, db *gorm.DB, id, errMsg string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.PostStatusFailed,
			"error_message": errMsg,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
