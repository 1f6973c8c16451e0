// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for analytics
// snapshots: selection of recently published posts whose metrics should be
// refreshed, and the idempotent snapshot upsert.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// RefreshTarget identifies one published post whose engagement metrics are
// due for a refresh, together with the credential needed to fetch them.
type RefreshTarget struct {
	PostID       string
	RemotePostID string
	UserID       string
	AccessToken  string
}

// SelectRefreshable returns up to limit published posts with a remote id
// whose publish time falls inside the trailing window (published_at > since)
// and whose owner has a credential. Rows are ordered by published_at
// descending so the freshest posts are refreshed first.
func SelectRefreshable(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]RefreshTarget, error) {
	var posts []domain.Post
	err := db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.user_id = posts.user_id AND accounts.access_token <> ''").
		Where("posts.status = ?", domain.PostStatusPublished).
		Where("posts.remote_post_id IS NOT NULL").
		Where("posts.published_at > ?", since).
		Order("posts.published_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	due, err := joinCredentials(ctx, db, posts)
	if err != nil {
		return nil, err
	}

	out := make([]RefreshTarget, 0, len(due))
	for _, d := range due {
		if d.Post.RemotePostID == nil {
			continue
		}
		out = append(out, RefreshTarget{
			PostID:       d.Post.ID,
			RemotePostID: *d.Post.RemotePostID,
			UserID:       d.Post.UserID,
			AccessToken:  d.AccessToken,
		})
	}
	return out, nil
}

// UpsertSnapshot writes an analytics snapshot keyed by (post_id,
// recorded_at). Re-running a refresh inside the same capture bucket updates
// the counts in place instead of inserting duplicate rows.
func UpsertSnapshot(ctx context.Context, db *gorm.DB, snap *domain.AnalyticsSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}, {Name: "recorded_at"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"views", "likes", "comments", "shares", "reposts",
				"reach", "impressions", "engagement_rate",
			}),
		}).
		Create(snap).Error
}

// ListSnapshots returns the snapshots recorded for a post, newest first.
func ListSnapshots(ctx context.Context, db *gorm.DB, postID string, limit int) ([]domain.AnalyticsSnapshot, error) {
	var out []domain.AnalyticsSnapshot
	err := db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("recorded_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
