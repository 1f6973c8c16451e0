// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the retry
// queue: idempotent enqueue with linear backoff, completion on publish
// success, and selection of entries eligible for a retry sweep.
//
// Queue invariants maintained here:
//   - At most one non-completed entry exists per post; repeated failures
//     update that entry instead of inserting new rows.
//   - Attempts never exceed MaxAttempts; an entry hitting the ceiling flips
//     to the exhausted status and is no longer selectable.
//   - NextRetryAt strictly increases with each recorded failure.
//   - Entries are never deleted; completed and exhausted rows remain as an
//     audit trail of every publish attempt.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// RetriableEntry is one row of the retry selection: the queue entry joined
// to its still-live, credentialed post.
type RetriableEntry struct {
	Entry domain.RetryQueueEntry
	Due   DuePost
}

// EnqueueRetry records a publish failure for postID. When a non-completed
// entry already exists it is updated in place: attempts incremented, the
// error appended to the log, and the next eligible time pushed to
// now + step x attempts (linear backoff). Otherwise a fresh entry is created
// with attempts = 1 and next eligible time now + step.
//
// An entry whose attempts reach maxAttempts, or whose failure is flagged
// permanent, flips to the exhausted status immediately so the sweep stops
// selecting it.
//
// A failure recorded against an exhausted entry means the post was
// rescheduled after a previous cycle burned out. The entry is reset to
// attempts = 1 so the new cycle gets the full attempt budget; the old error
// log is kept and appended to.
func EnqueueRetry(ctx context.Context, db *gorm.DB, postID, errMsg string, permanent bool, maxAttempts int, step time.Duration, now time.Time) (*domain.RetryQueueEntry, error) {
	if maxAttempts < 1 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	var entry domain.RetryQueueEntry
	err := db.WithContext(ctx).
		Where("post_id = ? AND status <> ?", postID, domain.QueueStatusCompleted).
		First(&entry).Error

	logged := domain.RetryLogEntry{Timestamp: now, Error: errMsg}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = domain.RetryQueueEntry{
			ID:          uuid.NewString(),
			PostID:      postID,
			Attempts:    1,
			MaxAttempts: maxAttempts,
			NextRetryAt: now.Add(step),
			ErrorLog:    domain.RetryLog{logged},
			Status:      domain.QueueStatusPending,
			CreatedAt:   now,
		}
		finalizeRetryState(&entry, permanent, now)
		if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil

	case err != nil:
		return nil, err

	default:
		if entry.Status == domain.QueueStatusExhausted {
			entry.Attempts = 1
			entry.MaxAttempts = maxAttempts
		} else {
			entry.Attempts++
		}
		entry.NextRetryAt = now.Add(time.Duration(entry.Attempts) * step)
		entry.ErrorLog = append(entry.ErrorLog, logged)
		entry.Status = domain.QueueStatusPending
		entry.ProcessedAt = nil
		finalizeRetryState(&entry, permanent, now)
		if err := db.WithContext(ctx).Save(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil
	}
}

// finalizeRetryState flips an entry to exhausted when no further attempts
// make sense: the ceiling is reached or the failure is permanent.
func finalizeRetryState(entry *domain.RetryQueueEntry, permanent bool, now time.Time) {
	if permanent || entry.Attempts >= entry.MaxAttempts {
		entry.Status = domain.QueueStatusExhausted
		t := now
		entry.ProcessedAt = &t
	}
}

// CompleteRetryEntry marks any non-completed entry for postID as completed,
// recording the processing time. Calling it when no entry exists is a no-op:
// a first-attempt success has nothing to complete.
func CompleteRetryEntry(ctx context.Context, db *gorm.DB, postID string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.RetryQueueEntry{}).
		Where("post_id = ? AND status <> ?", postID, domain.QueueStatusCompleted).
		Updates(map[string]any{
			"status":       domain.QueueStatusCompleted,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

// GetQueueEntryByPost returns the single non-completed entry for postID, or
// ErrNotFound when the post has no open entry.
func GetQueueEntryByPost(ctx context.Context, db *gorm.DB, postID string) (*domain.RetryQueueEntry, error) {
	var entry domain.RetryQueueEntry
	err := db.WithContext(ctx).
		Where("post_id = ? AND status <> ?", postID, domain.QueueStatusCompleted).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SelectRetriable returns up to limit queue entries eligible for a retry
// sweep: pending, next_retry_at <= now, attempts below the ceiling, joined
// to a not-deleted post whose owner still has a credential. Rows are ordered
// by next_retry_at ascending with the entry id as a deterministic tie-break.
func SelectRetriable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]RetriableEntry, error) {
	var entries []domain.RetryQueueEntry
	err := db.WithContext(ctx).
		Joins("JOIN posts ON posts.id = post_queue.post_id AND posts.deleted_at IS NULL").
		Joins("JOIN accounts ON accounts.user_id = posts.user_id AND accounts.access_token <> ''").
		Where("post_queue.status = ?", domain.QueueStatusPending).
		Where("post_queue.next_retry_at <= ?", now).
		Where("post_queue.attempts < post_queue.max_attempts").
		Order("post_queue.next_retry_at ASC, post_queue.id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []RetriableEntry{}, nil
	}

	postIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		postIDs = append(postIDs, e.PostID)
	}
	var posts []domain.Post
	if err := db.WithContext(ctx).Preload("Hashtags").Where("id IN ?", postIDs).Find(&posts).Error; err != nil {
		return nil, err
	}
	due, err := joinCredentials(ctx, db, posts)
	if err != nil {
		return nil, err
	}
	byPost := make(map[string]DuePost, len(due))
	for _, d := range due {
		byPost[d.Post.ID] = d
	}

	out := make([]RetriableEntry, 0, len(entries))
	for _, e := range entries {
		d, ok := byPost[e.PostID]
		if !ok {
			continue
		}
		out = append(out, RetriableEntry{Entry: e, Due: d})
	}
	return out, nil
}
