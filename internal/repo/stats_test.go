package repo

import (
	"context"
	"testing"
	"time"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

func TestCollectStats(t *testing.T) {
	db := newRepoDB(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedAccount(t, db, "u1", "tok-1")
	seedScheduledPost(t, db, "p-sched", "u1", now.Add(time.Hour))
	seedPublishedPost(t, db, "p-pub", "u1", "r1", now.Add(-time.Hour))
	if err := db.Create(&domain.Post{ID: "p-draft", UserID: "u1", Title: "t", Content: "c", Status: domain.PostStatusDraft}).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	if _, err := EnqueueRetry(context.Background(), db, "p-sched", "boom", false, 3, 5*time.Minute, now); err != nil {
		t.Fatalf("EnqueueRetry: %v", err)
	}
	if _, err := EnqueueRetry(context.Background(), db, "p-draft", "rejected", true, 3, 5*time.Minute, now); err != nil {
		t.Fatalf("EnqueueRetry (permanent): %v", err)
	}
	if err := UpsertSnapshot(context.Background(), db, &domain.AnalyticsSnapshot{PostID: "p-pub", Reach: 10, RecordedAt: now}); err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}

	stats, err := CollectStats(context.Background(), db)
	if err != nil {
		t.Fatalf("CollectStats: %v", err)
	}
	if stats.PostsByStatus[domain.PostStatusScheduled] != 1 ||
		stats.PostsByStatus[domain.PostStatusPublished] != 1 ||
		stats.PostsByStatus[domain.PostStatusDraft] != 1 {
		t.Fatalf("unexpected post counts: %+v", stats.PostsByStatus)
	}
	if stats.QueuePending != 1 || stats.QueueExhausted != 1 {
		t.Fatalf("unexpected queue depths: %+v", stats)
	}
	if stats.Snapshots != 1 {
		t.Fatalf("unexpected snapshot count: %d", stats.Snapshots)
	}
}
