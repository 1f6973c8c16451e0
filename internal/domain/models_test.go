package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (Account{}).TableName() != "accounts" {
		t.Fatalf("Account.TableName() = %q; want %q", (Account{}).TableName(), "accounts")
	}
	if (Post{}).TableName() != "posts" {
		t.Fatalf("Post.TableName() = %q; want %q", (Post{}).TableName(), "posts")
	}
	if (Hashtag{}).TableName() != "hashtags" {
		t.Fatalf("Hashtag.TableName() = %q; want %q", (Hashtag{}).TableName(), "hashtags")
	}
	if (RetryQueueEntry{}).TableName() != "post_queue" {
		t.Fatalf("RetryQueueEntry.TableName() = %q; want %q", (RetryQueueEntry{}).TableName(), "post_queue")
	}
	if (AnalyticsSnapshot{}).TableName() != "analytics" {
		t.Fatalf("AnalyticsSnapshot.TableName() = %q; want %q", (AnalyticsSnapshot{}).TableName(), "analytics")
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Account{}, &Hashtag{}, &Post{}, &RetryQueueEntry{}, &AnalyticsSnapshot{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Account{}, &Post{}, &Hashtag{}, &RetryQueueEntry{}, &AnalyticsSnapshot{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Post{}, "idx_posts_user_status") {
		t.Fatalf("expected index idx_posts_user_status on posts")
	}
	if !m.HasIndex(&AnalyticsSnapshot{}, "ux_analytics_post_bucket") {
		t.Fatalf("expected index ux_analytics_post_bucket on analytics")
	}
}

func TestRetryLog_RoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Account{}, &Hashtag{}, &Post{}, &RetryQueueEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	post := Post{ID: "p1", UserID: "u1", Title: "t", Content: "c", Status: PostStatusFailed}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}

	entry := RetryQueueEntry{
		ID:          "q1",
		PostID:      "p1",
		Attempts:    2,
		MaxAttempts: DefaultMaxAttempts,
		NextRetryAt: now.Add(10 * time.Minute),
		Status:      QueueStatusPending,
		ErrorLog: RetryLog{
			{Timestamp: now, Error: "rate limited"},
			{Timestamp: now.Add(5 * time.Minute), Error: "rate limited again"},
		},
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("create entry: %v", err)
	}

	var got RetryQueueEntry
	if err := db.First(&got, "id = ?", "q1").Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if len(got.ErrorLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(got.ErrorLog))
	}
	if got.ErrorLog[0].Error != "rate limited" || got.ErrorLog[1].Error != "rate limited again" {
		t.Fatalf("log order not preserved: %+v", got.ErrorLog)
	}
}

func TestRetryLog_ScanEmpty(t *testing.T) {
	var l RetryLog
	if err := l.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if len(l) != 0 {
		t.Fatalf("expected empty log after scanning nil, got %d", len(l))
	}
	if err := l.Scan(""); err != nil {
		t.Fatalf("scan empty string: %v", err)
	}
	if err := l.Scan(42); err == nil {
		t.Fatalf("expected error scanning unsupported type")
	}
}
