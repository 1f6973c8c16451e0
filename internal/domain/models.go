// Package domain defines the persistence models for accounts, posts,
// hashtags, the publish retry queue, and analytics snapshots. These types
// are mapped with GORM and form the core data layer of the post scheduler.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Post lifecycle statuses. A post is created as draft or scheduled, is
// picked up by the due-post check once its scheduled time passes, and ends
// up published (terminal) or failed (re-enters the retry path).
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

// Retry queue entry statuses. An entry is pending while attempts remain,
// completed once the underlying post publishes, and exhausted when the
// attempt ceiling is reached or the failure is known to be permanent.
// Entries are never deleted; they double as an audit trail.
const (
	QueueStatusPending   = "pending"
	QueueStatusCompleted = "completed"
	QueueStatusExhausted = "exhausted"
)

// DefaultMaxAttempts is the per-post publish attempt ceiling applied when a
// retry queue entry is first created.
const DefaultMaxAttempts = 3

// Account holds the publishing credential for one user. A post is only
// eligible for publishing while its owner's AccessToken is non-empty.
//
// Fields:
//   - UserID: stable identifier of the owner; primary key.
//   - AccessToken: gateway access credential; empty means not connected.
//   - RemoteUserID: the user's identifier on the remote platform.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Account struct {
	UserID       string    `json:"user_id"        gorm:"type:varchar(64);primaryKey"`
	AccessToken  string    `json:"-"              gorm:"type:text"`
	RemoteUserID string    `json:"remote_user_id" gorm:"type:varchar(64)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Post represents one unit of content owned by a user.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed together with status.
//   - Title: human-readable title, not part of the published content.
//   - Content: body text published to the platform.
//   - Hashtags: ordered hashtag set, joined through post_hashtags.
//   - ScheduledAt: when the post becomes due; nil for plain drafts.
//   - Status: draft | scheduled | published | failed.
//   - RemotePostID: platform-side identifier, set only once published.
//   - ErrorMessage: last publish error, set on failure.
//   - PublishedAt: set together with RemotePostID on success.
//   - DeletedAt: soft deletion marker; deleted posts are never selected.
type Post struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_posts_user_status,priority:1"`
	Title        string         `json:"title"          gorm:"type:varchar(255);not null"`
	Content      string         `json:"content"        gorm:"type:text;not null"`
	Hashtags     []Hashtag      `json:"hashtags"       gorm:"many2many:post_hashtags"`
	ScheduledAt  *time.Time     `json:"scheduled_at"   gorm:"index:idx_posts_due"`
	Status       string         `json:"status"         gorm:"type:varchar(16);not null;default:'draft';index:idx_posts_user_status,priority:2;check:status IN ('draft','scheduled','published','failed')"`
	RemotePostID *string        `json:"remote_post_id" gorm:"type:varchar(64)"`
	ErrorMessage *string        `json:"error_message,omitempty" gorm:"type:text"`
	PublishedAt  *time.Time     `json:"published_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// Hashtag is a reusable tag attached to posts. Names are stored normalized:
// lowercase, trimmed, without the leading '#'.
type Hashtag struct {
	ID        string    `json:"id"   gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Hashtag.
func (Hashtag) TableName() string { return "hashtags" }

// RetryLogEntry is one recorded publish failure inside a queue entry's log.
type RetryLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// RetryLog is the ordered failure log of a queue entry, persisted as a JSON
// array in a single column.
type RetryLog []RetryLogEntry

// Value implements driver.Valuer by marshaling the log to JSON.
func (l RetryLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner by unmarshaling a JSON array. Empty values
// scan to an empty log.
func (l *RetryLog) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = RetryLog{}
		return nil
	case []byte:
		if len(v) == 0 {
			*l = RetryLog{}
			return nil
		}
		return json.Unmarshal(v, l)
	case string:
		if v == "" {
			*l = RetryLog{}
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("retry log: unsupported scan type")
	}
}

// RetryQueueEntry tracks repeated publish attempts for one post. At most one
// non-completed entry exists per post; each further failure increments
// Attempts, appends to ErrorLog, and pushes NextRetryAt strictly forward
// (linear backoff).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PostID: foreign key to the tracked post (indexed).
//   - Attempts: number of failed publish attempts so far; never exceeds
//     MaxAttempts.
//   - MaxAttempts: per-entry attempt ceiling.
//   - NextRetryAt: earliest time the next attempt may run.
//   - ErrorLog: ordered (timestamp, error) pairs, one per failure.
//   - Status: pending | completed | exhausted.
//   - ProcessedAt: set when the entry leaves the pending state.
type RetryQueueEntry struct {
	ID          string     `json:"id"            gorm:"type:char(36);primaryKey"`
	PostID      string     `json:"post_id"       gorm:"type:char(36);not null;index"`
	Attempts    int        `json:"attempts"      gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts"  gorm:"not null;default:3"`
	NextRetryAt time.Time  `json:"next_retry_at" gorm:"not null;index"`
	ErrorLog    RetryLog   `json:"error_log"     gorm:"type:text"`
	Status      string     `json:"status"        gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','completed','exhausted')"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Post is the tracked post. Entries are cascade-deleted only if the
	// post row is hard-deleted, which the core never does.
	Post Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RetryQueueEntry.
func (RetryQueueEntry) TableName() string { return "post_queue" }

// AnalyticsSnapshot is a point-in-time metrics record for a published post.
// Snapshots are upserted keyed by (post_id, recorded_at bucket) and are
// otherwise immutable.
//
// EngagementRate is derived: 100 x (likes+comments+shares+reposts) / reach,
// or 0 when reach is 0.
type AnalyticsSnapshot struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	PostID         string    `json:"post_id"         gorm:"type:char(36);not null;uniqueIndex:ux_analytics_post_bucket,priority:1"`
	Views          int64     `json:"views"           gorm:"not null;default:0"`
	Likes          int64     `json:"likes"           gorm:"not null;default:0"`
	Comments       int64     `json:"comments"        gorm:"not null;default:0"`
	Shares         int64     `json:"shares"          gorm:"not null;default:0"`
	Reposts        int64     `json:"reposts"         gorm:"not null;default:0"`
	Reach          int64     `json:"reach"           gorm:"not null;default:0"`
	Impressions    int64     `json:"impressions"     gorm:"not null;default:0"`
	EngagementRate float64   `json:"engagement_rate" gorm:"not null;default:0"`
	RecordedAt     time.Time `json:"recorded_at"     gorm:"not null;uniqueIndex:ux_analytics_post_bucket,priority:2"`

	Post Post `json:"-" gorm:"foreignKey:PostID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AnalyticsSnapshot.
func (AnalyticsSnapshot) TableName() string { return "analytics" }
