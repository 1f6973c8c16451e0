// Package services – PostService
//
// This file implements the PostService, which manages the lifecycle of
// posts on the editing surface. It validates and normalizes content and
// hashtags, enforces ownership rules, and coordinates repository
// operations for creating, listing (with pagination), scheduling, and
// deleting posts. Publishing itself is the Publisher's job; this service
// only moves posts in and out of the scheduled state.
//
// Service-level errors (e.g. ErrPostNotFound, ErrScheduleInPast) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// PostRepo defines the repository contract required by PostService.
// Implementations are responsible for persistence of post aggregates.
type PostRepo interface {
	// CreatePost inserts a new post row with its hashtag associations.
	CreatePost(ctx context.Context, db *gorm.DB, p *domain.Post) error

	// GetPost fetches a post by ID ensuring it belongs to the user.
	GetPost(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Post, error)

	// CountPosts returns the total number of posts for pagination.
	CountPosts(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListPostsPage returns a page of posts belonging to the user.
	ListPostsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Post, error)

	// SchedulePost moves a post to the scheduled status at the given time.
	SchedulePost(ctx context.Context, db *gorm.DB, id, userID string, at time.Time) error

	// SoftDeletePost marks a post deleted so the scheduler skips it.
	SoftDeletePost(ctx context.Context, db *gorm.DB, id, userID string) error

	// FindOrCreateHashtags resolves normalized names to shared hashtag rows.
	FindOrCreateHashtags(ctx context.Context, db *gorm.DB, names []string) ([]domain.Hashtag, error)
}

// PostService provides post-level operations such as creating, listing,
// scheduling, and deleting posts. It enforces content rules and ensures
// ownership constraints.
type PostService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the post repository used by this service.
	Repo PostRepo

	// ContentMaxLen caps stored bodies by rune length.
	ContentMaxLen int
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewPostService constructs a PostService with sane defaults for content
// handling.
func NewPostService(db *gorm.DB, r PostRepo) *PostService {
	return &PostService{
		DB:            db,
		Repo:          r,
		ContentMaxLen: 500,
		TitleMaxLen:   120,
	}
}

// Create inserts a new draft post owned by userID. The body is required;
// hashtags are normalized, deduplicated, and resolved to shared rows. When
// scheduledAt is non-nil the post is created directly in the scheduled
// state.
func (s *PostService) Create(ctx context.Context, userID, title, content string, hashtags []string, scheduledAt *time.Time) (*domain.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.ContentMaxLen {
		return nil, ErrContentTooLong
	}
	title = normalizePostTitle(title)
	if utf8.RuneCountInString(title) > s.TitleMaxLen {
		title = string([]rune(title)[:s.TitleMaxLen])
	}

	status := domain.PostStatusDraft
	if scheduledAt != nil {
		if scheduledAt.Before(time.Now().UTC()) {
			return nil, ErrScheduleInPast
		}
		status = domain.PostStatusScheduled
	}

	tags, err := s.Repo.FindOrCreateHashtags(ctx, s.DB, NormalizeHashtags(hashtags))
	if err != nil {
		return nil, err
	}

	p := &domain.Post{
		UserID:      userID,
		Title:       title,
		Content:     content,
		Hashtags:    tags,
		ScheduledAt: scheduledAt,
		Status:      status,
	}
	if err := s.Repo.CreatePost(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns one post owned by userID, hashtags included.
func (s *PostService) Get(ctx context.Context, userID, postID string) (*domain.Post, error) {
	p, err := s.Repo.GetPost(ctx, s.DB, postID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPage returns a page of posts for a user, newest first. It applies
// defaults for invalid page/pageSize and returns the total count.
func (s *PostService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Post, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountPosts(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Post{}, 0, nil
	}

	items, err := s.Repo.ListPostsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Schedule moves a post into the scheduled state at the given time. The
// time must be in the future and the post must be a draft, already
// scheduled, or failed; published posts are terminal.
func (s *PostService) Schedule(ctx context.Context, userID, postID string, at time.Time) error {
	if at.Before(time.Now().UTC()) {
		return ErrScheduleInPast
	}
	if err := s.Repo.SchedulePost(ctx, s.DB, postID, userID, at.UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Distinguish a missing post from an unschedulable one.
			if _, gerr := s.Repo.GetPost(ctx, s.DB, postID, userID); gerr == nil {
				return ErrNotSchedulable
			}
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

// Delete soft-deletes a post owned by userID.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	if err := s.Repo.SoftDeletePost(ctx, s.DB, postID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

// NormalizeHashtags lowercases each tag, strips a leading '#' and inner
// whitespace, drops empties, and deduplicates while preserving order.
func NormalizeHashtags(tags []string) []string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		t = tagSpaceRE.ReplaceAllString(t, "")
		t = lower.String(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// normalizePostTitle trims whitespace and collapses runs to one space.
func normalizePostTitle(s string) string {
	return titleSpaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var (
	// tagSpaceRE removes any whitespace inside a hashtag.
	tagSpaceRE = regexp.MustCompile(`\s+`)
	// titleSpaceRE collapses consecutive whitespace to a single space.
	titleSpaceRE = regexp.MustCompile(`\s+`)
)
