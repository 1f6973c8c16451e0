package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// ----- Fake repo -----

type fakePostRepo struct {
	created *domain.Post

	getPost *domain.Post
	getErr  error

	countTotal int64
	countErr   error

	pageUserID string
	pageOffset int
	pageLimit  int
	pageItems  []domain.Post

	scheduleID string
	scheduleAt time.Time
	schedErr   error

	deleteErr error

	tagNames []string
}

func (r *fakePostRepo) CreatePost(_ context.Context, _ *gorm.DB, p *domain.Post) error {
	p.ID = "p1"
	r.created = p
	return nil
}

func (r *fakePostRepo) GetPost(_ context.Context, _ *gorm.DB, id, userID string) (*domain.Post, error) {
	return r.getPost, r.getErr
}

func (r *fakePostRepo) CountPosts(_ context.Context, _ *gorm.DB, userID string) (int64, error) {
	return r.countTotal, r.countErr
}

func (r *fakePostRepo) ListPostsPage(_ context.Context, _ *gorm.DB, userID string, offset, limit int) ([]domain.Post, error) {
	r.pageUserID, r.pageOffset, r.pageLimit = userID, offset, limit
	return r.pageItems, nil
}

func (r *fakePostRepo) SchedulePost(_ context.Context, _ *gorm.DB, id, userID string, at time.Time) error {
	r.scheduleID, r.scheduleAt = id, at
	return r.schedErr
}

func (r *fakePostRepo) SoftDeletePost(_ context.Context, _ *gorm.DB, id, userID string) error {
	return r.deleteErr
}

func (r *fakePostRepo) FindOrCreateHashtags(_ context.Context, _ *gorm.DB, names []string) ([]domain.Hashtag, error) {
	r.tagNames = names
	out := make([]domain.Hashtag, 0, len(names))
	for i, n := range names {
		out = append(out, domain.Hashtag{ID: string(rune('a' + i)), Name: n})
	}
	return out, nil
}

// ----- Tests -----

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"#Go", "  DEV  ", "go", "", "two words", "#"})
	want := []string{"go", "dev", "twowords"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeHashtags = %v, want %v", got, want)
	}
}

func TestPostService_Create_Validation(t *testing.T) {
	r := &fakePostRepo{}
	svc := NewPostService(nil, r)

	if _, err := svc.Create(context.Background(), "u1", "t", "   ", nil, nil); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: err = %v, want ErrEmptyContent", err)
	}

	long := strings.Repeat("x", svc.ContentMaxLen+1)
	if _, err := svc.Create(context.Background(), "u1", "t", long, nil, nil); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("long content: err = %v, want ErrContentTooLong", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := svc.Create(context.Background(), "u1", "t", "ok", nil, &past); !errors.Is(err, ErrScheduleInPast) {
		t.Fatalf("past schedule: err = %v, want ErrScheduleInPast", err)
	}
}

func TestPostService_Create_DraftAndScheduled(t *testing.T) {
	r := &fakePostRepo{}
	svc := NewPostService(nil, r)

	p, err := svc.Create(context.Background(), "u1", "  My   Title  ", "hello", []string{"#Go", "dev"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != domain.PostStatusDraft {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if p.Title != "My Title" {
		t.Errorf("title = %q, want collapsed whitespace", p.Title)
	}
	if !reflect.DeepEqual(r.tagNames, []string{"go", "dev"}) {
		t.Errorf("normalized tags = %v", r.tagNames)
	}

	future := time.Now().UTC().Add(time.Hour)
	p, err = svc.Create(context.Background(), "u1", "t", "hello", nil, &future)
	if err != nil {
		t.Fatalf("Create scheduled: %v", err)
	}
	if p.Status != domain.PostStatusScheduled {
		t.Errorf("status = %q, want scheduled", p.Status)
	}
	if p.ScheduledAt == nil || !p.ScheduledAt.Equal(future) {
		t.Errorf("scheduled_at = %v, want %v", p.ScheduledAt, future)
	}
}

func TestPostService_Get_MapsNotFound(t *testing.T) {
	r := &fakePostRepo{getErr: gorm.ErrRecordNotFound}
	svc := NewPostService(nil, r)

	if _, err := svc.Get(context.Background(), "u1", "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("err = %v, want ErrPostNotFound", err)
	}
}

func TestPostService_ListPage_DefaultsAndOffset(t *testing.T) {
	r := &fakePostRepo{countTotal: 45, pageItems: []domain.Post{{ID: "p1"}}}
	svc := NewPostService(nil, r)

	items, total, err := svc.ListPage(context.Background(), "u1", 3, 0)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 45 || len(items) != 1 {
		t.Fatalf("total = %d, items = %d", total, len(items))
	}
	if r.pageOffset != 40 || r.pageLimit != 20 {
		t.Errorf("offset/limit = %d/%d, want 40/20", r.pageOffset, r.pageLimit)
	}

	r.countTotal = 0
	items, total, err = svc.ListPage(context.Background(), "u1", 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty listing: items=%d total=%d err=%v", len(items), total, err)
	}
}

func TestPostService_Schedule(t *testing.T) {
	r := &fakePostRepo{}
	svc := NewPostService(nil, r)
	future := time.Now().UTC().Add(time.Hour)

	if err := svc.Schedule(context.Background(), "u1", "p1", time.Now().UTC().Add(-time.Minute)); !errors.Is(err, ErrScheduleInPast) {
		t.Fatalf("past time: err = %v, want ErrScheduleInPast", err)
	}

	if err := svc.Schedule(context.Background(), "u1", "p1", future); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if r.scheduleID != "p1" || !r.scheduleAt.Equal(future) {
		t.Errorf("scheduled (%q, %v)", r.scheduleID, r.scheduleAt)
	}

	// Missing post: repo says not found and the lookup fails too.
	r.schedErr = gorm.ErrRecordNotFound
	r.getErr = gorm.ErrRecordNotFound
	if err := svc.Schedule(context.Background(), "u1", "nope", future); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("missing post: err = %v, want ErrPostNotFound", err)
	}

	// Terminal post: the row exists but cannot transition.
	r.getErr = nil
	r.getPost = &domain.Post{ID: "p1", Status: domain.PostStatusPublished}
	if err := svc.Schedule(context.Background(), "u1", "p1", future); !errors.Is(err, ErrNotSchedulable) {
		t.Fatalf("published post: err = %v, want ErrNotSchedulable", err)
	}
}

func TestPostService_Delete_MapsNotFound(t *testing.T) {
	r := &fakePostRepo{deleteErr: gorm.ErrRecordNotFound}
	svc := NewPostService(nil, r)

	if err := svc.Delete(context.Background(), "u1", "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("err = %v, want ErrPostNotFound", err)
	}

	r.deleteErr = nil
	if err := svc.Delete(context.Background(), "u1", "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
