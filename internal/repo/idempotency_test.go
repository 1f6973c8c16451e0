package repo

import (
	"context"
	"testing"
	"time"
)

func TestIdempotency_CreateGetExpireDuplicate(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "key-1", "post-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.PostID != "post-1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.PostID != "post-1" {
		t.Fatalf("unexpected lookup: %+v", got)
	}

	// Expired records are invisible.
	if _, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().UTC().Add(2*time.Hour)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}

	// Blank keys never match.
	if _, err := GetIdempotency(ctx, db, "u1", "  ", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}

	// Same (user, key) tuple is rejected.
	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "post-2", 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A different user may reuse the key.
	if _, err := CreateIdempotency(ctx, db, "u2", "key-1", "post-3", 201, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency (other user): %v", err)
	}
}
