// Package services – Retrier
//
// This file implements the retry sweep: it selects queue entries whose
// backoff has elapsed, in deterministic order, and replays each post
// through the same publish path the due check uses. Exhausted and
// completed entries never come back; a retry that fails again advances the
// entry's attempt count and pushes its next slot further out.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/repo"
)

// Retrier replays failed posts from the retry queue.
type Retrier struct {
	// DB is the GORM handle used for queue selection.
	DB *gorm.DB
	// Publisher runs the actual publish flow for each retried post.
	Publisher *Publisher
	// Log receives per-sweep summary events.
	Log zerolog.Logger

	// BatchLimit caps how many queue entries one sweep picks up.
	BatchLimit int
}

// NewRetrier constructs a Retrier sharing the given publisher's flow.
func NewRetrier(db *gorm.DB, pub *Publisher, log zerolog.Logger, batchLimit int) *Retrier {
	return &Retrier{DB: db, Publisher: pub, Log: log, BatchLimit: batchLimit}
}

// RunSweep selects entries due for another attempt and replays them. One
// entry's failure never aborts the sweep.
func (r *Retrier) RunSweep(ctx context.Context, now time.Time) (JobResult, error) {
	var res JobResult
	entries, err := repo.SelectRetriable(ctx, r.DB, now, r.BatchLimit)
	if err != nil {
		return res, err
	}
	res.Selected = len(entries)
	for i := range entries {
		e := &entries[i]
		switch err := r.Publisher.Publish(ctx, &e.Due, now); {
		case err == nil:
			res.Succeeded++
			r.Log.Info().
				Str("post_id", e.Due.Post.ID).
				Int("attempts", e.Entry.Attempts).
				Msg("retry succeeded")
		case errors.Is(err, errClaimLost):
			res.Skipped++
		default:
			res.Failed++
		}
	}
	return res, nil
}
