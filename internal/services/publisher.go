// Package services – Publisher
//
// This file implements the publish executor: it selects due scheduled
// posts, claims each one against concurrent executors, assembles the final
// content, pushes it through the gateway's two-phase draft/commit flow, and
// records the outcome. Success and failure bookkeeping each run inside a
// single transaction so a post's status and its queue entry never disagree.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
	"github.com/threadflow/go-post-scheduler/internal/gateway"
	"github.com/threadflow/go-post-scheduler/internal/repo"
)

// ClientProvider hands out a gateway client for an owner's credential.
// The production implementation is the bounded TTL client cache.
type ClientProvider interface {
	Get(userID, accessToken string) gateway.Client
}

// JobResult summarizes one sweep of a background job.
type JobResult struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Publisher executes due posts against the remote platform.
type Publisher struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clients provides per-owner gateway clients.
	Clients ClientProvider
	// Log receives per-post outcome events.
	Log zerolog.Logger

	// BatchLimit caps how many due posts one sweep picks up.
	BatchLimit int
	// MaxAttempts is the retry ceiling recorded on new queue entries.
	MaxAttempts int
	// BackoffStep is the linear backoff unit between retry attempts.
	BackoffStep time.Duration
}

// NewPublisher constructs a Publisher with the standard batch and retry
// settings.
func NewPublisher(db *gorm.DB, clients ClientProvider, log zerolog.Logger, batchLimit, maxAttempts int, backoffStep time.Duration) *Publisher {
	return &Publisher{
		DB:          db,
		Clients:     clients,
		Log:         log,
		BatchLimit:  batchLimit,
		MaxAttempts: maxAttempts,
		BackoffStep: backoffStep,
	}
}

// RunDueCheck selects posts whose scheduled time has arrived and publishes
// each in turn. One post's failure never aborts the sweep; the result
// counts what happened to each selected post.
func (p *Publisher) RunDueCheck(ctx context.Context, now time.Time) (JobResult, error) {
	var res JobResult
	due, err := repo.SelectDuePosts(ctx, p.DB, now, p.BatchLimit)
	if err != nil {
		return res, err
	}
	res.Selected = len(due)
	for i := range due {
		switch err := p.Publish(ctx, &due[i], now); {
		case err == nil:
			res.Succeeded++
		case errors.Is(err, errClaimLost):
			res.Skipped++
		default:
			res.Failed++
		}
	}
	return res, nil
}

// errClaimLost signals that another executor claimed the post first.
var errClaimLost = errors.New("post claim lost")

// Publish claims one due post and runs it through the gateway. On success
// the post becomes published and any open retry entry completes; on
// failure the post is marked failed and a retry entry is created or
// advanced, exhausting immediately for permanent gateway errors.
func (p *Publisher) Publish(ctx context.Context, due *repo.DuePost, now time.Time) error {
	claimed, err := repo.ClaimPost(ctx, p.DB, due.Post.ID, due.Post.Status, due.Post.UpdatedAt, now)
	if err != nil {
		return err
	}
	if !claimed {
		p.Log.Debug().Str("post_id", due.Post.ID).Msg("post claimed by another executor, skipping")
		return errClaimLost
	}

	content := AssembleContent(due.Post.Content, due.Hashtags)
	client := p.Clients.Get(due.Post.UserID, due.AccessToken)

	remoteID, pubErr := publishContent(ctx, client, content)
	if pubErr != nil {
		p.Log.Warn().
			Str("post_id", due.Post.ID).
			Str("user_id", due.Post.UserID).
			Bool("permanent", gateway.IsPermanent(pubErr)).
			Err(pubErr).
			Msg("publish failed")
		if recErr := p.recordFailure(ctx, due.Post.ID, pubErr, now); recErr != nil {
			return recErr
		}
		return pubErr
	}

	if err := p.recordSuccess(ctx, due.Post.ID, remoteID, now); err != nil {
		return err
	}
	p.Log.Info().
		Str("post_id", due.Post.ID).
		Str("remote_post_id", remoteID).
		Msg("post published")
	return nil
}

// publishContent runs the two-phase Graph API flow: create a draft
// container, then commit it live.
func publishContent(ctx context.Context, client gateway.Client, content string) (string, error) {
	draftID, err := client.CreateDraft(ctx, content)
	if err != nil {
		return "", err
	}
	return client.CommitDraft(ctx, draftID)
}

// recordSuccess flips the post to published and closes any open retry
// entry, atomically.
func (p *Publisher) recordSuccess(ctx context.Context, postID, remoteID string, now time.Time) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkPostPublished(ctx, tx, postID, remoteID, now); err != nil {
			return err
		}
		return repo.CompleteRetryEntry(ctx, tx, postID, now)
	})
}

// recordFailure marks the post failed and advances its retry entry,
// atomically. Permanent gateway errors exhaust the entry on the spot.
func (p *Publisher) recordFailure(ctx context.Context, postID string, pubErr error, now time.Time) error {
	permanent := gateway.IsPermanent(pubErr)
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkPostFailed(ctx, tx, postID, pubErr.Error(), now); err != nil {
			return err
		}
		_, err := repo.EnqueueRetry(ctx, tx, postID, pubErr.Error(), permanent, maxAttemptsOrDefault(p.MaxAttempts), p.BackoffStep, now)
		return err
	})
}

// AssembleContent builds the final text pushed to the platform: the body,
// then a blank line, then the space-joined hashtag block. Posts without
// hashtags keep the bare body.
func AssembleContent(body string, hashtags []string) string {
	if len(hashtags) == 0 {
		return body
	}
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		if h == "" {
			continue
		}
		tags = append(tags, "#"+h)
	}
	if len(tags) == 0 {
		return body
	}
	return body + "\n\n" + strings.Join(tags, " ")
}

// maxAttemptsOrDefault falls back to the domain default when the
// configured ceiling is unusable.
func maxAttemptsOrDefault(n int) int {
	if n <= 0 {
		return domain.DefaultMaxAttempts
	}
	return n
}
