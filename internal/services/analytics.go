// Package services – Analytics
//
// This file implements the analytics refresher: it walks recently
// published posts, pulls their current engagement counters from the
// gateway, derives the engagement rate, and upserts one snapshot per post
// per hourly bucket. A post whose metrics fetch fails is logged and
// skipped; its turn comes again next cycle.
package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
	"github.com/threadflow/go-post-scheduler/internal/gateway"
	"github.com/threadflow/go-post-scheduler/internal/repo"
)

// Analytics refreshes engagement snapshots for published posts.
type Analytics struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clients provides per-owner gateway clients.
	Clients ClientProvider
	// Log receives per-post refresh failures.
	Log zerolog.Logger

	// BatchLimit caps how many posts one refresh cycle picks up.
	BatchLimit int
	// Window bounds how far back published posts stay in rotation.
	Window time.Duration
}

// NewAnalytics constructs an Analytics refresher with the standard batch
// and window settings.
func NewAnalytics(db *gorm.DB, clients ClientProvider, log zerolog.Logger, batchLimit int, window time.Duration) *Analytics {
	return &Analytics{DB: db, Clients: clients, Log: log, BatchLimit: batchLimit, Window: window}
}

// RunRefresh pulls fresh metrics for posts published inside the window and
// upserts one snapshot per post for the current hourly bucket. A failed
// fetch counts toward Failed and the cycle moves on.
func (a *Analytics) RunRefresh(ctx context.Context, now time.Time) (JobResult, error) {
	var res JobResult
	targets, err := repo.SelectRefreshable(ctx, a.DB, now.Add(-a.Window), a.BatchLimit)
	if err != nil {
		return res, err
	}
	res.Selected = len(targets)
	bucket := now.UTC().Truncate(time.Hour)
	for _, t := range targets {
		if err := a.refreshOne(ctx, t, bucket); err != nil {
			res.Failed++
			a.Log.Warn().
				Str("post_id", t.PostID).
				Str("remote_post_id", t.RemotePostID).
				Err(err).
				Msg("analytics refresh failed")
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// refreshOne fetches current counters for one post and stores the bucket's
// snapshot.
func (a *Analytics) refreshOne(ctx context.Context, t repo.RefreshTarget, bucket time.Time) error {
	client := a.Clients.Get(t.UserID, t.AccessToken)
	m, err := client.FetchMetrics(ctx, t.RemotePostID)
	if err != nil {
		return err
	}
	snap := &domain.AnalyticsSnapshot{
		PostID:         t.PostID,
		Views:          m.Views,
		Likes:          m.Likes,
		Comments:       m.Comments,
		Shares:         m.Shares,
		Reposts:        m.Reposts,
		Reach:          m.Reach,
		Impressions:    m.Impressions,
		EngagementRate: ComputeEngagementRate(m),
		RecordedAt:     bucket,
	}
	return repo.UpsertSnapshot(ctx, a.DB, snap)
}

// ComputeEngagementRate derives the engagement percentage from raw
// counters: interactions over reach, as a percentage rounded to two
// decimals. Zero reach yields zero rather than a division error.
func ComputeEngagementRate(m *gateway.Metrics) float64 {
	if m.Reach <= 0 {
		return 0
	}
	interactions := float64(m.Likes + m.Comments + m.Shares + m.Reposts)
	rate := interactions / float64(m.Reach) * 100
	return math.Round(rate*100) / 100
}
