// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the operational stats endpoint. Each function is context-aware and safe
// to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// SchedulerStats is an aggregate view over the scheduler's durable state.
type SchedulerStats struct {
	PostsByStatus  map[string]int64 `json:"posts_by_status"`
	QueuePending   int64            `json:"queue_pending"`
	QueueExhausted int64            `json:"queue_exhausted"`
	Snapshots      int64            `json:"snapshots"`
}

// CollectStats returns post counts grouped by status plus queue depths and
// the total number of analytics snapshots. Soft-deleted posts are excluded
// by the default GORM scope.
func CollectStats(ctx context.Context, db *gorm.DB) (*SchedulerStats, error) {
	stats := &SchedulerStats{PostsByStatus: map[string]int64{}}

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.WithContext(ctx).
		Model(&domain.Post{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.PostsByStatus[r.Status] = r.N
	}

	if err := db.WithContext(ctx).
		Model(&domain.RetryQueueEntry{}).
		Where("status = ?", domain.QueueStatusPending).
		Count(&stats.QueuePending).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).
		Model(&domain.RetryQueueEntry{}).
		Where("status = ?", domain.QueueStatusExhausted).
		Count(&stats.QueueExhausted).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).
		Model(&domain.AnalyticsSnapshot{}).
		Count(&stats.Snapshots).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
