// Package repo – hashtag persistence. Hashtags are shared rows keyed by
// their unique lowercase name; posts reference them through the
// post_hashtags join table.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadflow/go-post-scheduler/internal/domain"
)

// FindOrCreateHashtags resolves each name to its shared Hashtag row,
// creating missing ones. Names are expected pre-normalized (lowercase, no
// leading '#'). The result preserves the input order.
func FindOrCreateHashtags(ctx context.Context, db *gorm.DB, names []string) ([]domain.Hashtag, error) {
	out := make([]domain.Hashtag, 0, len(names))
	for _, name := range names {
		var h domain.Hashtag
		err := db.WithContext(ctx).
			Where(domain.Hashtag{Name: name}).
			Attrs(domain.Hashtag{ID: uuid.NewString()}).
			FirstOrCreate(&h).Error
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
