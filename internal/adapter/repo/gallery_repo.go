package repo

import (
	"context"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/infra"
	"talkingphoto/internal/sqlinline"
)

const defaultGalleryLimit = 100

// GalleryRepositoryPG implements gallery.Store using PostgreSQL, for
// deployments that keep finished videos server-side instead of on device.
type GalleryRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGalleryRepository constructs the repository.
func NewGalleryRepository(sql infra.SQLExecutor) *GalleryRepositoryPG {
	return &GalleryRepositoryPG{sql: sql}
}

// AddEntry inserts one gallery entry. Re-inserting an existing id is a
// no-op, which keeps the write idempotent under client retries.
func (r *GalleryRepositoryPG) AddEntry(ctx context.Context, entry domain.GalleryEntry) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGalleryEntry,
		entry.ID,
		entry.VideoURL,
		entry.ThumbnailRef,
		entry.Script,
		entry.CreatedAt,
	)
	return err
}

// List returns stored entries, newest first.
func (r *GalleryRepositoryPG) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGalleryEntries, defaultGalleryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.GalleryEntry
	for rows.Next() {
		var entry domain.GalleryEntry
		if err := rows.Scan(&entry.ID, &entry.VideoURL, &entry.ThumbnailRef, &entry.Script, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
