package gallery

import (
	"context"
	"errors"
	"fmt"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/kvstore"
)

const galleryKey = "gallery"

// Store keeps finished videos. Entries are append-only; the orchestrator
// writes at most one per successful session.
type Store interface {
	AddEntry(ctx context.Context, entry domain.GalleryEntry) error
	List(ctx context.Context) ([]domain.GalleryEntry, error)
}

// KVStore is a Store persisted through the key-value store, newest entry
// first, matching how the mobile gallery behaves on device.
type KVStore struct {
	store *kvstore.Store
}

// NewKVStore constructs a gallery over the given key-value store.
func NewKVStore(store *kvstore.Store) (*KVStore, error) {
	if store == nil {
		return nil, errors.New("gallery: store is required")
	}
	return &KVStore{store: store}, nil
}

// AddEntry prepends the entry and persists the whole list.
func (g *KVStore) AddEntry(ctx context.Context, entry domain.GalleryEntry) error {
	if entry.ID == "" {
		return errors.New("gallery: entry id is required")
	}
	entries, err := g.List(ctx)
	if err != nil {
		return err
	}
	entries = append([]domain.GalleryEntry{entry}, entries...)
	if err := g.store.Set(galleryKey, entries); err != nil {
		return fmt.Errorf("gallery: persist entries: %w", err)
	}
	return nil
}

// List returns all stored entries, newest first.
func (g *KVStore) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	var entries []domain.GalleryEntry
	if err := g.store.Get(galleryKey, &entries); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("gallery: load entries: %w", err)
	}
	return entries, nil
}

var _ Store = (*KVStore)(nil)
