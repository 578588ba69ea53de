package domain

import "time"

// GalleryEntry is one finished video kept in the user's gallery. Entries
// are append-only and written at most once per successful session.
type GalleryEntry struct {
	ID           string    `json:"id"`
	VideoURL     string    `json:"video_url"`
	ThumbnailRef string    `json:"thumbnail_ref,omitempty"`
	Script       string    `json:"script"`
	CreatedAt    time.Time `json:"created_at"`
}
