package handlers

import (
	"net/http"

	"talkingphoto/internal/domain"
)

// ListGallery returns stored gallery entries, newest first. Only mounted
// when the server runs with a database.
func (a *App) ListGallery(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Gallery.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list gallery failed")
		a.error(w, http.StatusInternalServerError, "internal", "Failed to load gallery")
		return
	}
	if entries == nil {
		entries = []domain.GalleryEntry{}
	}
	a.json(w, http.StatusOK, map[string]any{"entries": entries})
}
