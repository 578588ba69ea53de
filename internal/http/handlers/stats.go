package handlers

import (
	"net/http"

	"talkingphoto/internal/adapter/repo"
)

// UsageStats reports per-event success and failure counts over the last
// 24 hours. Only mounted when the server runs with a database.
func (a *App) UsageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Usage.Stats24h(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: usage stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "Failed to load stats")
		return
	}
	if stats == nil {
		stats = []repo.UsageStat{}
	}
	a.json(w, http.StatusOK, map[string]any{"stats": stats})
}
