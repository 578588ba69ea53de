package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"talkingphoto/internal/adapter/repo"
	"talkingphoto/internal/gallery"
	"talkingphoto/internal/infra"
	"talkingphoto/internal/providers/lipsync"
	"talkingphoto/internal/providers/script"
	"talkingphoto/internal/providers/speech"
)

// UsageRecorder persists usage events; nil-able so the API can run without
// a database.
type UsageRecorder interface {
	Record(ctx context.Context, ev repo.UsageEvent) error
	Stats24h(ctx context.Context) ([]repo.UsageStat, error)
}

// App bundles the handler dependencies: the three provider clients plus the
// optional persistence collaborators.
type App struct {
	Script  script.Generator
	Speech  speech.Synthesizer
	Lipsync lipsync.Submitter
	Usage   UsageRecorder
	Gallery gallery.Store
	Logger  infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the uniform error body; every non-2xx response carries
// {"error": ..., "code": ...}.
func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": message, "code": code})
}

// recordEvent stores a usage event when persistence is configured. Failures
// are logged, never surfaced: analytics must not break generation.
func (a *App) recordEvent(ctx context.Context, ev repo.UsageEvent) {
	if a.Usage == nil {
		return
	}
	if err := a.Usage.Record(ctx, ev); err != nil {
		a.Logger.Warn().Err(err).Str("event_type", ev.EventType).Msg("handlers: record usage event failed")
	}
}

func latencyMS(start time.Time) int {
	return int(time.Since(start) / time.Millisecond)
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
