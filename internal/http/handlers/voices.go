package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"talkingphoto/internal/adapter/repo"
	"talkingphoto/internal/domain"
	"talkingphoto/internal/middleware"
)

type generateVoiceRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type generateVoiceResponse struct {
	AudioURL string `json:"audioUrl"`
}

// GenerateVoice synthesizes the script with the chosen voice and returns
// the audio as an inline data URL.
func (a *App) GenerateVoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req generateVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Text == "" || req.VoiceID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Text and voiceId are required")
		return
	}
	if len(req.Text) > domain.MaxScriptLength {
		a.error(w, http.StatusBadRequest, "bad_request", "Text is too long")
		return
	}

	audioURL, err := a.Speech.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		a.failProvider(w, r, "generate_voice", err, "Failed to generate audio")
		return
	}

	a.recordEvent(r.Context(), repo.UsageEvent{
		RequestID: middleware.RequestIDFromContext(r.Context()),
		EventType: "generate_voice",
		Provider:  "elevenlabs",
		Success:   true,
		LatencyMS: latencyMS(start),
		Locale:    middleware.LocaleFromContext(r.Context()),
		Country:   middleware.CountryFromContext(r.Context()),
		Properties: map[string]any{
			"voice_id": req.VoiceID,
		},
	})
	a.json(w, http.StatusOK, generateVoiceResponse{AudioURL: audioURL})
}

// ListVoices returns the curated voice catalog.
func (a *App) ListVoices(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"voices":  domain.AvailableVoices,
		"default": domain.DefaultVoiceID,
	})
}
