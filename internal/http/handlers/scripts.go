package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"talkingphoto/internal/adapter/repo"
	"talkingphoto/internal/domain"
	"talkingphoto/internal/middleware"
	"talkingphoto/internal/providers/script"
)

type generateScriptRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MIMEType    string `json:"mimeType"`
}

type generateScriptResponse struct {
	Script string `json:"script"`
}

// GenerateScript asks the script provider what the photo subject might say.
// An empty provider reply is a valid empty script.
func (a *App) GenerateScript(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req generateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageBase64 == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Image is required")
		return
	}

	text, err := a.Script.Generate(r.Context(), script.Request{
		ImageBase64: req.ImageBase64,
		MIMEType:    req.MIMEType,
	})
	if err != nil {
		a.failProvider(w, r, "generate_script", err, "Failed to generate script")
		return
	}

	a.recordEvent(r.Context(), repo.UsageEvent{
		RequestID: middleware.RequestIDFromContext(r.Context()),
		EventType: "generate_script",
		Provider:  "gemini",
		Success:   true,
		LatencyMS: latencyMS(start),
		Locale:    middleware.LocaleFromContext(r.Context()),
		Country:   middleware.CountryFromContext(r.Context()),
	})
	a.json(w, http.StatusOK, generateScriptResponse{Script: text})
}

// failProvider maps provider errors onto HTTP responses and records the
// failed event.
func (a *App) failProvider(w http.ResponseWriter, r *http.Request, eventType string, err error, fallback string) {
	a.Logger.Error().Err(err).Str("event_type", eventType).Msg("handlers: provider call failed")
	a.recordEvent(r.Context(), repo.UsageEvent{
		RequestID: middleware.RequestIDFromContext(r.Context()),
		EventType: eventType,
		Success:   false,
		Locale:    middleware.LocaleFromContext(r.Context()),
		Country:   middleware.CountryFromContext(r.Context()),
		Properties: map[string]any{
			"error": err.Error(),
		},
	})

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		a.error(w, http.StatusBadRequest, "bad_request", validation.Error())
		return
	}
	if errors.Is(err, domain.ErrMissingCredentials) {
		a.error(w, http.StatusInternalServerError, "misconfigured", "provider credentials not configured")
		return
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		status := http.StatusBadGateway
		if remote.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		message := remote.Message
		if message == "" {
			message = fallback
		}
		a.error(w, status, "provider_error", message)
		return
	}
	a.error(w, http.StatusInternalServerError, "internal", fallback)
}
