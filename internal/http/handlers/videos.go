package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"talkingphoto/internal/adapter/repo"
	"talkingphoto/internal/domain"
	"talkingphoto/internal/middleware"
)

type generateVideoRequest struct {
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
	AudioURL    string `json:"audioUrl"`
}

// imageRef prefers a direct URL; an inline payload rides along as a data
// URL, which the lip-sync client uploads before submitting.
func (req generateVideoRequest) imageRef() string {
	if req.ImageURL != "" {
		return req.ImageURL
	}
	if req.ImageBase64 != "" {
		return "data:image/jpeg;base64," + req.ImageBase64
	}
	return ""
}

type generateVideoResponse struct {
	PredictionID string `json:"predictionId"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

type videoStatusRequest struct {
	PredictionID string `json:"predictionId"`
}

type videoStatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	VideoURL string `json:"videoUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerateVideo submits a lip-sync job and returns immediately with the
// prediction id. Renders take minutes; the client follows up on
// /api/video-status instead of holding this request open.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	imageRef := req.imageRef()
	if imageRef == "" || req.AudioURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "Image and audio are required")
		return
	}

	predictionID, err := a.Lipsync.Submit(r.Context(), imageRef, req.AudioURL)
	if err != nil {
		a.failProvider(w, r, "generate_video", err, "Failed to start video generation")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	a.recordEvent(r.Context(), repo.UsageEvent{
		RequestID: middleware.RequestIDFromContext(r.Context()),
		EventType: "generate_video",
		Provider:  "replicate",
		Success:   true,
		LatencyMS: latencyMS(start),
		Locale:    locale,
		Country:   middleware.CountryFromContext(r.Context()),
		Properties: map[string]any{
			"prediction_id": predictionID,
		},
	})
	a.json(w, http.StatusAccepted, generateVideoResponse{
		PredictionID: predictionID,
		Status:       string(domain.JobStatusStarting),
		Message:      domain.MessageForStatus(domain.JobStatusStarting, locale),
	})
}

// VideoStatus reports one poll of a pending prediction, mapped to the
// coarse progress scale the client renders.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	var req videoStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.PredictionID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "predictionId is required")
		return
	}

	job, err := a.Lipsync.Status(r.Context(), req.PredictionID)
	if err != nil {
		a.failProvider(w, r, "video_status", err, "Failed to check video status")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	resp := videoStatusResponse{
		Status:   string(job.Status),
		Progress: domain.ProgressForStatus(job.Status),
		Message:  domain.MessageForStatus(job.Status, locale),
		VideoURL: job.ResultURL,
	}
	if job.Status == domain.JobStatusFailed {
		resp.Error = job.ErrorMessage
	}
	a.json(w, http.StatusOK, resp)
}
