package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/providers/script"
)

type fakeScript struct {
	text string
	err  error
}

func (f *fakeScript) Generate(ctx context.Context, req script.Request) (string, error) {
	return f.text, f.err
}

type fakeSpeech struct {
	audioURL string
	err      error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	return f.audioURL, f.err
}

type fakeLipsync struct {
	predictionID string
	submitErr    error
	job          *domain.GenerationJob
	statusErr    error
}

func (f *fakeLipsync) Submit(ctx context.Context, imageRef, audioRef string) (string, error) {
	return f.predictionID, f.submitErr
}

func (f *fakeLipsync) Status(ctx context.Context, predictionID string) (*domain.GenerationJob, error) {
	return f.job, f.statusErr
}

func newTestApp() *App {
	return &App{
		Script:  &fakeScript{text: "Feed me, human."},
		Speech:  &fakeSpeech{audioURL: "data:audio/mpeg;base64,AAAA"},
		Lipsync: &fakeLipsync{predictionID: "pred-1"},
		Logger:  zerolog.New(io.Discard),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestGenerateScriptHandler(t *testing.T) {
	app := newTestApp()
	rec := postJSON(t, app.GenerateScript, map[string]string{"imageBase64": "aGVsbG8="})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["script"] != "Feed me, human." {
		t.Fatalf("script = %q", resp["script"])
	}
}

func TestGenerateScriptHandlerRequiresImage(t *testing.T) {
	app := newTestApp()
	rec := postJSON(t, app.GenerateScript, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] == "" || resp["code"] != "bad_request" {
		t.Fatalf("error body = %v", resp)
	}
}

func TestGenerateVoiceHandler(t *testing.T) {
	app := newTestApp()
	rec := postJSON(t, app.GenerateVoice, map[string]string{
		"text":    "Hello there!",
		"voiceId": domain.DefaultVoiceID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["audioUrl"] != "data:audio/mpeg;base64,AAAA" {
		t.Fatalf("audioUrl = %q", resp["audioUrl"])
	}
}

func TestGenerateVoiceHandlerValidation(t *testing.T) {
	app := newTestApp()
	for _, body := range []map[string]string{
		{"voiceId": domain.DefaultVoiceID},
		{"text": "Hello"},
		{},
	} {
		rec := postJSON(t, app.GenerateVoice, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestGenerateVoiceHandlerProviderError(t *testing.T) {
	app := newTestApp()
	app.Speech = &fakeSpeech{err: &domain.RemoteError{
		Provider:   "elevenlabs",
		StatusCode: http.StatusUnauthorized,
		Message:    "Invalid API key",
	}}
	rec := postJSON(t, app.GenerateVoice, map[string]string{"text": "hi", "voiceId": "v"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["error"] != "Invalid API key" {
		t.Fatalf("error = %q", resp["error"])
	}
}

func TestGenerateVideoHandlerSubmitsAndReturnsEarly(t *testing.T) {
	app := newTestApp()
	rec := postJSON(t, app.GenerateVideo, map[string]string{
		"imageUrl": "https://img.example/a.jpg",
		"audioUrl": "data:audio/mpeg;base64,AAAA",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["predictionId"] != "pred-1" {
		t.Fatalf("predictionId = %q", resp["predictionId"])
	}
	if resp["status"] != "starting" {
		t.Fatalf("status = %q, want starting", resp["status"])
	}
	if resp["message"] != "Starting up GPU..." {
		t.Fatalf("message = %q", resp["message"])
	}
}

func TestGenerateVideoHandlerMisconfigured(t *testing.T) {
	app := newTestApp()
	app.Lipsync = &fakeLipsync{submitErr: domain.ErrMissingCredentials}
	rec := postJSON(t, app.GenerateVideo, map[string]string{
		"imageUrl": "https://img.example/a.jpg",
		"audioUrl": "data:audio/mpeg;base64,AAAA",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["code"] != "misconfigured" {
		t.Fatalf("code = %q", resp["code"])
	}
}

func TestVideoStatusHandler(t *testing.T) {
	tests := []struct {
		name         string
		job          *domain.GenerationJob
		wantProgress int
		wantMessage  string
		wantVideoURL string
		wantError    string
	}{
		{
			name:         "starting",
			job:          &domain.GenerationJob{ID: "pred-1", Status: domain.JobStatusStarting},
			wantProgress: 10,
			wantMessage:  "Starting up GPU...",
		},
		{
			name:         "processing",
			job:          &domain.GenerationJob{ID: "pred-1", Status: domain.JobStatusProcessing},
			wantProgress: 50,
			wantMessage:  "Generating lip-sync video...",
		},
		{
			name:         "succeeded",
			job:          &domain.GenerationJob{ID: "pred-1", Status: domain.JobStatusSucceeded, ResultURL: "https://cdn.example/out.mp4"},
			wantProgress: 100,
			wantMessage:  "Video ready!",
			wantVideoURL: "https://cdn.example/out.mp4",
		},
		{
			name:         "failed",
			job:          &domain.GenerationJob{ID: "pred-1", Status: domain.JobStatusFailed, ErrorMessage: "CUDA out of memory"},
			wantProgress: 0,
			wantMessage:  "Generation failed",
			wantError:    "CUDA out of memory",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp()
			app.Lipsync = &fakeLipsync{job: tc.job}
			rec := postJSON(t, app.VideoStatus, map[string]string{"predictionId": "pred-1"})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp struct {
				Status   string `json:"status"`
				Progress int    `json:"progress"`
				Message  string `json:"message"`
				VideoURL string `json:"videoUrl"`
				Error    string `json:"error"`
			}
			decodeBody(t, rec, &resp)
			if resp.Status != string(tc.job.Status) {
				t.Errorf("status = %q, want %q", resp.Status, tc.job.Status)
			}
			if resp.Progress != tc.wantProgress {
				t.Errorf("progress = %d, want %d", resp.Progress, tc.wantProgress)
			}
			if resp.Message != tc.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tc.wantMessage)
			}
			if resp.VideoURL != tc.wantVideoURL {
				t.Errorf("videoUrl = %q, want %q", resp.VideoURL, tc.wantVideoURL)
			}
			if resp.Error != tc.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tc.wantError)
			}
		})
	}
}

func TestVideoStatusHandlerRequiresID(t *testing.T) {
	app := newTestApp()
	rec := postJSON(t, app.VideoStatus, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVideoStatusHandlerNotFoundPassthrough(t *testing.T) {
	app := newTestApp()
	app.Lipsync = &fakeLipsync{statusErr: &domain.RemoteError{
		Provider:   "replicate",
		StatusCode: http.StatusNotFound,
		Message:    "Not found.",
	}}
	rec := postJSON(t, app.VideoStatus, map[string]string{"predictionId": "gone"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListVoicesHandler(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/api/voices", nil)
	rec := httptest.NewRecorder()
	app.ListVoices(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Voices  []domain.Voice `json:"voices"`
		Default string         `json:"default"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Voices) == 0 {
		t.Fatal("expected at least one voice")
	}
	if resp.Default != domain.DefaultVoiceID {
		t.Fatalf("default = %q, want %q", resp.Default, domain.DefaultVoiceID)
	}
}

func TestHealthHandler(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
