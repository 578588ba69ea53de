package creation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"talkingphoto/internal/domain"
)

// API is the typed surface of the backend the generation pipeline talks to.
// Every method performs exactly one request; retries and polling live in the
// Poller, not here.
type API interface {
	GenerateScript(ctx context.Context, imageBase64 string) (string, error)
	GenerateVoice(ctx context.Context, text, voiceID string) (string, error)
	SubmitVideoJob(ctx context.Context, imageRef, audioRef string) (string, error)
	JobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error)
}

const (
	clientDefaultTimeout = 90 * time.Second
	apiProviderName      = "api"
)

// ClientOptions configures the backend API client.
type ClientOptions struct {
	BaseURL    string
	Locale     string
	HTTPClient *http.Client
}

// Client calls the talking-photo backend endpoints.
type Client struct {
	baseURL string
	locale  string
	client  *http.Client
}

type generateScriptRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

type generateScriptResponse struct {
	Script string `json:"script"`
}

type generateVoiceRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type generateVoiceResponse struct {
	AudioURL string `json:"audioUrl"`
}

type generateVideoRequest struct {
	ImageURL string `json:"imageUrl"`
	AudioURL string `json:"audioUrl"`
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
	VideoURL string `json:"videoUrl"`
	Error    string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient constructs a backend client for the given base URL.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("creation: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: clientDefaultTimeout}
	}
	return &Client{baseURL: baseURL, locale: strings.TrimSpace(opts.Locale), client: client}, nil
}

// GenerateScript asks the backend to describe the image. An empty script is
// a usable result, not an error.
func (c *Client) GenerateScript(ctx context.Context, imageBase64 string) (string, error) {
	var out generateScriptResponse
	err := c.post(ctx, "/api/generate-script", generateScriptRequest{ImageBase64: imageBase64}, &out)
	if err != nil {
		return "", err
	}
	return out.Script, nil
}

// GenerateVoice synthesizes speech for the script with the chosen voice.
func (c *Client) GenerateVoice(ctx context.Context, text, voiceID string) (string, error) {
	var out generateVoiceResponse
	err := c.post(ctx, "/api/generate-voice", generateVoiceRequest{Text: text, VoiceID: voiceID}, &out)
	if err != nil {
		return "", err
	}
	if out.AudioURL == "" {
		return "", &domain.RemoteError{Provider: apiProviderName, Message: "no audio url in response"}
	}
	return out.AudioURL, nil
}

// SubmitVideoJob starts the lip-sync job and returns its id immediately.
func (c *Client) SubmitVideoJob(ctx context.Context, imageRef, audioRef string) (string, error) {
	var out generateVideoResponse
	err := c.post(ctx, "/api/generate-video", generateVideoRequest{ImageURL: imageRef, AudioURL: audioRef}, &out)
	if err != nil {
		return "", err
	}
	if out.PredictionID == "" {
		return "", &domain.RemoteError{Provider: apiProviderName, Message: "no prediction id in response"}
	}
	return out.PredictionID, nil
}

// JobStatus reads one status snapshot for the job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	var out videoStatusResponse
	err := c.post(ctx, "/api/video-status", videoStatusRequest{PredictionID: jobID}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.GenerationJob{
		ID:           jobID,
		Status:       domain.JobStatus(out.Status),
		Progress:     out.Progress,
		Message:      out.Message,
		ResultURL:    out.VideoURL,
		ErrorMessage: out.Error,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("creation: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creation: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.locale != "" {
		httpReq.Header.Set("X-Locale", c.locale)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &domain.RemoteError{Provider: apiProviderName, Message: "request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteError{Provider: apiProviderName, Message: "read response", Err: err}
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var decoded errorResponse
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return &domain.RemoteError{Provider: apiProviderName, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.RemoteError{Provider: apiProviderName, Message: "decode response", Err: err}
	}
	return nil
}

var _ API = (*Client)(nil)
