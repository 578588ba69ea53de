package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"talkingphoto/internal/domain"
)

// Synthesizer converts text into a playable audio asset.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
}

const (
	elevenLabsDefaultTimeout = 60 * time.Second
	elevenLabsProviderName   = "elevenlabs"
)

// ElevenLabsOptions configures the ElevenLabs text-to-speech client.
type ElevenLabsOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// ElevenLabsClient performs HTTP calls to the ElevenLabs text-to-speech API
// and returns audio as an inline data URL the rest of the pipeline can pass
// around without separate asset storage.
type ElevenLabsClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsErrorResponse struct {
	Detail struct {
		Message string `json:"message"`
	} `json:"detail"`
}

// NewElevenLabsClient constructs a client with sane defaults.
func NewElevenLabsClient(opts ElevenLabsOptions) (*ElevenLabsClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("speech: elevenlabs api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "eleven_turbo_v2_5"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: elevenLabsDefaultTimeout}
	}
	return &ElevenLabsClient{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  client,
	}, nil
}

// Synthesize performs exactly one text-to-speech call and returns the audio
// as a data:audio/mpeg;base64 URL. Provider failures carry the upstream
// HTTP status.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &domain.ValidationError{Field: "text", Reason: "text is required"}
	}
	if strings.TrimSpace(voiceID) == "" {
		return "", &domain.ValidationError{Field: "voiceId", Reason: "voice id is required"}
	}
	payload := ttsRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("speech: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("speech: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &domain.RemoteError{Provider: elevenLabsProviderName, Message: "request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.RemoteError{Provider: elevenLabsProviderName, Message: "read response", Err: err}
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail ttsErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail.Message != "" {
			msg = detail.Detail.Message
		}
		return "", &domain.RemoteError{Provider: elevenLabsProviderName, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(raw) == 0 {
		return "", &domain.RemoteError{Provider: elevenLabsProviderName, Message: "empty audio response"}
	}
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

var _ Synthesizer = (*ElevenLabsClient)(nil)
