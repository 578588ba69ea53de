package script

import (
	"bytes"
	"context"
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

// Generator produces a short spoken script for an image.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request carries the encoded image payload to describe.
type Request struct {
	ImageBase64 string
	MIMEType    string
}

const (
	geminiDefaultTimeout = 30 * time.Second
	geminiProviderName   = "gemini"

	scriptInstruction = `Analyze this image and generate a short, funny script (2-3 sentences, max 150 characters) for what the subject in the photo might say.

If it's a pet, make it humorous and relatable (like complaining about food or wanting attention).
If it's a person, make it lighthearted and fun.

Just respond with the script text only, no quotes or attribution.`
)

// GeminiOptions configures the Gemini script generator.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiGenerator calls the Gemini multimodal generateContent API to write
// a script for what the photo subject might say.
type GeminiGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGeminiGenerator constructs a generator with sane defaults.
func NewGeminiGenerator(opts GeminiOptions) (*GeminiGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("script: gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &GeminiGenerator{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Generate performs exactly one generateContent call. An empty model reply
// is returned as an empty script, not an error.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.ImageBase64) == "" {
		return "", &domain.ValidationError{Field: "image", Reason: "image payload is required"}
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MIMEType: mime, Data: req.ImageBase64}},
				{Text: scriptInstruction},
			},
		}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("script: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return "", fmt.Errorf("script: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &domain.RemoteError{Provider: geminiProviderName, Message: "request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.RemoteError{Provider: geminiProviderName, Message: "read response", Err: err}
	}
	var out geminiResponse
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &out); err == nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &domain.RemoteError{Provider: geminiProviderName, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &domain.RemoteError{Provider: geminiProviderName, Message: "decode response", Err: err}
	}
	return cleanScript(extractText(out)), nil
}

func (g *GeminiGenerator) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func extractText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

// cleanScript strips quotes and code fences models occasionally wrap the
// script in despite the instruction.
func cleanScript(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

var _ Generator = (*GeminiGenerator)(nil)
