package lipsync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/infra"
)

// Submitter drives the external lip-sync video model: one call to start a
// prediction, one call per status snapshot. No retry or polling lives here.
type Submitter interface {
	Submit(ctx context.Context, imageRef, audioRef string) (string, error)
	Status(ctx context.Context, predictionID string) (*domain.GenerationJob, error)
}

const (
	replicateProviderName   = "replicate"
	replicateDefaultTimeout = 60 * time.Second

	// SadTalker lip-sync animation model.
	defaultModelVersion = "cjwbw/sadtalker:3aa3dac9353cc4d6bd62a8f95957bd844003b401ca4e4a9b33baa574c549d376"
)

// Options configures the Replicate predictions client.
type Options struct {
	APIToken     string
	BaseURL      string
	ModelVersion string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken     string
	baseURL      string
	modelVersion string
	httpClient   *http.Client
	logger       *infra.Logger
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	SourceImage string `json:"source_image"`
	DrivenAudio string `json:"driven_audio"`
	Enhancer    string `json:"enhancer"`
	Preprocess  string `json:"preprocess"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

type fileUploadResponse struct {
	URLs struct {
		Get string `json:"get"`
	} `json:"urls"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: replicateDefaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	version := strings.TrimSpace(opts.ModelVersion)
	if version == "" {
		version = defaultModelVersion
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		modelVersion: version,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Submit starts a lip-sync prediction and returns its id without waiting
// for completion. Inline data: payloads are uploaded first so the model
// receives a serving URL it accepts.
func (c *Client) Submit(ctx context.Context, imageRef, audioRef string) (string, error) {
	if !c.HasCredentials() {
		return "", domain.ErrMissingCredentials
	}
	imageRef = strings.TrimSpace(imageRef)
	audioRef = strings.TrimSpace(audioRef)
	if imageRef == "" || audioRef == "" {
		return "", &domain.ValidationError{Field: "media", Reason: "image and audio references are required"}
	}

	imageURL, err := c.resolveRef(ctx, imageRef)
	if err != nil {
		return "", err
	}
	audioURL, err := c.resolveRef(ctx, audioRef)
	if err != nil {
		return "", err
	}

	payload := predictionRequest{
		Version: c.modelVersion,
		Input: predictionInput{
			SourceImage: imageURL,
			DrivenAudio: audioURL,
			Enhancer:    "gfpgan",
			Preprocess:  "crop",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("lipsync: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("lipsync: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	pred, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	if pred.ID == "" {
		return "", &domain.RemoteError{Provider: replicateProviderName, Message: "prediction id missing in response"}
	}
	c.logger.Debug().Str("prediction_id", pred.ID).Str("status", pred.Status).Msg("lipsync: prediction submitted")
	return pred.ID, nil
}

// Status reads one snapshot of the prediction and normalizes the
// heterogeneous output shape (bare URL, URL list, or object with a video
// key) into a single result URL.
func (c *Client) Status(ctx context.Context, predictionID string) (*domain.GenerationJob, error) {
	if !c.HasCredentials() {
		return nil, domain.ErrMissingCredentials
	}
	predictionID = strings.TrimSpace(predictionID)
	if predictionID == "" {
		return nil, &domain.ValidationError{Field: "predictionId", Reason: "prediction id is required"}
	}
	endpoint := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(predictionID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("lipsync: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	pred, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	status := domain.JobStatus(pred.Status)
	job := &domain.GenerationJob{
		ID:       pred.ID,
		Status:   status,
		Progress: domain.ProgressForStatus(status),
	}
	if status == domain.JobStatusSucceeded {
		job.ResultURL = normalizeOutput(pred.Output)
	}
	if status == domain.JobStatusFailed || status == domain.JobStatusCanceled {
		job.ErrorMessage = pred.Error
	}
	return job, nil
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RemoteError{Provider: replicateProviderName, Message: "request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Provider: replicateProviderName, Message: "read response", Err: err}
	}
	var pred prediction
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &pred); err == nil && pred.Detail != "" {
			msg = pred.Detail
		}
		return nil, &domain.RemoteError{Provider: replicateProviderName, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, &domain.RemoteError{Provider: replicateProviderName, Message: "decode response", Err: err}
	}
	return &pred, nil
}

// resolveRef turns an inline data: payload into a URL via the files API and
// passes direct references through untouched.
func (c *Client) resolveRef(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	mimeType, data, err := decodeDataURI(ref)
	if err != nil {
		return "", err
	}
	return c.upload(ctx, mimeType, data)
}

func (c *Client) upload(ctx context.Context, mimeType string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	ext := extensionForMIME(mimeType)
	part, err := writer.CreateFormFile("content", "asset"+ext)
	if err != nil {
		return "", fmt.Errorf("lipsync: build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("lipsync: write upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("lipsync: finalize upload form: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("lipsync: build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.RemoteError{Provider: replicateProviderName, Message: "upload failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.RemoteError{Provider: replicateProviderName, Message: "read upload response", Err: err}
	}
	var decoded fileUploadResponse
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Detail != "" {
			msg = decoded.Detail
		}
		return "", &domain.RemoteError{Provider: replicateProviderName, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.RemoteError{Provider: replicateProviderName, Message: "decode upload response", Err: err}
	}
	if decoded.URLs.Get == "" {
		return "", &domain.RemoteError{Provider: replicateProviderName, Message: "upload returned no serving url"}
	}
	c.logger.Debug().Str("mime", mimeType).Int("bytes", len(data)).Msg("lipsync: uploaded inline asset")
	return decoded.URLs.Get, nil
}

// normalizeOutput flattens the provider's varying output shapes. SadTalker
// returns a bare URL, some models a list, AniPortrait an object with a
// video key.
func normalizeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		if len(asList) > 0 {
			return asList[0]
		}
		return ""
	}
	var asObject struct {
		Video string `json:"video"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return asObject.Video
	}
	return ""
}

func decodeDataURI(uri string) (string, []byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, errors.New("lipsync: malformed data uri")
	}
	meta, payload := rest[:sep], rest[sep+1:]
	mimeType := meta
	encoding := ""
	if idx := strings.Index(meta, ";"); idx >= 0 {
		mimeType = meta[:idx]
		encoding = meta[idx+1:]
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if encoding != "base64" {
		return "", nil, fmt.Errorf("lipsync: unsupported data uri encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("lipsync: decode data uri: %w", err)
	}
	return mimeType, data, nil
}

func extensionForMIME(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

var _ Submitter = (*Client)(nil)
