package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardmere/crmparse/internal/core/ports"
)

const (
	defaultModel       = "whisper-large-v3"
	defaultHTTPTimeout = 120 * time.Second
)

// Client transcribes audio through a Whisper-compatible HTTP API.
// Audio URIs starting with http:// or https:// are fetched directly;
// anything else is treated as an object storage key.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	storage    ports.ObjectStorage
}

// New builds a transcription client for the given endpoint. The storage
// backend resolves non-URL audio references and may be nil when every
// event carries a full URL.
func New(baseURL, model, apiKey string, storage ports.ObjectStorage) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		storage:    storage,
	}
}

func (c *Client) Transcribe(ctx context.Context, audioURI string) (string, error) {
	audio, err := c.readAudio(ctx, audioURI)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	part, err := form.CreateFormFile("file", filepath.Base(audioURI))
	if err != nil {
		return "", fmt.Errorf("create audio form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalize transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("whisper transcription status: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var response struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return strings.TrimSpace(response.Text), nil
}

func (c *Client) readAudio(ctx context.Context, audioURI string) ([]byte, error) {
	if strings.HasPrefix(audioURI, "http://") || strings.HasPrefix(audioURI, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURI, nil)
		if err != nil {
			return nil, fmt.Errorf("create audio fetch request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("fetch audio status: %s", resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read fetched audio: %w", err)
		}
		return data, nil
	}

	if c.storage == nil {
		return nil, fmt.Errorf("no storage configured for audio key %q", audioURI)
	}
	reader, err := c.storage.Open(ctx, audioURI)
	if err != nil {
		return nil, fmt.Errorf("open audio %q: %w", audioURI, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read audio %q: %w", audioURI, err)
	}
	return data, nil
}
