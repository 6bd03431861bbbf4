package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WhisperClient talks to a whisper transcription server over HTTP.
// The server exposes POST /transcribe accepting multipart form data with a
// "file" part and a "language" field, answering {"text": "..."}.
//
// Network errors and 5xx responses are retried with exponential backoff;
// 4xx responses and malformed replies are permanent ErrTranscription.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client

	// maxRetryElapsed bounds the exponential backoff on transient failures.
	maxRetryElapsed time.Duration
}

var _ Transcriber = (*WhisperClient)(nil)

func NewWhisperClient(baseURL string, requestTimeout time.Duration) *WhisperClient {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	return &WhisperClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: requestTimeout},
		maxRetryElapsed: requestTimeout,
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: read chunk: %v", ErrTranscription, err)
	}

	var text string
	operation := func() error {
		t, err := c.post(ctx, filepath.Base(audioPath), data, language)
		if err != nil {
			return err
		}
		text = t
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		// Permanent errors arrive pre-wrapped; exhausted transient ones don't.
		if !errors.Is(err, ErrTranscription) {
			err = fmt.Errorf("%w: %v", ErrTranscription, err)
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *WhisperClient) post(ctx context.Context, filename string, data []byte, language string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if language != "" {
		_ = w.WriteField("language", language)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %v", ErrTranscription, err))
	}
	if _, err := part.Write(data); err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %v", ErrTranscription, err))
	}
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %v", ErrTranscription, err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err // transient, retried by backoff
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("transcription server error: %s", strings.TrimSpace(string(respBody)))
	case resp.StatusCode >= 400:
		return "", backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrTranscription, resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: decode response: %v", ErrTranscription, err))
	}
	return parsed.Text, nil
}
