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
	"strconv"
	"strings"
	"time"
)

// Whisper defaults
const (
	DefaultLanguage = "ja"
	DefaultBeamSize = 5
	defaultTimeout  = 10 * time.Minute
)

// WhisperClient transcribes through the HTTP API of a whisper.cpp server.
type WhisperClient struct {
	serverURL  string
	language   string
	model      string
	beamSize   int
	httpClient *http.Client
}

// WhisperOption configures a WhisperClient.
type WhisperOption func(*WhisperClient)

// WithLanguage sets the spoken language hint. Empty lets the server detect it.
func WithLanguage(lang string) WhisperOption {
	return func(c *WhisperClient) { c.language = lang }
}

// WithModel asks the server for a specific model.
func WithModel(model string) WhisperOption {
	return func(c *WhisperClient) { c.model = model }
}

// WithBeamSize sets the decoder beam width.
func WithBeamSize(n int) WhisperOption {
	return func(c *WhisperClient) { c.beamSize = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) WhisperOption {
	return func(c *WhisperClient) { c.httpClient = hc }
}

// NewWhisperClient returns a client for the server at serverURL.
func NewWhisperClient(serverURL string, opts ...WhisperOption) (*WhisperClient, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL is required")
	}
	c := &WhisperClient{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   DefaultLanguage,
		beamSize:   DefaultBeamSize,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type verboseResponse struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Transcribe uploads wavPath to POST /inference and parses the verbose JSON
// reply.
func (c *WhisperClient) Transcribe(ctx context.Context, wavPath string) (Transcription, error) {
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return Transcription{}, fmt.Errorf("whisper: read %s: %w", wavPath, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return Transcription{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return Transcription{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0.0"},
		{"beam_size", strconv.Itoa(c.beamSize)},
	}
	if c.language != "" {
		fields = append(fields, [2]string{"language", c.language})
	}
	if c.model != "" {
		fields = append(fields, [2]string{"model", c.model})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Transcription{}, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return Transcription{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", &body)
	if err != nil {
		return Transcription{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transcription{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcription{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result verboseResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return Transcription{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	segments := make([]Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		s.Text = strings.TrimSpace(s.Text)
		segments = append(segments, s)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = joinText(segments)
	}
	return Transcription{Text: text, Segments: segments}, nil
}
