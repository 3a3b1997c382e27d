package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"montage/internal/services"
)

const (
	defaultBaseURL     = "https://api.narrate.dev"
	defaultHTTPTimeout = 60 * time.Second
)

// Config holds the synthesis parameters fixed at construction.
type Config struct {
	APIKey string
	// DefaultVoice is used when the job names no voice. Aliases resolve
	// through the same table as job-supplied selectors.
	DefaultVoice string
}

// Client talks to the speech synthesis backend. One call, one audio file;
// there is no polling because the provider renders synchronously.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// Option customizes the narration client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a narration client.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg:        cfg,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize renders text to speech and writes the audio to outputPath,
// returning the path. The voice argument accepts the friendly aliases from
// ResolveVoice as well as raw provider ids.
func (c *Client) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "generating_voiceover", "synthesize", "script required", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return "", services.Wrap(services.ErrValidation, "generating_voiceover", "synthesize", "output path required", nil)
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:  text,
		Voice: c.resolveVoice(voice),
	})
	if err != nil {
		return "", fmt.Errorf("narration synthesize: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/v1/speech")
	if err != nil {
		return "", fmt.Errorf("narration synthesize: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("narration synthesize: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "generating_voiceover", "synthesize", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", services.Wrap(services.ErrProvider, "generating_voiceover", "synthesize",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "generating_voiceover", "synthesize", "create audio file", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", services.Wrap(services.ErrProvider, "generating_voiceover", "synthesize", "write audio file", err)
	}
	return outputPath, nil
}

// voiceAliases maps friendly selector names to provider voice ids. Anything
// not in the table is passed to the provider verbatim.
var voiceAliases = map[string]string{
	"default": "nova",
	"male":    "atlas",
	"female":  "aria",
}

func (c *Client) resolveVoice(voice string) string {
	voice = strings.ToLower(strings.TrimSpace(voice))
	if voice == "" {
		voice = strings.ToLower(strings.TrimSpace(c.cfg.DefaultVoice))
	}
	if voice == "" {
		voice = "default"
	}
	if resolved, ok := voiceAliases[voice]; ok {
		return resolved
	}
	return voice
}
