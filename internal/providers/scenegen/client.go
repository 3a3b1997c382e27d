package scenegen

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
	defaultBaseURL      = "https://api.scenegen.dev"
	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 60
	defaultMaxClip      = 10.0
	defaultHTTPTimeout  = 30 * time.Second
)

// Config holds the generation parameters fixed at construction.
type Config struct {
	APIKey string
	// PollInterval is the fixed delay between status checks.
	PollInterval time.Duration
	// PollAttempts bounds how many status checks one generation gets before
	// it is declared timed out.
	PollAttempts int
	// MaxClipSeconds is the longest clip the provider will produce; requested
	// durations are clamped to it.
	MaxClipSeconds float64
}

// Client talks to the scene generation backend: submit a render task, poll it
// to a terminal state, download the produced clip.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// Option customizes the scene generation client.
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

// NewClient constructs a scene generation client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.MaxClipSeconds <= 0 {
		cfg.MaxClipSeconds = defaultMaxClip
	}
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

// Request describes one scene clip to generate.
type Request struct {
	Prompt          string
	DurationSeconds float64
	AspectRatio     string
	// SourceImage optionally seeds the generation with an image URL.
	SourceImage string
	// Style is the job-level style tag forwarded verbatim.
	Style string
	// OutputPath is where the finished clip is written.
	OutputPath string
}

// Generate runs the full submit/poll/download cycle and returns the local
// clip path. Durations above the provider maximum are clamped, not rejected.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", services.Wrap(services.ErrValidation, "generating_scenes", "generate", "prompt required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return "", services.Wrap(services.ErrValidation, "generating_scenes", "generate", "output path required", nil)
	}

	taskID, err := c.submit(ctx, req)
	if err != nil {
		return "", err
	}
	outputURL, err := c.pollUntilDone(ctx, taskID)
	if err != nil {
		return "", err
	}
	if err := c.download(ctx, outputURL, req.OutputPath); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type submitRequest struct {
	Prompt          string  `json:"prompt"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Style           string  `json:"style,omitempty"`
	SourceImage     string  `json:"source_image,omitempty"`
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type pollResponse struct {
	Status    string `json:"status"`
	OutputURL string `json:"output_url"`
	Error     string `json:"error"`
}

func (c *Client) submit(ctx context.Context, req Request) (string, error) {
	duration := req.DurationSeconds
	if duration > c.cfg.MaxClipSeconds {
		duration = c.cfg.MaxClipSeconds
	}
	dims := ResolveDimensions(req.AspectRatio)

	payload, err := json.Marshal(submitRequest{
		Prompt:          strings.TrimSpace(req.Prompt),
		DurationSeconds: duration,
		Width:           dims.Width,
		Height:          dims.Height,
		Style:           strings.TrimSpace(req.Style),
		SourceImage:     strings.TrimSpace(req.SourceImage),
	})
	if err != nil {
		return "", fmt.Errorf("scenegen submit: encode request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/v1/generations", payload)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "submit", "", err)
	}
	if status >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "submit",
			fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
	}
	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "submit", "decode response", err)
	}
	if decoded.Error != "" {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "submit", decoded.Error, nil)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", services.Wrap(services.ErrProvider, "generating_scenes", "submit", "empty task id", nil)
	}
	return decoded.ID, nil
}

// pollUntilDone checks task status at the configured interval. Transient poll
// failures consume an attempt but do not abort; only a provider-reported
// terminal failure or the attempt bound ends the loop early.
func (c *Client) pollUntilDone(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		result, err := c.poll(ctx, taskID)
		if err == nil {
			switch {
			case isSucceeded(result.Status):
				if strings.TrimSpace(result.OutputURL) == "" {
					return "", services.Wrap(services.ErrProvider, "generating_scenes", "poll", "completed without output url", nil)
				}
				return result.OutputURL, nil
			case isFailed(result.Status):
				message := strings.TrimSpace(result.Error)
				if message == "" {
					message = "generation " + strings.ToLower(result.Status)
				}
				return "", services.Wrap(services.ErrProvider, "generating_scenes", "poll", message, nil)
			}
		} else if ctx.Err() != nil {
			return "", services.Wrap(services.ErrTimeout, "generating_scenes", "poll", "", ctx.Err())
		}

		if attempt == c.cfg.PollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", services.Wrap(services.ErrTimeout, "generating_scenes", "poll", "", ctx.Err())
		case <-ticker.C:
		}
	}
	return "", services.Wrap(services.ErrTimeout, "generating_scenes", "poll",
		fmt.Sprintf("task %s not finished after %d attempts", taskID, c.cfg.PollAttempts), nil)
}

func (c *Client) poll(ctx context.Context, taskID string) (pollResponse, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/v1/generations/"+url.PathEscape(taskID), nil)
	if err != nil {
		return pollResponse{}, err
	}
	if status >= http.StatusMultipleChoices {
		return pollResponse{}, fmt.Errorf("scenegen poll: http %d: %s", status, strings.TrimSpace(string(body)))
	}
	var decoded pollResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return pollResponse{}, fmt.Errorf("scenegen poll: decode response: %w", err)
	}
	return decoded, nil
}

func (c *Client) download(ctx context.Context, remoteURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return services.Wrap(services.ErrProvider, "generating_scenes", "download", "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "generating_scenes", "download", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrProvider, "generating_scenes", "download",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrProvider, "generating_scenes", "download", "create clip file", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return services.Wrap(services.ErrProvider, "generating_scenes", "download", "write clip file", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, 0, fmt.Errorf("scenegen: build url: %w", err)
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("scenegen: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("scenegen: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("scenegen: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isSucceeded(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded", "completed", "success":
		return true
	default:
		return false
	}
}

func isFailed(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error", "cancelled", "canceled", "timed_out":
		return true
	default:
		return false
	}
}
