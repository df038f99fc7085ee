package extractor

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

	"guardian/internal/evidence"
	"guardian/internal/services"
)

const (
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 10 * time.Second

	// Indexing states reported by the extraction service.
	StateProcessing  = "processing"
	StateProcessed   = "processed"
	StateFailed      = "failed"
	StateQuarantined = "quarantined"
)

// Config captures the runtime settings for the transcript/OCR extraction
// service.
type Config struct {
	BaseURL             string
	APIKey              string
	PollIntervalSeconds int
	TimeoutSeconds      int
}

// Insights is the evidence payload for a processed video.
type Insights struct {
	VideoID    string                       `json:"video_id"`
	Duration   float64                      `json:"duration"`
	Transcript []evidence.TranscriptSegment `json:"transcript"`
	OCR        []evidence.OCRDetection      `json:"ocr"`
}

// Client submits videos for indexing and retrieves transcript and OCR
// insights once processing finishes.
type Client struct {
	cfg          Config
	httpClient   HTTPDoer
	pollInterval time.Duration
	sleeper      func(time.Duration)
}

// HTTPDoer describes the HTTP client used by the extraction client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides how long Extract waits between status checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an extraction client from configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	pollInterval := defaultPollInterval
	if cfg.PollIntervalSeconds > 0 {
		pollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:  strings.TrimSpace(cfg.APIKey),
		},
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: pollInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type submitRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Submit registers a video for indexing and returns the service-assigned
// video identifier.
func (c *Client) Submit(ctx context.Context, videoURL, name string) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", services.Wrap(services.ErrMalformedInput, "normalizing", "submit video", "empty video url", nil)
	}
	var decoded submitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/videos", submitRequest{URL: videoURL, Name: name}, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", services.Wrap(services.ErrTransient, "normalizing", "submit video", "service returned no video id", nil)
	}
	return decoded.ID, nil
}

// Status fetches the indexing state for a submitted video.
func (c *Client) Status(ctx context.Context, videoID string) (string, error) {
	var decoded statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+videoID, nil, &decoded); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(decoded.State)), nil
}

// Insights fetches the transcript segments and OCR detections for a
// processed video.
func (c *Client) Insights(ctx context.Context, videoID string) (*Insights, error) {
	var decoded Insights
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+videoID+"/insights", nil, &decoded); err != nil {
		return nil, err
	}
	if decoded.VideoID == "" {
		decoded.VideoID = videoID
	}
	return &decoded, nil
}

// Extract runs the full submit/poll/fetch flow. It blocks until the service
// reports the video processed or the context is cancelled. Failed and
// quarantined videos surface as malformed-input errors since retrying the
// same video cannot succeed.
func (c *Client) Extract(ctx context.Context, videoURL, name string) (*Insights, error) {
	videoID, err := c.Submit(ctx, videoURL, name)
	if err != nil {
		return nil, err
	}
	for {
		state, err := c.Status(ctx, videoID)
		if err != nil {
			return nil, err
		}
		switch state {
		case StateProcessed:
			return c.Insights(ctx, videoID)
		case StateFailed:
			return nil, services.Wrap(services.ErrMalformedInput, "normalizing", "poll indexing", fmt.Sprintf("video %s failed indexing", videoID), nil)
		case StateQuarantined:
			return nil, services.Wrap(services.ErrMalformedInput, "normalizing", "poll indexing", fmt.Sprintf("video %s quarantined", videoID), nil)
		}
		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
	}
}

func (c *Client) sleep(ctx context.Context) error {
	if c.sleeper != nil {
		c.sleeper(c.pollInterval)
		return ctx.Err()
	}
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	if c.cfg.BaseURL == "" {
		return services.Wrap(services.ErrMalformedInput, "normalizing", "call extraction service", "base url not configured", nil)
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return services.Wrap(services.ErrTransient, "normalizing", "call extraction service", "encode request", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "normalizing", "call extraction service", "build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "normalizing", "call extraction service", "http error", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "normalizing", "call extraction service", "read body", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return services.Wrap(services.ErrModelAuth, "normalizing", "call extraction service",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransient, "normalizing", "call extraction service",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return services.Wrap(services.ErrTransient, "normalizing", "call extraction service", "decode response", err)
		}
	}
	return nil
}
