package embedding

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

	"guardian/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings for the embedding service.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the embedding service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls an OpenAI-compatible embeddings endpoint. All failures are
// wrapped with the embedding error marker so the controller retries them
// within the per-chunk attempt budget.
type Client struct {
	cfg    Config
	client HTTPDoer
}

// NewClient constructs an embedding client from configuration.
func NewClient(cfg Config) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg: Config{
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:  strings.TrimSpace(cfg.APIKey),
			Model:   strings.TrimSpace(cfg.Model),
		},
		client: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP constructs an embedding client with a custom HTTP client
// (used in tests).
func NewClientWithHTTP(cfg Config, client HTTPDoer) *Client {
	c := NewClient(cfg)
	if client != nil {
		c.client = client
	}
	return c
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed maps text onto a fixed-length numeric vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "empty text", nil)
	}
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "base url not configured", nil)
	}

	encoded, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: text})
	if err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded embedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "decode response", err)
	}
	if decoded.Error != nil {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", decoded.Error.Message, nil)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed", "empty embedding in response", nil)
	}
	return decoded.Data[0].Embedding, nil
}
