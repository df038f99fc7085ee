package vectorstore

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

// HTTPConfig captures the runtime settings for a remote rule index.
type HTTPConfig struct {
	BaseURL        string
	APIKey         string
	Index          string
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the remote store.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPStore queries a remote vector index over HTTP. Connectivity failures
// are wrapped with the retrieval-unavailable marker so the controller retries
// them within the per-chunk attempt budget.
type HTTPStore struct {
	cfg    HTTPConfig
	client HTTPDoer
}

// NewHTTPStore constructs a remote store client from configuration.
func NewHTTPStore(cfg HTTPConfig) *HTTPStore {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &HTTPStore{
		cfg: HTTPConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:  strings.TrimSpace(cfg.APIKey),
			Index:   strings.TrimSpace(cfg.Index),
		},
		client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPStoreWithClient constructs a remote store with a custom HTTP client
// (used in tests).
func NewHTTPStoreWithClient(cfg HTTPConfig, client HTTPDoer) *HTTPStore {
	s := NewHTTPStore(cfg)
	if client != nil {
		s.client = client
	}
	return s
}

type queryRequest struct {
	Index     string    `json:"index,omitempty"`
	Vector    []float64 `json:"vector"`
	K         int       `json:"k"`
	Threshold float64   `json:"threshold"`
}

type queryResponse struct {
	Matches []Record `json:"matches"`
	Error   string   `json:"error,omitempty"`
}

// Query sends a similarity query to the remote index.
func (s *HTTPStore) Query(ctx context.Context, vector []float64, k int, threshold float64) ([]Record, error) {
	if s.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "base url not configured", nil)
	}
	if len(vector) == 0 {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "empty query vector", nil)
	}

	encoded, err := json.Marshal(queryRequest{Index: s.cfg.Index, Vector: vector, K: k, Threshold: threshold})
	if err != nil {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/query", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded queryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "decode response", err)
	}
	if decoded.Error != "" {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", decoded.Error, nil)
	}
	return decoded.Matches, nil
}
