package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"guardian/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(
		Config{BaseURL: server.URL, APIKey: "vi-key"},
		WithSleeper(func(time.Duration) {}),
	)
}

func TestExtractPollsUntilProcessed(t *testing.T) {
	var polls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			if got := r.Header.Get("Authorization"); got != "Bearer vi-key" {
				t.Errorf("authorization = %q", got)
			}
			var req submitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode submit: %v", err)
			}
			if req.URL != "https://example.com/clip.mp4" {
				t.Errorf("submit url = %q", req.URL)
			}
			json.NewEncoder(w).Encode(submitResponse{ID: "vid-42"})
		case r.Method == http.MethodGet && r.URL.Path == "/videos/vid-42":
			state := StateProcessing
			if polls.Add(1) >= 3 {
				state = StateProcessed
			}
			json.NewEncoder(w).Encode(statusResponse{State: state})
		case r.Method == http.MethodGet && r.URL.Path == "/videos/vid-42/insights":
			w.Write([]byte(`{
				"duration": 12.5,
				"transcript": [{"start_time": 0, "end_time": 4.2, "text": "hello"}],
				"ocr": [{"start_time": 1, "end_time": 2, "text": "SALE", "confidence": 0.92}]
			}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	insights, err := client.Extract(context.Background(), "https://example.com/clip.mp4", "clip")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if polls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls.Load())
	}
	if insights.VideoID != "vid-42" {
		t.Errorf("video id = %q", insights.VideoID)
	}
	if len(insights.Transcript) != 1 || insights.Transcript[0].Text != "hello" {
		t.Errorf("transcript = %+v", insights.Transcript)
	}
	if len(insights.OCR) != 1 || insights.OCR[0].Confidence != 0.92 {
		t.Errorf("ocr = %+v", insights.OCR)
	}
}

func TestExtractFailedIndexing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ID: "vid-1"})
			return
		}
		json.NewEncoder(w).Encode(statusResponse{State: StateFailed})
	}))

	_, err := client.Extract(context.Background(), "https://example.com/bad.mp4", "")
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestExtractQuarantined(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ID: "vid-1"})
			return
		}
		json.NewEncoder(w).Encode(statusResponse{State: StateQuarantined})
	}))

	_, err := client.Extract(context.Background(), "https://example.com/bad.mp4", "")
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestExtractCancelledDuringPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(submitResponse{ID: "vid-1"})
			return
		}
		json.NewEncoder(w).Encode(statusResponse{State: StateProcessing})
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL},
		WithSleeper(func(time.Duration) { cancel() }),
	)
	_, err := client.Extract(ctx, "https://example.com/clip.mp4", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubmitRejectsEmptyURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://example.invalid"})
	_, err := client.Submit(context.Background(), "  ", "")
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestStatusAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	_, err := client.Status(context.Background(), "vid-1")
	if !errors.Is(err, services.ErrModelAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestStatusServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "flaky", http.StatusBadGateway)
	}))
	_, err := client.Status(context.Background(), "vid-1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
