package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guardian/internal/config"
)

const userAgent = "Guardian-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, videoID, runID string) error
	NotifyRunCompleted(ctx context.Context, videoID, runID, overallStatus string, violations int) error
	NotifyRunFailed(ctx context.Context, videoID, runID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by an ntfy-compatible
// webhook when configured. When no webhook URL is configured, a noop
// implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (w *webhookService) NotifyRunStarted(ctx context.Context, videoID, runID string) error {
	data := payload{
		title:   "Guardian - Audit Started",
		message: fmt.Sprintf("Auditing %s (run %s)", strings.TrimSpace(videoID), runID),
		tags:    []string{"guardian", "audit", "started"},
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyRunCompleted(ctx context.Context, videoID, runID, overallStatus string, violations int) error {
	videoID = strings.TrimSpace(videoID)
	var data payload
	switch overallStatus {
	case "violation":
		data = payload{
			title:    "Guardian - Violations Found",
			message:  fmt.Sprintf("%s: %d violation(s) found (run %s)", videoID, violations, runID),
			tags:     []string{"guardian", "audit", "violation"},
			priority: "high",
		}
	case "uncertain":
		data = payload{
			title:   "Guardian - Audit Uncertain",
			message: fmt.Sprintf("%s: audit completed with uncertain findings (run %s)", videoID, runID),
			tags:    []string{"guardian", "audit", "uncertain"},
		}
	default:
		data = payload{
			title:   "Guardian - Audit Complete",
			message: fmt.Sprintf("%s: compliant (run %s)", videoID, runID),
			tags:    []string{"guardian", "audit", "completed"},
		}
	}
	return w.send(ctx, data)
}

func (w *webhookService) NotifyRunFailed(ctx context.Context, videoID, runID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Guardian - Audit Failed",
		message:  fmt.Sprintf("%s: run %s failed (%s)", strings.TrimSpace(videoID), runID, reason),
		tags:     []string{"guardian", "audit", "failed"},
		priority: "high",
	}
	return w.send(ctx, data)
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Guardian - Test",
		message:  "Notification system test",
		tags:     []string{"guardian", "test"},
		priority: "low",
	}
	return w.send(ctx, data)
}

func (w *webhookService) send(ctx context.Context, data payload) error {
	if w == nil || w.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, string) error                { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, string, string, int) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
