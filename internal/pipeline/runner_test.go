package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"guardian/internal/audit"
	"guardian/internal/evidence"
	"guardian/internal/runstore"
	"guardian/internal/services"
	"guardian/internal/services/extractor"
)

type fakeExtractor struct {
	insights *extractor.Insights
	err      error
	urls     []string
}

func (f *fakeExtractor) Extract(_ context.Context, videoURL, _ string) (*extractor.Insights, error) {
	f.urls = append(f.urls, videoURL)
	return f.insights, f.err
}

type recordingNotifier struct {
	started   []string
	completed []string
	failed    []string
}

func (n *recordingNotifier) NotifyRunStarted(_ context.Context, _, runID string) error {
	n.started = append(n.started, runID)
	return nil
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, _, runID, status string, _ int) error {
	n.completed = append(n.completed, runID+":"+status)
	return nil
}

func (n *recordingNotifier) NotifyRunFailed(_ context.Context, _, runID, reason string) error {
	n.failed = append(n.failed, runID+":"+reason)
	return nil
}

func newTestRunner(t *testing.T, extr Extractor, retriever Retriever, auditor Auditor, notifier Notifier) (*Runner, *runstore.Store) {
	t.Helper()
	store, err := runstore.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	runner := NewRunner(store, extr, retriever, auditor, notifier,
		Options{ChunkConcurrency: 2, RetryMaxAttempts: 2, RetryBackoff: time.Millisecond, PerCallTimeout: time.Second},
		nil,
		WithSleeper(func(time.Duration) {}),
	)
	return runner, store
}

func TestExecuteWithInlineEvidence(t *testing.T) {
	notifier := &recordingNotifier{}
	runner, store := newTestRunner(t, nil, newFakeRetriever(), newFakeAuditor(), notifier)

	result, err := runner.Execute(context.Background(), RunRequest{
		VideoID:    "vid-1",
		Transcript: transcript(2),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Report.OverallStatus != audit.StatusCompliant {
		t.Errorf("overall = %s", result.Report.OverallStatus)
	}
	if result.Run.Status != string(StateCompleted) {
		t.Errorf("run status = %s", result.Run.Status)
	}
	if len(notifier.started) != 1 || len(notifier.completed) != 1 {
		t.Errorf("notifications = %+v", notifier)
	}

	persisted, err := store.Report(context.Background(), result.Run.RunID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if persisted.RunID != result.Run.RunID {
		t.Errorf("persisted run id = %s", persisted.RunID)
	}
}

func TestExecuteFetchesEvidenceFromExtractor(t *testing.T) {
	extr := &fakeExtractor{insights: &extractor.Insights{
		VideoID: "vid-ext",
		Transcript: []evidence.TranscriptSegment{
			{Start: 0, End: 3, Text: "hello world"},
		},
	}}
	runner, _ := newTestRunner(t, extr, newFakeRetriever(), newFakeAuditor(), nil)

	result, err := runner.Execute(context.Background(), RunRequest{VideoURL: "https://example.com/v.mp4"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(extr.urls) != 1 || extr.urls[0] != "https://example.com/v.mp4" {
		t.Errorf("extractor calls = %v", extr.urls)
	}
	if len(result.Report.Verdicts) != 1 {
		t.Errorf("verdicts = %d", len(result.Report.Verdicts))
	}
	if result.Run.VideoID == "" {
		t.Error("video id not derived")
	}
}

func TestExecuteExtractionFailureMarksRunFailed(t *testing.T) {
	extr := &fakeExtractor{err: services.Wrap(services.ErrMalformedInput, "normalizing", "poll indexing", "video failed indexing", nil)}
	notifier := &recordingNotifier{}
	runner, store := newTestRunner(t, extr, newFakeRetriever(), newFakeAuditor(), notifier)

	_, err := runner.Execute(context.Background(), RunRequest{VideoURL: "https://example.com/bad.mp4"})
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	runs, listErr := store.List(context.Background())
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(runs) != 1 || runs[0].Status != string(StateFailed) || runs[0].FailureReason != "malformed_input" {
		t.Errorf("runs = %+v", runs[0])
	}
	if len(notifier.failed) != 1 {
		t.Errorf("failed notifications = %v", notifier.failed)
	}
}

func TestExecuteFatalPipelineErrorRecordsReason(t *testing.T) {
	auditor := newFakeAuditor()
	auditor.fatal["chunk-0001"] = services.Wrap(services.ErrModelQuota, "auditing", "chat completion", "402", nil)
	runner, store := newTestRunner(t, nil, newFakeRetriever(), auditor, nil)

	_, err := runner.Execute(context.Background(), RunRequest{VideoID: "vid-1", Transcript: transcript(1)})
	if !errors.Is(err, services.ErrModelQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	runs, listErr := store.List(context.Background())
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if runs[0].Status != string(StateFailed) || runs[0].FailureReason != "model_quota" {
		t.Errorf("run = %+v", runs[0])
	}
	if _, repErr := store.Report(context.Background(), runs[0].RunID); !errors.Is(repErr, runstore.ErrNotFound) {
		t.Errorf("failed run must persist no report, got %v", repErr)
	}
}

func TestExecuteNoEvidenceNoExtractor(t *testing.T) {
	runner, _ := newTestRunner(t, nil, newFakeRetriever(), newFakeAuditor(), nil)

	_, err := runner.Execute(context.Background(), RunRequest{VideoURL: "https://example.com/v.mp4"})
	if err == nil {
		t.Fatal("expected error when no extractor is configured")
	}
}
