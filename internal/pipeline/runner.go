package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"guardian/internal/evidence"
	"guardian/internal/logging"
	"guardian/internal/report"
	"guardian/internal/runstore"
	"guardian/internal/services/extractor"
)

// Extractor acquires transcript and OCR evidence for a video URL.
type Extractor interface {
	Extract(ctx context.Context, videoURL, name string) (*extractor.Insights, error)
}

// Notifier receives run lifecycle events.
type Notifier interface {
	NotifyRunStarted(ctx context.Context, videoID, runID string) error
	NotifyRunCompleted(ctx context.Context, videoID, runID, overallStatus string, violations int) error
	NotifyRunFailed(ctx context.Context, videoID, runID, reason string) error
}

// RunRequest describes one audit to execute. Transcript and OCR may be
// supplied directly; otherwise they are fetched via the extractor using
// VideoURL.
type RunRequest struct {
	VideoID    string
	VideoURL   string
	Transcript []evidence.TranscriptSegment
	OCR        []evidence.OCRDetection
}

// RunResult is a finished run with its ledger entry and report.
type RunResult struct {
	Run    *runstore.Run
	Report *report.ComplianceReport
}

// Runner executes audit runs end to end: ledger entry, evidence acquisition,
// pipeline, report persistence, notifications.
type Runner struct {
	store     *runstore.Store
	extr      Extractor
	retriever Retriever
	auditor   Auditor
	notifier  Notifier
	opts      Options
	logger    *slog.Logger
	ctrlOpts  []ControllerOption
}

// NewRunner wires a runner. The extractor and notifier may be nil; a nil
// extractor limits requests to inline evidence.
func NewRunner(store *runstore.Store, extr Extractor, retriever Retriever, auditor Auditor, notifier Notifier, opts Options, logger *slog.Logger, ctrlOpts ...ControllerOption) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		store:     store,
		extr:      extr,
		retriever: retriever,
		auditor:   auditor,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
		ctrlOpts:  ctrlOpts,
	}
}

// Execute runs one audit synchronously. A degraded-but-completed run returns
// a result and no error; a failed run records the failure reason in the
// ledger and returns the *RunError.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.NewString()
	videoID := req.VideoID
	if videoID == "" {
		videoID = "vid_" + runID[:8]
	}

	if _, err := r.store.Create(ctx, runID, videoID, req.VideoURL); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	r.notify(func(n Notifier) error { return n.NotifyRunStarted(ctx, videoID, runID) })

	transcript, ocr := req.Transcript, req.OCR
	if len(transcript) == 0 && len(ocr) == 0 && req.VideoURL != "" {
		if r.extr == nil {
			err := errors.New("no evidence supplied and no extraction service configured")
			r.recordFailure(videoID, runID, "malformed_input", err)
			return nil, err
		}
		insights, err := r.extr.Extract(ctx, req.VideoURL, videoID)
		if err != nil {
			r.recordFailure(videoID, runID, failureReason(err), err)
			return nil, err
		}
		transcript, ocr = insights.Transcript, insights.OCR
	}

	controller := NewController(r.retriever, r.auditor, r.opts, r.logger, append(r.ctrlOpts,
		WithObserver(func(state State) {
			if state == StateFailed {
				return // failure reason recorded below
			}
			if err := r.updateStatus(runID, string(state), ""); err != nil {
				r.logger.Warn("run status update failed",
					logging.String(logging.FieldRunID, runID),
					logging.Error(err))
			}
		}))...)

	rep, err := controller.Run(ctx, Input{
		RunID:      runID,
		VideoID:    videoID,
		Transcript: transcript,
		OCR:        ocr,
	})
	if err != nil {
		var runErr *RunError
		reason := "internal"
		if errors.As(err, &runErr) {
			reason = runErr.Reason
		}
		r.recordFailure(videoID, runID, reason, err)
		return nil, err
	}

	saveCtx, cancel := storeContext()
	defer cancel()
	if err := r.store.SaveReport(saveCtx, runID, rep); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}
	r.notify(func(n Notifier) error {
		return n.NotifyRunCompleted(ctx, videoID, runID, string(rep.OverallStatus), rep.ViolationCount)
	})

	run, err := r.store.GetByRunID(saveCtx, runID)
	if err != nil {
		return nil, fmt.Errorf("reload run: %w", err)
	}
	return &RunResult{Run: run, Report: rep}, nil
}

// recordFailure writes the terminal failed status outside the (possibly
// cancelled) run context.
func (r *Runner) recordFailure(videoID, runID, reason string, cause error) {
	if err := r.updateStatus(runID, string(StateFailed), reason); err != nil {
		r.logger.Warn("failed-run status update failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err))
	}
	r.logger.Error("audit run failed",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldVideoID, videoID),
		logging.String("reason", reason),
		logging.Error(cause))
	r.notify(func(n Notifier) error {
		notifyCtx, cancel := storeContext()
		defer cancel()
		return n.NotifyRunFailed(notifyCtx, videoID, runID, reason)
	})
}

func (r *Runner) updateStatus(runID, status, reason string) error {
	ctx, cancel := storeContext()
	defer cancel()
	return r.store.UpdateStatus(ctx, runID, status, reason)
}

func (r *Runner) notify(fn func(Notifier) error) {
	if r.notifier == nil {
		return
	}
	if err := fn(r.notifier); err != nil {
		r.logger.Warn("notification failed", logging.Error(err))
	}
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
