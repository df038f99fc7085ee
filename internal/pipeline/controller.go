package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guardian/internal/audit"
	"guardian/internal/evidence"
	"guardian/internal/logging"
	"guardian/internal/report"
	"guardian/internal/retrieval"
	"guardian/internal/services"
)

const (
	defaultConcurrency    = 4
	defaultRetryAttempts  = 3
	defaultRetryBackoff   = 500 * time.Millisecond
	defaultRetryMaxDelay  = 10 * time.Second
	defaultPerCallTimeout = 30 * time.Second
)

// Retriever finds the rules relevant to a chunk.
type Retriever interface {
	Retrieve(ctx context.Context, chunk evidence.Chunk) ([]retrieval.RuleMatch, error)
}

// Auditor judges a chunk against its retrieved rules.
type Auditor interface {
	Audit(ctx context.Context, chunk evidence.Chunk, matches []retrieval.RuleMatch) (audit.Verdict, []string, error)
}

// Options configure retry, concurrency, and normalization behavior.
type Options struct {
	ChunkConcurrency int
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	PerCallTimeout   time.Duration
	Normalize        evidence.Options
}

func (o Options) withDefaults() Options {
	if o.ChunkConcurrency <= 0 {
		o.ChunkConcurrency = defaultConcurrency
	}
	if o.RetryMaxAttempts <= 0 {
		o.RetryMaxAttempts = defaultRetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.PerCallTimeout <= 0 {
		o.PerCallTimeout = defaultPerCallTimeout
	}
	return o
}

// Input is one audit run request.
type Input struct {
	RunID      string
	VideoID    string
	Transcript []evidence.TranscriptSegment
	OCR        []evidence.OCRDetection
}

// RunError is returned for a failed run. Reason is stable and machine
// readable; "cancelled" indicates run-level cancellation.
type RunError struct {
	State  State
	Reason string
	Err    error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("run failed during %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("run failed during %s: %s: %v", e.State, e.Reason, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Controller drives a run through the audit state machine. Clients are
// long-lived and shared read-only across chunk workers.
type Controller struct {
	retriever Retriever
	auditor   Auditor
	opts      Options
	logger    *slog.Logger

	sleeper  func(time.Duration)
	now      func() time.Time
	observer func(State)
}

// ControllerOption customizes a controller.
type ControllerOption func(*Controller)

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) ControllerOption {
	return func(c *Controller) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver registers a callback invoked on every state transition. The
// callback must be fast; it runs on the controller goroutine.
func WithObserver(observer func(State)) ControllerOption {
	return func(c *Controller) {
		c.observer = observer
	}
}

// NewController constructs a controller. A nil logger disables logging.
func NewController(retriever Retriever, auditor Auditor, opts Options, logger *slog.Logger, ctrlOpts ...ControllerOption) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		retriever: retriever,
		auditor:   auditor,
		opts:      opts.withDefaults(),
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		sleeper:   time.Sleep,
		now:       time.Now,
	}
	for _, opt := range ctrlOpts {
		opt(c)
	}
	return c
}

// chunkOutcome carries one worker's result back to the collection point.
type chunkOutcome struct {
	index    int
	matches  []retrieval.RuleMatch
	verdict  audit.Verdict
	degraded bool
	warnings []string
	err      error
}

// Run executes the full pipeline for one video. A completed run always
// returns a report, possibly with pipeline errors and degraded verdicts. A
// failed run returns a *RunError and no report; verdicts computed before the
// failure are discarded.
func (c *Controller) Run(ctx context.Context, input Input) (*report.ComplianceReport, error) {
	ctx = services.WithRunID(ctx, input.RunID)
	logger := logging.WithContext(ctx, c.logger)

	c.setState(StatePending)
	logger.Info("run started", logging.String(logging.FieldVideoID, input.VideoID))

	// Normalizing
	c.setState(StateNormalizing)
	chunks, err := evidence.Normalize(input.Transcript, input.OCR, c.opts.Normalize)
	if err != nil {
		return nil, c.fail(logger, StateNormalizing, err)
	}
	logger.Info("evidence normalized", logging.Int("chunks", len(chunks)))

	var pipelineErrors []report.PipelineError

	// Retrieving
	c.setState(StateRetrieving)
	matches := make([][]retrieval.RuleMatch, len(chunks))
	degraded := make([]bool, len(chunks))
	outcomes, err := c.runPhase(ctx, chunks, nil, c.retrieveChunk)
	if err != nil {
		return nil, c.fail(logger, StateRetrieving, err)
	}
	for _, out := range outcomes {
		if out.degraded {
			degraded[out.index] = true
			pipelineErrors = append(pipelineErrors, report.PipelineError{
				Stage:   string(StateRetrieving),
				ChunkID: chunks[out.index].ID,
				Message: out.warnings[0],
			})
			continue
		}
		matches[out.index] = out.matches
	}

	// Auditing
	c.setState(StateAuditing)
	verdicts := make([]audit.Verdict, len(chunks))
	for i, chunk := range chunks {
		if degraded[i] {
			verdicts[i] = audit.Verdict{
				ChunkID:      chunk.ID,
				ChunkStart:   chunk.Start,
				Status:       audit.StatusUncertain,
				Rationale:    "retrieval_failure",
				CitedRuleIDs: []string{},
			}
		}
	}
	outcomes, err = c.runPhase(ctx, chunks, degraded, func(ctx context.Context, index int, chunk evidence.Chunk) chunkOutcome {
		return c.auditChunk(ctx, index, chunk, matches[index])
	})
	if err != nil {
		return nil, c.fail(logger, StateAuditing, err)
	}
	for _, out := range outcomes {
		chunk := chunks[out.index]
		for _, warning := range out.warnings {
			pipelineErrors = append(pipelineErrors, report.PipelineError{
				Stage:   string(StateAuditing),
				ChunkID: chunk.ID,
				Message: warning,
			})
		}
		if out.degraded {
			verdicts[out.index] = audit.Verdict{
				ChunkID:      chunk.ID,
				ChunkStart:   chunk.Start,
				Status:       audit.StatusUncertain,
				Rationale:    "audit_failure",
				CitedRuleIDs: []string{},
			}
			continue
		}
		verdicts[out.index] = out.verdict
	}

	// Aggregating
	c.setState(StateAggregating)
	result := report.Aggregate(input.VideoID, input.RunID, verdicts, pipelineErrors, c.now())

	c.setState(StateCompleted)
	logger.Info("run completed",
		logging.String("overall_status", string(result.OverallStatus)),
		logging.Int("violations", result.ViolationCount),
		logging.Int("pipeline_errors", len(result.PipelineErrors)))
	return &result, nil
}

func (c *Controller) setState(state State) {
	if c.observer != nil {
		c.observer(state)
	}
}

func (c *Controller) fail(logger *slog.Logger, state State, err error) error {
	reason := failureReason(err)
	c.setState(StateFailed)
	logger.Error("run failed",
		logging.String(logging.FieldStage, string(state)),
		logging.String("reason", reason),
		logging.Error(err))
	return &RunError{State: state, Reason: reason, Err: err}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, services.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, services.ErrModelAuth):
		return "model_auth"
	case errors.Is(err, services.ErrModelQuota):
		return "model_quota"
	default:
		return "internal"
	}
}

// phaseFn processes one chunk and reports its outcome.
type phaseFn func(ctx context.Context, index int, chunk evidence.Chunk) chunkOutcome

// runPhase fans chunks out to a bounded worker pool and collects outcomes on
// a single-consumer channel. The skip mask excludes chunks already degraded
// by an earlier phase. The first fatal outcome cancels remaining work and is
// returned; degraded outcomes are collected, never fatal.
func (c *Controller) runPhase(ctx context.Context, chunks []evidence.Chunk, skip []bool, fn phaseFn) ([]chunkOutcome, error) {
	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan chunkOutcome)

	var wg sync.WaitGroup
	workers := c.opts.ChunkConcurrency
	if workers > len(chunks) && len(chunks) > 0 {
		workers = len(chunks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				select {
				case results <- fn(phaseCtx, index, chunks[index]):
				case <-phaseCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range chunks {
			if skip != nil && skip[i] {
				continue
			}
			select {
			case jobs <- i:
			case <-phaseCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := 0
	for i := range chunks {
		if skip == nil || !skip[i] {
			pending++
		}
	}

	var outcomes []chunkOutcome
	var fatal error
	for pending > 0 {
		out, ok := <-results
		if !ok {
			break
		}
		pending--
		if out.err != nil {
			if fatal == nil {
				fatal = out.err
				cancel()
			}
			continue
		}
		outcomes = append(outcomes, out)
	}
	cancel()
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (c *Controller) retrieveChunk(ctx context.Context, index int, chunk evidence.Chunk) chunkOutcome {
	ctx = services.WithChunkID(ctx, chunk.ID)
	logger := logging.WithContext(ctx, c.logger)

	var matches []retrieval.RuleMatch
	err := c.withRetry(ctx, logger, "retrieve rules", func(callCtx context.Context) error {
		var callErr error
		matches, callErr = c.retriever.Retrieve(callCtx, chunk)
		return callErr
	})
	if err != nil {
		if services.IsFatal(err) {
			return chunkOutcome{index: index, err: err}
		}
		return chunkOutcome{
			index:    index,
			degraded: true,
			warnings: []string{fmt.Sprintf("retrieval retries exhausted: %v", err)},
		}
	}
	return chunkOutcome{index: index, matches: matches}
}

func (c *Controller) auditChunk(ctx context.Context, index int, chunk evidence.Chunk, matches []retrieval.RuleMatch) chunkOutcome {
	ctx = services.WithChunkID(ctx, chunk.ID)
	logger := logging.WithContext(ctx, c.logger)

	var verdict audit.Verdict
	var warnings []string
	err := c.withRetry(ctx, logger, "audit chunk", func(callCtx context.Context) error {
		var callErr error
		verdict, warnings, callErr = c.auditor.Audit(callCtx, chunk, matches)
		return callErr
	})
	if err != nil {
		if services.IsFatal(err) {
			return chunkOutcome{index: index, err: err}
		}
		return chunkOutcome{
			index:    index,
			degraded: true,
			warnings: []string{fmt.Sprintf("audit retries exhausted: %v", err)},
		}
	}
	return chunkOutcome{index: index, verdict: verdict, warnings: warnings}
}

// withRetry runs fn with a per-call timeout and exponential backoff. A
// timeout counts as one attempt. Fatal errors and run cancellation return
// immediately; any other error after the final attempt is returned to the
// caller for degradation.
func (c *Controller) withRetry(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.RetryMaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.PerCallTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if services.IsFatal(err) || !services.IsRetryable(err) {
			return err
		}
		if attempt == c.opts.RetryMaxAttempts {
			break
		}
		delay := c.backoffDelay(attempt)
		logger.Warn(op+" failed, retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		c.sleeper(delay)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return lastErr
}

func (c *Controller) backoffDelay(attempt int) time.Duration {
	delay := c.opts.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= defaultRetryMaxDelay {
			return defaultRetryMaxDelay
		}
	}
	return delay
}
