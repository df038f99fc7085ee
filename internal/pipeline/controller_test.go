package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"guardian/internal/audit"
	"guardian/internal/evidence"
	"guardian/internal/retrieval"
	"guardian/internal/services"
)

type fakeRetriever struct {
	mu       sync.Mutex
	attempts map[string]int
	fail     map[string]int // chunk ID -> attempts that fail before success
	failErr  error
	fatal    map[string]error
}

func newFakeRetriever() *fakeRetriever {
	return &fakeRetriever{
		attempts: make(map[string]int),
		fail:     make(map[string]int),
		fatal:    make(map[string]error),
	}
}

func (r *fakeRetriever) Retrieve(_ context.Context, chunk evidence.Chunk) ([]retrieval.RuleMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[chunk.ID]++
	if err, ok := r.fatal[chunk.ID]; ok {
		return nil, err
	}
	if r.attempts[chunk.ID] <= r.fail[chunk.ID] {
		if r.failErr != nil {
			return nil, r.failErr
		}
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "down", nil)
	}
	return []retrieval.RuleMatch{{RuleID: "rule-1", RuleText: "r", Score: 0.8, ChunkID: chunk.ID}}, nil
}

type fakeAuditor struct {
	mu         sync.Mutex
	statuses   map[string]audit.Status
	fatal      map[string]error
	fatalAfter int32
	processed  atomic.Int32
	warnings   map[string][]string
}

func newFakeAuditor() *fakeAuditor {
	return &fakeAuditor{
		statuses: make(map[string]audit.Status),
		fatal:    make(map[string]error),
		warnings: make(map[string][]string),
	}
}

func (a *fakeAuditor) Audit(_ context.Context, chunk evidence.Chunk, matches []retrieval.RuleMatch) (audit.Verdict, []string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.fatal[chunk.ID]; ok {
		return audit.Verdict{}, nil, err
	}
	if a.fatalAfter > 0 && a.processed.Load() >= a.fatalAfter {
		return audit.Verdict{}, nil, services.Wrap(services.ErrModelAuth, "auditing", "chat completion", "401", nil)
	}
	a.processed.Add(1)
	status := a.statuses[chunk.ID]
	if status == "" {
		status = audit.StatusCompliant
	}
	cited := []string{}
	for _, m := range matches {
		cited = append(cited, m.RuleID)
	}
	return audit.Verdict{
		ChunkID:      chunk.ID,
		ChunkStart:   chunk.Start,
		Status:       status,
		Rationale:    "test",
		CitedRuleIDs: cited,
	}, a.warnings[chunk.ID], nil
}

func transcript(n int) []evidence.TranscriptSegment {
	segments := make([]evidence.TranscriptSegment, n)
	for i := range segments {
		segments[i] = evidence.TranscriptSegment{
			Start: float64(i * 10),
			End:   float64(i*10 + 5),
			Text:  fmt.Sprintf("segment %d content", i),
		}
	}
	return segments
}

func newTestController(r Retriever, a Auditor, observer func(State)) *Controller {
	return NewController(r, a,
		Options{ChunkConcurrency: 2, RetryMaxAttempts: 3, RetryBackoff: time.Millisecond, PerCallTimeout: time.Second},
		nil,
		WithSleeper(func(time.Duration) {}),
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }),
		WithObserver(observer),
	)
}

func TestRunHappyPath(t *testing.T) {
	var states []State
	ctrl := newTestController(newFakeRetriever(), newFakeAuditor(), func(s State) { states = append(states, s) })

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(3)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OverallStatus != audit.StatusCompliant {
		t.Errorf("overall = %s", rep.OverallStatus)
	}
	if len(rep.Verdicts) != 3 {
		t.Fatalf("verdicts = %d", len(rep.Verdicts))
	}
	want := []State{StatePending, StateNormalizing, StateRetrieving, StateAuditing, StateAggregating, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i, s := range want {
		if states[i] != s {
			t.Errorf("state[%d] = %s, want %s", i, states[i], s)
		}
	}
}

func TestRunOrdersVerdictsByChunkTime(t *testing.T) {
	ctrl := newTestController(newFakeRetriever(), newFakeAuditor(), nil)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(5)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i < len(rep.Verdicts); i++ {
		if rep.Verdicts[i-1].ChunkStart > rep.Verdicts[i].ChunkStart {
			t.Fatalf("verdicts out of order: %v", rep.Verdicts)
		}
	}
}

func TestRunMixedVerdicts(t *testing.T) {
	auditor := newFakeAuditor()
	auditor.statuses["chunk-0001"] = audit.StatusCompliant
	auditor.statuses["chunk-0002"] = audit.StatusViolation
	auditor.statuses["chunk-0003"] = audit.StatusUncertain
	ctrl := newTestController(newFakeRetriever(), auditor, nil)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(3)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OverallStatus != audit.StatusViolation {
		t.Errorf("overall = %s", rep.OverallStatus)
	}
	if rep.ViolationCount != 1 {
		t.Errorf("violation count = %d", rep.ViolationCount)
	}
}

func TestRunRetrievalExhaustionDegradesChunk(t *testing.T) {
	retriever := newFakeRetriever()
	retriever.fail["chunk-0002"] = 10 // never succeeds within 3 attempts
	ctrl := newTestController(retriever, newFakeAuditor(), nil)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(3)})
	if err != nil {
		t.Fatalf("run must complete despite degradation: %v", err)
	}
	if got := retriever.attempts["chunk-0002"]; got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	var degraded *audit.Verdict
	for i := range rep.Verdicts {
		if rep.Verdicts[i].ChunkID == "chunk-0002" {
			degraded = &rep.Verdicts[i]
		}
	}
	if degraded == nil {
		t.Fatal("degraded chunk missing from verdicts")
	}
	if degraded.Status != audit.StatusUncertain || degraded.Rationale != "retrieval_failure" {
		t.Errorf("degraded verdict = %+v", degraded)
	}
	if len(rep.PipelineErrors) != 1 || rep.PipelineErrors[0].ChunkID != "chunk-0002" {
		t.Errorf("pipeline errors = %+v", rep.PipelineErrors)
	}
	if rep.OverallStatus != audit.StatusUncertain {
		t.Errorf("overall = %s", rep.OverallStatus)
	}
}

func TestRunRetryEventuallySucceeds(t *testing.T) {
	retriever := newFakeRetriever()
	retriever.fail["chunk-0001"] = 2 // succeeds on third attempt
	var sleeps []time.Duration
	ctrl := NewController(retriever, newFakeAuditor(),
		Options{ChunkConcurrency: 1, RetryMaxAttempts: 3, RetryBackoff: 100 * time.Millisecond, PerCallTimeout: time.Second},
		nil,
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.PipelineErrors) != 0 {
		t.Errorf("pipeline errors = %+v", rep.PipelineErrors)
	}
	if len(sleeps) != 2 || sleeps[0] != 100*time.Millisecond || sleeps[1] != 200*time.Millisecond {
		t.Errorf("backoff sleeps = %v", sleeps)
	}
}

func TestRunFatalAuthAbortsAndDiscardsVerdicts(t *testing.T) {
	auditor := newFakeAuditor()
	auditor.fatalAfter = 2
	var states []State
	ctrl := newTestController(newFakeRetriever(), auditor, func(s State) { states = append(states, s) })

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(5)})
	if rep != nil {
		t.Fatal("failed run must not return a report")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Reason != "model_auth" || runErr.State != StateAuditing {
		t.Errorf("run error = %+v", runErr)
	}
	if !errors.Is(err, services.ErrModelAuth) {
		t.Errorf("expected auth marker in chain, got %v", err)
	}
	if states[len(states)-1] != StateFailed {
		t.Errorf("final state = %s", states[len(states)-1])
	}
}

func TestRunMalformedInputFails(t *testing.T) {
	ctrl := newTestController(newFakeRetriever(), newFakeAuditor(), nil)

	_, err := ctrl.Run(context.Background(), Input{
		RunID:   "run-1",
		VideoID: "vid-1",
		Transcript: []evidence.TranscriptSegment{
			{Start: -1, End: 2, Text: "bad"},
		},
	})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Reason != "malformed_input" || runErr.State != StateNormalizing {
		t.Errorf("run error = %+v", runErr)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retriever := newFakeRetriever()
	retriever.fail["chunk-0001"] = 10
	retriever.fail["chunk-0002"] = 10
	ctrl := NewController(retriever, newFakeAuditor(),
		Options{ChunkConcurrency: 1, RetryMaxAttempts: 3, RetryBackoff: time.Millisecond, PerCallTimeout: time.Second},
		nil,
		WithSleeper(func(time.Duration) { cancel() }),
	)

	_, err := ctrl.Run(ctx, Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(3)})
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Reason != "cancelled" {
		t.Errorf("reason = %s", runErr.Reason)
	}
}

func TestRunEmptyEvidenceIsCompliant(t *testing.T) {
	ctrl := newTestController(newFakeRetriever(), newFakeAuditor(), nil)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OverallStatus != audit.StatusCompliant || len(rep.Verdicts) != 0 || rep.ViolationCount != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunAuditorWarningsBecomePipelineErrors(t *testing.T) {
	auditor := newFakeAuditor()
	auditor.warnings["chunk-0001"] = []string{"stripped citation of unretrieved rule rule-99"}
	ctrl := newTestController(newFakeRetriever(), auditor, nil)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.PipelineErrors) != 1 || rep.PipelineErrors[0].Stage != string(StateAuditing) {
		t.Errorf("pipeline errors = %+v", rep.PipelineErrors)
	}
}

func TestRunConcurrentChunksAllAudited(t *testing.T) {
	ctrl := NewController(newFakeRetriever(), newFakeAuditor(),
		Options{ChunkConcurrency: 8, RetryMaxAttempts: 3, RetryBackoff: time.Millisecond, PerCallTimeout: time.Second},
		nil,
		WithSleeper(func(time.Duration) {}),
	)

	rep, err := ctrl.Run(context.Background(), Input{RunID: "run-1", VideoID: "vid-1", Transcript: transcript(20)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Verdicts) != 20 {
		t.Fatalf("verdicts = %d", len(rep.Verdicts))
	}
	seen := make(map[string]bool)
	for _, v := range rep.Verdicts {
		if seen[v.ChunkID] {
			t.Errorf("duplicate verdict for %s", v.ChunkID)
		}
		seen[v.ChunkID] = true
	}
}
