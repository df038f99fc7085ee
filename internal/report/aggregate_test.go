package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/audit"
)

var aggregateNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestAggregateOrdersByStartTime(t *testing.T) {
	verdicts := []audit.Verdict{
		{ChunkID: "chunk-0003", ChunkStart: 20, Status: audit.StatusCompliant},
		{ChunkID: "chunk-0001", ChunkStart: 0, Status: audit.StatusCompliant},
		{ChunkID: "chunk-0002", ChunkStart: 10, Status: audit.StatusCompliant},
	}
	rep := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)

	require.Len(t, rep.Verdicts, 3)
	assert.Equal(t, "chunk-0001", rep.Verdicts[0].ChunkID)
	assert.Equal(t, "chunk-0002", rep.Verdicts[1].ChunkID)
	assert.Equal(t, "chunk-0003", rep.Verdicts[2].ChunkID)
	assert.Equal(t, "chunk-0003", verdicts[0].ChunkID, "input slice must not be reordered")
}

func TestAggregateTieBreaksOnChunkID(t *testing.T) {
	verdicts := []audit.Verdict{
		{ChunkID: "chunk-0002", ChunkStart: 5, Status: audit.StatusCompliant},
		{ChunkID: "chunk-0001", ChunkStart: 5, Status: audit.StatusCompliant},
	}
	rep := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)
	assert.Equal(t, "chunk-0001", rep.Verdicts[0].ChunkID)
}

func TestAggregateViolationDominates(t *testing.T) {
	verdicts := []audit.Verdict{
		{ChunkID: "chunk-0001", Status: audit.StatusCompliant},
		{ChunkID: "chunk-0002", Status: audit.StatusUncertain},
		{ChunkID: "chunk-0003", Status: audit.StatusViolation},
		{ChunkID: "chunk-0004", Status: audit.StatusViolation},
	}
	rep := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)
	assert.Equal(t, audit.StatusViolation, rep.OverallStatus)
	assert.Equal(t, 2, rep.ViolationCount)
}

func TestAggregateUncertainDominatesCompliant(t *testing.T) {
	verdicts := []audit.Verdict{
		{ChunkID: "chunk-0001", Status: audit.StatusCompliant},
		{ChunkID: "chunk-0002", Status: audit.StatusUncertain},
	}
	rep := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)
	assert.Equal(t, audit.StatusUncertain, rep.OverallStatus)
	assert.Equal(t, 0, rep.ViolationCount)
}

func TestAggregateEmptyEvidenceIsCompliant(t *testing.T) {
	rep := Aggregate("vid-1", "run-1", nil, nil, aggregateNow)
	assert.Equal(t, audit.StatusCompliant, rep.OverallStatus)
	assert.Empty(t, rep.Verdicts)
	assert.Equal(t, 0, rep.ViolationCount)
	assert.Equal(t, aggregateNow, rep.GeneratedAt)
}

func TestAggregateCarriesPipelineErrors(t *testing.T) {
	errs := []PipelineError{
		{Stage: "retrieving", ChunkID: "chunk-0002", Message: "retries exhausted"},
	}
	rep := Aggregate("vid-1", "run-1", nil, errs, aggregateNow)
	require.Len(t, rep.PipelineErrors, 1)
	assert.Equal(t, "retrieving", rep.PipelineErrors[0].Stage)
}

func TestAggregateIsDeterministic(t *testing.T) {
	verdicts := []audit.Verdict{
		{ChunkID: "chunk-0002", ChunkStart: 3, Status: audit.StatusUncertain},
		{ChunkID: "chunk-0001", ChunkStart: 1, Status: audit.StatusViolation},
	}
	first := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)
	second := Aggregate("vid-1", "run-1", verdicts, nil, aggregateNow)
	assert.Equal(t, first, second)
}
