package report

import (
	"sort"
	"time"

	"guardian/internal/audit"
)

// Aggregate merges per-chunk verdicts into a deterministic report. Verdicts
// are ordered by chunk start time with ties broken by chunk ID, and the
// overall status is the worst verdict present: violation over uncertain over
// compliant. A run with no evidence at all is compliant with zero verdicts.
// Aggregate does not mutate its inputs.
func Aggregate(videoID, runID string, verdicts []audit.Verdict, pipelineErrors []PipelineError, now time.Time) ComplianceReport {
	ordered := make([]audit.Verdict, len(verdicts))
	copy(ordered, verdicts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ChunkStart != ordered[j].ChunkStart {
			return ordered[i].ChunkStart < ordered[j].ChunkStart
		}
		return ordered[i].ChunkID < ordered[j].ChunkID
	})

	overall := audit.StatusCompliant
	violations := 0
	for _, v := range ordered {
		switch v.Status {
		case audit.StatusViolation:
			violations++
			overall = audit.StatusViolation
		case audit.StatusUncertain:
			if overall != audit.StatusViolation {
				overall = audit.StatusUncertain
			}
		}
	}

	errs := make([]PipelineError, len(pipelineErrors))
	copy(errs, pipelineErrors)

	return ComplianceReport{
		VideoID:        videoID,
		RunID:          runID,
		OverallStatus:  overall,
		Verdicts:       ordered,
		ViolationCount: violations,
		GeneratedAt:    now.UTC(),
		PipelineErrors: errs,
	}
}
