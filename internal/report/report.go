package report

import (
	"time"

	"guardian/internal/audit"
)

// PipelineError records a non-fatal degradation that occurred while
// producing the report, such as a chunk that exhausted its retries or a
// stripped citation.
type PipelineError struct {
	Stage   string `json:"stage"`
	ChunkID string `json:"chunk_id,omitempty"`
	Message string `json:"message"`
}

// ComplianceReport is the final output of an audit run.
type ComplianceReport struct {
	VideoID        string          `json:"video_id"`
	RunID          string          `json:"run_id"`
	OverallStatus  audit.Status    `json:"overall_status"`
	Verdicts       []audit.Verdict `json:"verdicts"`
	ViolationCount int             `json:"violation_count"`
	GeneratedAt    time.Time       `json:"generated_at"`
	PipelineErrors []PipelineError `json:"pipeline_errors"`
}
