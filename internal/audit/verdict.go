package audit

// Status is the compliance judgement for a single chunk.
type Status string

const (
	StatusCompliant Status = "compliant"
	StatusViolation Status = "violation"
	StatusUncertain Status = "uncertain"
)

// Valid reports whether s is one of the three defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCompliant, StatusViolation, StatusUncertain:
		return true
	}
	return false
}

// Verdict is the auditor's judgement for one evidence chunk. ChunkStart is
// carried so the aggregator can order verdicts by time without looking the
// chunk up again.
type Verdict struct {
	ChunkID        string   `json:"chunk_id"`
	ChunkStart     float64  `json:"chunk_start"`
	Status         Status   `json:"status"`
	Rationale      string   `json:"rationale"`
	CitedRuleIDs   []string `json:"cited_rule_ids"`
	RawModelOutput string   `json:"raw_model_output,omitempty"`
}
