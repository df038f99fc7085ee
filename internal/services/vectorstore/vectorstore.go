package vectorstore

import "context"

// Record is a candidate rule passage returned by a store query.
type Record struct {
	RuleID   string  `json:"rule_id"`
	RuleText string  `json:"rule_text"`
	Score    float64 `json:"score"`
}

// Store is the query surface over the regulatory rule index. Implementations
// return at most k records scored at or above threshold, ordered by
// descending score. The index itself is populated out-of-band.
type Store interface {
	Query(ctx context.Context, vector []float64, k int, threshold float64) ([]Record, error)
}
