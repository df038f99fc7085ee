package runstore

import "time"

// Run is one audit run tracked by the ledger. ReportJSON is populated only
// for completed runs; FailureReason only for failed ones.
type Run struct {
	ID            int64     `json:"-"`
	RunID         string    `json:"run_id"`
	VideoID       string    `json:"video_id"`
	VideoURL      string    `json:"video_url,omitempty"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	ReportJSON    string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
