// Package report aggregates per-chunk audit verdicts into the final
// compliance report for a run.
package report
