// Package audit judges evidence chunks against retrieved compliance rules
// via a strict-JSON model call and emits per-chunk verdicts.
package audit
