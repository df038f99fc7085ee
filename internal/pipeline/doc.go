// Package pipeline drives an audit run through its stages: normalize
// evidence, retrieve rules per chunk, audit per chunk, aggregate the report.
// Retryable per-chunk failures degrade to uncertain verdicts; fatal errors
// abort the run.
package pipeline
