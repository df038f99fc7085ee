// Package evidence defines the evidence chunk model and the normalizer that
// merges raw transcript segments and OCR detections into a single
// time-ordered, deduplicated stream for the audit pipeline.
package evidence
