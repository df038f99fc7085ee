// Package extractor wraps the transcript/OCR extraction service: submit a
// video, poll until indexing finishes, fetch the insight payload.
package extractor
