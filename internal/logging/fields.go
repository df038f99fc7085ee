package logging

// Standardized structured log field names shared across the pipeline.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldRunID     = "run_id"
	FieldStage     = "stage"
	FieldChunkID   = "chunk_id"
	FieldVideoID   = "video_id"
	FieldRequestID = "request_id"
	FieldErrorHint = "error_hint"
	FieldAttempt   = "attempt"
)
