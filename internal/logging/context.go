package logging

import (
	"context"
	"log/slog"

	"guardian/internal/services"
)

// WithContext decorates the logger with run, stage, chunk, and request
// identifiers carried in ctx. A nil logger yields a no-op logger so callers
// never need to guard.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRunID, runID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		logger = logger.With(String(FieldStage, stage))
	}
	if chunkID, ok := services.ChunkIDFromContext(ctx); ok {
		logger = logger.With(String(FieldChunkID, chunkID))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRequestID, requestID))
	}
	return logger
}
