package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify pipeline failures. Stage code wraps
// errors with one of these so the controller can decide between per-chunk
// degradation and a run-level abort.
var (
	// ErrMalformedInput marks an input contract violation. Fatal, never retried.
	ErrMalformedInput = errors.New("malformed input")
	// ErrRetrievalUnavailable marks vector store connectivity failures. Retryable per chunk.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbedding marks embedding service failures. Retryable per chunk.
	ErrEmbedding = errors.New("embedding error")
	// ErrModelParse marks an unparseable model response. Retryable once.
	ErrModelParse = errors.New("model parse error")
	// ErrModelAuth marks authentication failures from the model service. Fatal.
	ErrModelAuth = errors.New("model auth error")
	// ErrModelQuota marks quota exhaustion at the model service. Fatal.
	ErrModelQuota = errors.New("model quota error")
	// ErrTransient marks failures with no more specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the whole run rather than degrade a
// single chunk. Cancellation counts as fatal; the controller records the
// reason separately.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrModelAuth) ||
		errors.Is(err, ErrModelQuota) ||
		errors.Is(err, context.Canceled)
}

// IsRetryable reports whether err may be retried within the per-chunk attempt
// budget. Fatal errors are never retryable; a timeout counts as one attempt.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrRetrievalUnavailable) ||
		errors.Is(err, ErrEmbedding) ||
		errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
