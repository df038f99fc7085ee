// Package llm wraps an OpenAI-compatible chat completion API with strict
// JSON responses, transport-level retry with backoff, and classification of
// authentication/quota failures into the pipeline's fatal error markers.
package llm
