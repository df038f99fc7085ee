// Package services defines shared utilities consumed by the pipeline stages
// and external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, chunk IDs, and
//     correlation identifiers for logging.
//   - Sentinel error markers plus the Wrap helper that classify failures into
//     the pipeline's retry/degrade/abort policy.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
