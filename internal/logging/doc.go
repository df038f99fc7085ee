// Package logging constructs the application's slog loggers and provides
// attribute helpers plus context-aware logger decoration. Two output formats
// are supported: a compact single-line console format and JSON.
package logging
