// Package config loads, normalizes, and validates Guardian's TOML
// configuration. Defaults live in defaults.go; normalize.go expands paths and
// applies env-var fallbacks for secrets; validate.go rejects unusable values.
package config
