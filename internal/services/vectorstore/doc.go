// Package vectorstore provides clients for querying a compliance rule index
// by embedding vector. Two backends are available: a remote HTTP service and
// a local YAML-backed store for offline use.
package vectorstore
