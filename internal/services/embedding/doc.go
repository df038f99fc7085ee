// Package embedding provides the client for the external embedding service
// used by the retriever to vectorize evidence chunk text.
package embedding
