// Package retrieval finds the compliance rules relevant to an evidence chunk
// by embedding its text and querying a vector store.
package retrieval
