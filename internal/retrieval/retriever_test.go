package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/evidence"
	"guardian/internal/services"
	"guardian/internal/services/vectorstore"
)

type stubEmbedder struct {
	vector []float64
	err    error
	texts  []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.texts = append(s.texts, text)
	return s.vector, s.err
}

type stubStore struct {
	records []vectorstore.Record
	err     error
	gotK    int
	gotThr  float64
}

func (s *stubStore) Query(_ context.Context, _ []float64, k int, threshold float64) ([]vectorstore.Record, error) {
	s.gotK = k
	s.gotThr = threshold
	return s.records, s.err
}

func testChunk() evidence.Chunk {
	return evidence.Chunk{ID: "chunk-0001", Start: 0, End: 4, Source: evidence.SourceTranscript, Text: "miracle cure guaranteed", Confidence: 1}
}

func TestRetrieveSortsAndTruncates(t *testing.T) {
	store := &stubStore{records: []vectorstore.Record{
		{RuleID: "rule-3", RuleText: "c", Score: 0.55},
		{RuleID: "rule-1", RuleText: "a", Score: 0.9},
		{RuleID: "rule-4", RuleText: "d", Score: 0.55},
		{RuleID: "rule-2", RuleText: "b", Score: 0.7},
	}}
	r := NewRetriever(&stubEmbedder{vector: []float64{0.1}}, store, Options{K: 3, Threshold: 0.5})

	matches, err := r.Retrieve(context.Background(), testChunk())
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "rule-1", matches[0].RuleID)
	assert.Equal(t, "rule-2", matches[1].RuleID)
	assert.Equal(t, "rule-3", matches[2].RuleID, "equal scores break ties by ascending rule id")
	for _, m := range matches {
		assert.Equal(t, "chunk-0001", m.ChunkID)
	}
	assert.Equal(t, 3, store.gotK)
	assert.Equal(t, 0.5, store.gotThr)
}

func TestRetrieveFiltersBelowThreshold(t *testing.T) {
	store := &stubStore{records: []vectorstore.Record{
		{RuleID: "rule-1", Score: 0.9},
		{RuleID: "rule-2", Score: 0.2},
	}}
	r := NewRetriever(&stubEmbedder{vector: []float64{0.1}}, store, Options{K: 5, Threshold: 0.5})

	matches, err := r.Retrieve(context.Background(), testChunk())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "rule-1", matches[0].RuleID)
}

func TestRetrieveEmptyResultIsNotError(t *testing.T) {
	r := NewRetriever(&stubEmbedder{vector: []float64{0.1}}, &stubStore{}, Options{})

	matches, err := r.Retrieve(context.Background(), testChunk())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRetrievePropagatesEmbeddingFailure(t *testing.T) {
	embErr := services.Wrap(services.ErrEmbedding, "retrieving", "embed chunk", "boom", nil)
	r := NewRetriever(&stubEmbedder{err: embErr}, &stubStore{}, Options{})

	_, err := r.Retrieve(context.Background(), testChunk())
	require.ErrorIs(t, err, services.ErrEmbedding)
}

func TestRetrieveEmptyVectorIsEmbeddingFailure(t *testing.T) {
	r := NewRetriever(&stubEmbedder{}, &stubStore{}, Options{})

	_, err := r.Retrieve(context.Background(), testChunk())
	require.ErrorIs(t, err, services.ErrEmbedding)
}

func TestRetrievePropagatesStoreFailure(t *testing.T) {
	storeErr := services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query index", "down", nil)
	r := NewRetriever(&stubEmbedder{vector: []float64{0.1}}, &stubStore{err: storeErr}, Options{})

	_, err := r.Retrieve(context.Background(), testChunk())
	require.ErrorIs(t, err, services.ErrRetrievalUnavailable)
}
