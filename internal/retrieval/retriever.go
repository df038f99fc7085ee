package retrieval

import (
	"context"
	"sort"

	"guardian/internal/evidence"
	"guardian/internal/services"
	"guardian/internal/services/vectorstore"
)

const (
	defaultK         = 5
	defaultThreshold = 0.35
)

// RuleMatch is one compliance rule retrieved for a chunk, carrying the
// similarity score reported by the vector store.
type RuleMatch struct {
	RuleID   string  `json:"rule_id"`
	RuleText string  `json:"rule_text"`
	Score    float64 `json:"score"`
	ChunkID  string  `json:"chunk_id"`
}

// Embedder converts chunk text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Options tune how many matches are returned and the minimum score kept.
type Options struct {
	K         int
	Threshold float64
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = defaultK
	}
	if o.Threshold <= 0 {
		o.Threshold = defaultThreshold
	}
	return o
}

// Retriever pairs an embedder with a vector store to find the rules relevant
// to a chunk.
type Retriever struct {
	embedder Embedder
	store    vectorstore.Store
	opts     Options
}

// NewRetriever constructs a retriever. Zero option fields fall back to
// defaults.
func NewRetriever(embedder Embedder, store vectorstore.Store, opts Options) *Retriever {
	return &Retriever{embedder: embedder, store: store, opts: opts.withDefaults()}
}

// Retrieve embeds the chunk text and queries the rule index. The result is
// sorted by descending score with ties broken by ascending rule ID, holds at
// most K matches, and is never padded when fewer rules clear the threshold.
// An empty result is a valid outcome, not an error.
func (r *Retriever) Retrieve(ctx context.Context, chunk evidence.Chunk) ([]RuleMatch, error) {
	vector, err := r.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, services.Wrap(services.ErrEmbedding, "retrieving", "embed chunk", "embedder returned empty vector", nil)
	}

	records, err := r.store.Query(ctx, vector, r.opts.K, r.opts.Threshold)
	if err != nil {
		return nil, err
	}

	matches := make([]RuleMatch, 0, len(records))
	for _, rec := range records {
		if rec.Score < r.opts.Threshold {
			continue
		}
		matches = append(matches, RuleMatch{
			RuleID:   rec.RuleID,
			RuleText: rec.RuleText,
			Score:    rec.Score,
			ChunkID:  chunk.ID,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].RuleID < matches[j].RuleID
	})
	if len(matches) > r.opts.K {
		matches = matches[:r.opts.K]
	}
	return matches, nil
}
