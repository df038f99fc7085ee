package vectorstore

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"guardian/internal/services"
)

// localRule is one entry in the on-disk rules file. Embeddings are
// precomputed by the out-of-band index build, matching the dimensionality of
// the configured embedding model.
type localRule struct {
	RuleID    string    `yaml:"rule_id"`
	Text      string    `yaml:"text"`
	Embedding []float64 `yaml:"embedding"`
}

type rulesFile struct {
	Rules []localRule `yaml:"rules"`
}

// LocalStore ranks a YAML rules file by cosine similarity. It exists for
// offline operation and tests; production deployments use the HTTP store.
type LocalStore struct {
	rules []localRule
}

// OpenLocalStore loads and validates the rules file at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var parsed rulesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	for i, rule := range parsed.Rules {
		if rule.RuleID == "" {
			return nil, fmt.Errorf("rules file %s: rule %d missing rule_id", path, i)
		}
		if len(rule.Embedding) == 0 {
			return nil, fmt.Errorf("rules file %s: rule %s missing embedding", path, rule.RuleID)
		}
	}
	return &LocalStore{rules: parsed.Rules}, nil
}

// Len returns the number of loaded rules.
func (s *LocalStore) Len() int {
	return len(s.rules)
}

// Query ranks the loaded rules against the query vector.
func (s *LocalStore) Query(ctx context.Context, vector []float64, k int, threshold float64) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, services.Wrap(services.ErrRetrievalUnavailable, "retrieving", "query local index", "empty query vector", nil)
	}

	matches := make([]Record, 0, len(s.rules))
	for _, rule := range s.rules {
		score := cosineSimilarity(vector, rule.Embedding)
		if score < threshold {
			continue
		}
		matches = append(matches, Record{RuleID: rule.RuleID, RuleText: rule.Text, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].RuleID < matches[j].RuleID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// cosineSimilarity returns 0 for mismatched dimensions or zero-norm vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
