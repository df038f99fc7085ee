package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeRulesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

const sampleRules = `rules:
  - rule_id: rule-1
    text: No unverified health claims.
    embedding: [1.0, 0.0]
  - rule_id: rule-2
    text: Disclose paid partnerships.
    embedding: [0.0, 1.0]
  - rule_id: rule-3
    text: No competitor disparagement.
    embedding: [0.7, 0.7]
`

func TestLocalStoreRanksByCosine(t *testing.T) {
	store, err := OpenLocalStore(writeRulesFile(t, sampleRules))
	if err != nil {
		t.Fatalf("OpenLocalStore: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("Len = %d", store.Len())
	}

	matches, err := store.Query(context.Background(), []float64{1, 0}, 3, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].RuleID != "rule-1" {
		t.Errorf("best match = %s", matches[0].RuleID)
	}
	if matches[1].RuleID != "rule-3" {
		t.Errorf("second match = %s", matches[1].RuleID)
	}
	if matches[2].Score != 0 {
		t.Errorf("orthogonal rule score = %f", matches[2].Score)
	}
}

func TestLocalStoreAppliesThresholdAndK(t *testing.T) {
	store, err := OpenLocalStore(writeRulesFile(t, sampleRules))
	if err != nil {
		t.Fatalf("OpenLocalStore: %v", err)
	}

	matches, err := store.Query(context.Background(), []float64{1, 0}, 3, 0.5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("threshold filter kept %d matches", len(matches))
	}

	matches, err = store.Query(context.Background(), []float64{1, 0}, 1, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].RuleID != "rule-1" {
		t.Fatalf("k truncation returned %+v", matches)
	}
}

func TestLocalStoreTieBreaksOnRuleID(t *testing.T) {
	store, err := OpenLocalStore(writeRulesFile(t, `rules:
  - rule_id: rule-b
    text: second
    embedding: [1.0, 0.0]
  - rule_id: rule-a
    text: first
    embedding: [1.0, 0.0]
`))
	if err != nil {
		t.Fatalf("OpenLocalStore: %v", err)
	}
	matches, err := store.Query(context.Background(), []float64{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if matches[0].RuleID != "rule-a" || matches[1].RuleID != "rule-b" {
		t.Errorf("tie break order = %s, %s", matches[0].RuleID, matches[1].RuleID)
	}
}

func TestOpenLocalStoreRejectsMissingFields(t *testing.T) {
	if _, err := OpenLocalStore(writeRulesFile(t, "rules:\n  - text: no id\n    embedding: [1.0]\n")); err == nil {
		t.Fatal("expected error for missing rule_id")
	}
	if _, err := OpenLocalStore(writeRulesFile(t, "rules:\n  - rule_id: rule-1\n    text: no vector\n")); err == nil {
		t.Fatal("expected error for missing embedding")
	}
	if _, err := OpenLocalStore(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
