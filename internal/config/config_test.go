package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidateWithAPIKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "test"
	cfg.VectorStore.BaseURL = "http://127.0.0.1:9999"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Pipeline.ChunkConcurrency != defaultChunkConcurrency {
		t.Fatalf("unexpected concurrency default: %d", cfg.Pipeline.ChunkConcurrency)
	}
	if cfg.Pipeline.RetryMaxAttempts != defaultRetryMaxAttempts {
		t.Fatalf("unexpected retry default: %d", cfg.Pipeline.RetryMaxAttempts)
	}
}

func TestValidateRequiresLLMKey(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.BaseURL = "http://127.0.0.1:9999"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure without llm.api_key")
	}
	if !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateVectorStoreBackends(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "test"
	cfg.VectorStore.Backend = "local"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected failure: local backend without rules_path")
	}

	cfg.VectorStore.RulesPath = filepath.Join(t.TempDir(), "rules.yaml")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.VectorStore.Backend = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected failure for unknown backend")
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[llm]
api_key = "secret"
model = "demo-model"

[vector_store]
backend = "http"
base_url = "http://127.0.0.1:9999/"

[pipeline]
retrieval_k = 3
similarity_threshold = 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
	if cfg.LLM.Model != "demo-model" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.Pipeline.RetrievalK != 3 {
		t.Fatalf("unexpected retrieval_k: %d", cfg.Pipeline.RetrievalK)
	}
	if cfg.VectorStore.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.VectorStore.BaseURL)
	}
	if cfg.Pipeline.ChunkConcurrency != defaultChunkConcurrency {
		t.Fatalf("expected default concurrency, got %d", cfg.Pipeline.ChunkConcurrency)
	}
}

func TestLLMKeyEnvFallback(t *testing.T) {
	t.Setenv("GUARDIAN_LLM_API_KEY", "env-secret")
	cfg := Default()
	cfg.VectorStore.BaseURL = "http://127.0.0.1:9999"
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.LLM.APIKey != "env-secret" {
		t.Fatalf("expected env fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	t.Setenv("GUARDIAN_LLM_API_KEY", "sample-key")
	cfg, _, _, err := Load(path)
	if err == nil {
		// The sample leaves vector_store.base_url blank, so validation may
		// reject it; tolerate either a validation error or a usable config.
		if cfg.Logging.Format != "console" {
			t.Fatalf("unexpected log format: %s", cfg.Logging.Format)
		}
		return
	}
	if !strings.Contains(err.Error(), "vector_store") {
		t.Fatalf("unexpected error parsing sample config: %v", err)
	}
}
