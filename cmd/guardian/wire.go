package main

import (
	"fmt"
	"log/slog"
	"time"

	"guardian/internal/audit"
	"guardian/internal/config"
	"guardian/internal/evidence"
	"guardian/internal/notify"
	"guardian/internal/pipeline"
	"guardian/internal/retrieval"
	"guardian/internal/runstore"
	"guardian/internal/services/embedding"
	"guardian/internal/services/extractor"
	"guardian/internal/services/llm"
	"guardian/internal/services/vectorstore"
)

// buildRunner assembles the audit pipeline from configuration: external
// service clients, retriever, auditor, and the runner binding them to the
// run ledger.
func buildRunner(cfg *config.Config, store *runstore.Store, logger *slog.Logger) (*pipeline.Runner, *llm.Client, error) {
	modelClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		MaxTokens:      cfg.LLM.MaxResponseTokens,
	})

	embedder := embedding.NewClient(embedding.Config{
		BaseURL:        cfg.Embedding.BaseURL,
		APIKey:         cfg.Embedding.APIKey,
		Model:          cfg.Embedding.Model,
		TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
	})

	ruleIndex, err := buildVectorStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	retriever := retrieval.NewRetriever(embedder, ruleIndex, retrieval.Options{
		K:         cfg.Pipeline.RetrievalK,
		Threshold: cfg.Pipeline.SimilarityThreshold,
	})
	auditor := audit.NewAuditor(modelClient, audit.Options{
		MaxPromptChars: cfg.Pipeline.MaxPromptChars,
	}, logger)

	var extr pipeline.Extractor
	if cfg.Extractor.BaseURL != "" {
		extr = extractor.NewClient(extractor.Config{
			BaseURL:             cfg.Extractor.BaseURL,
			APIKey:              cfg.Extractor.APIKey,
			PollIntervalSeconds: cfg.Extractor.PollIntervalSeconds,
			TimeoutSeconds:      cfg.Extractor.TimeoutSeconds,
		})
	}

	opts := pipeline.Options{
		ChunkConcurrency: cfg.Pipeline.ChunkConcurrency,
		RetryMaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		RetryBackoff:     time.Duration(cfg.Pipeline.RetryBackoffMS) * time.Millisecond,
		PerCallTimeout:   time.Duration(cfg.Pipeline.PerCallTimeoutSeconds) * time.Second,
		Normalize: evidence.Options{
			MinOCRConfidence:    cfg.Pipeline.MinOCRConfidence,
			DedupeSimilarity:    cfg.Pipeline.DedupeSimilarity,
			DedupeWindowSeconds: cfg.Pipeline.DedupeWindowSeconds,
		},
	}

	runner := pipeline.NewRunner(store, extr, retriever, auditor, notify.NewService(cfg), opts, logger)
	return runner, modelClient, nil
}

func buildVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore.Backend {
	case "local":
		store, err := vectorstore.OpenLocalStore(cfg.VectorStore.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("open local rule index: %w", err)
		}
		return store, nil
	default:
		return vectorstore.NewHTTPStore(vectorstore.HTTPConfig{
			BaseURL:        cfg.VectorStore.BaseURL,
			APIKey:         cfg.VectorStore.APIKey,
			Index:          cfg.VectorStore.Index,
			TimeoutSeconds: cfg.VectorStore.TimeoutSeconds,
		}), nil
	}
}
