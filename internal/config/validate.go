package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateVectorStore(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/guardian/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set GUARDIAN_LLM_API_KEY env var or edit %s (create with 'guardian config init')", defaultPath)
	}
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set")
	}
	return nil
}

func (c *Config) validateVectorStore() error {
	switch c.VectorStore.Backend {
	case "http":
		if c.VectorStore.BaseURL == "" {
			return errors.New("vector_store.base_url must be set when vector_store.backend is \"http\"")
		}
	case "local":
		if c.VectorStore.RulesPath == "" {
			return errors.New("vector_store.rules_path must be set when vector_store.backend is \"local\"")
		}
	default:
		return fmt.Errorf("vector_store.backend must be \"http\" or \"local\", got %q", c.VectorStore.Backend)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold > 1 {
		return errors.New("pipeline.similarity_threshold must be between 0 and 1")
	}
	if c.Pipeline.MinOCRConfidence < 0 || c.Pipeline.MinOCRConfidence > 1 {
		return errors.New("pipeline.min_ocr_confidence must be between 0 and 1")
	}
	if c.Pipeline.DedupeSimilarity < 0 || c.Pipeline.DedupeSimilarity > 1 {
		return errors.New("pipeline.dedupe_similarity must be between 0 and 1")
	}
	return nil
}
