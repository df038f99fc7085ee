package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtractor()
	c.normalizeEmbedding()
	if err := c.normalizeVectorStore(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeExtractor() {
	c.Extractor.BaseURL = strings.TrimRight(strings.TrimSpace(c.Extractor.BaseURL), "/")
	c.Extractor.APIKey = strings.TrimSpace(c.Extractor.APIKey)
	if c.Extractor.APIKey == "" {
		if value, ok := os.LookupEnv("GUARDIAN_EXTRACTOR_API_KEY"); ok {
			c.Extractor.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Extractor.PollIntervalSeconds <= 0 {
		c.Extractor.PollIntervalSeconds = defaultExtractorPollInterval
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		c.Extractor.TimeoutSeconds = defaultExtractorTimeout
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		if value, ok := os.LookupEnv("GUARDIAN_EMBEDDING_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		}
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeout
	}
}

func (c *Config) normalizeVectorStore() error {
	c.VectorStore.Backend = strings.ToLower(strings.TrimSpace(c.VectorStore.Backend))
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = defaultVectorStoreBackend
	}
	c.VectorStore.BaseURL = strings.TrimRight(strings.TrimSpace(c.VectorStore.BaseURL), "/")
	c.VectorStore.APIKey = strings.TrimSpace(c.VectorStore.APIKey)
	if c.VectorStore.APIKey == "" {
		if value, ok := os.LookupEnv("GUARDIAN_VECTOR_STORE_API_KEY"); ok {
			c.VectorStore.APIKey = strings.TrimSpace(value)
		}
	}
	c.VectorStore.Index = strings.TrimSpace(c.VectorStore.Index)
	if strings.TrimSpace(c.VectorStore.RulesPath) != "" {
		expanded, err := expandPath(c.VectorStore.RulesPath)
		if err != nil {
			return fmt.Errorf("vector_store.rules_path: %w", err)
		}
		c.VectorStore.RulesPath = expanded
	}
	if c.VectorStore.TimeoutSeconds <= 0 {
		c.VectorStore.TimeoutSeconds = defaultVectorStoreTimeout
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxResponseTokens <= 0 {
		c.LLM.MaxResponseTokens = defaultLLMMaxTokens
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("GUARDIAN_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ChunkConcurrency <= 0 {
		c.Pipeline.ChunkConcurrency = defaultChunkConcurrency
	}
	if c.Pipeline.RetryMaxAttempts <= 0 {
		c.Pipeline.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Pipeline.RetryBackoffMS <= 0 {
		c.Pipeline.RetryBackoffMS = defaultRetryBackoffMS
	}
	if c.Pipeline.RetrievalK <= 0 {
		c.Pipeline.RetrievalK = defaultRetrievalK
	}
	if c.Pipeline.SimilarityThreshold <= 0 {
		c.Pipeline.SimilarityThreshold = defaultSimilarityThreshold
	}
	if c.Pipeline.MinOCRConfidence <= 0 {
		c.Pipeline.MinOCRConfidence = defaultMinOCRConfidence
	}
	if c.Pipeline.DedupeSimilarity <= 0 {
		c.Pipeline.DedupeSimilarity = defaultDedupeSimilarity
	}
	if c.Pipeline.DedupeWindowSeconds <= 0 {
		c.Pipeline.DedupeWindowSeconds = defaultDedupeWindowSeconds
	}
	if c.Pipeline.PerCallTimeoutSeconds <= 0 {
		c.Pipeline.PerCallTimeoutSeconds = defaultPerCallTimeout
	}
	if c.Pipeline.MaxPromptChars <= 0 {
		c.Pipeline.MaxPromptChars = defaultMaxPromptChars
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
