package config

const (
	defaultDataDir = "~/.local/share/guardian"
	defaultLogDir  = "~/.local/share/guardian/logs"
	defaultAPIBind = "127.0.0.1:7910"

	defaultExtractorPollInterval = 15
	defaultExtractorTimeout      = 60

	defaultEmbeddingModel   = "text-embedding-3-small"
	defaultEmbeddingTimeout = 30

	defaultVectorStoreBackend = "http"
	defaultVectorStoreTimeout = 30

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds = 60
	defaultLLMMaxTokens      = 1024

	defaultChunkConcurrency    = 4
	defaultRetryMaxAttempts    = 3
	defaultRetryBackoffMS      = 500
	defaultRetrievalK          = 5
	defaultSimilarityThreshold = 0.35
	defaultMinOCRConfidence    = 0.5
	defaultDedupeSimilarity    = 0.9
	defaultDedupeWindowSeconds = 2.0
	defaultPerCallTimeout      = 30
	defaultMaxPromptChars      = 12000

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Extractor: Extractor{
			PollIntervalSeconds: defaultExtractorPollInterval,
			TimeoutSeconds:      defaultExtractorTimeout,
		},
		Embedding: Embedding{
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		VectorStore: VectorStore{
			Backend:        defaultVectorStoreBackend,
			TimeoutSeconds: defaultVectorStoreTimeout,
		},
		LLM: LLM{
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Title:             "Guardian Compliance Auditor",
			TimeoutSeconds:    defaultLLMTimeoutSeconds,
			MaxResponseTokens: defaultLLMMaxTokens,
		},
		Pipeline: Pipeline{
			ChunkConcurrency:      defaultChunkConcurrency,
			RetryMaxAttempts:      defaultRetryMaxAttempts,
			RetryBackoffMS:        defaultRetryBackoffMS,
			RetrievalK:            defaultRetrievalK,
			SimilarityThreshold:   defaultSimilarityThreshold,
			MinOCRConfidence:      defaultMinOCRConfidence,
			DedupeSimilarity:      defaultDedupeSimilarity,
			DedupeWindowSeconds:   defaultDedupeWindowSeconds,
			PerCallTimeoutSeconds: defaultPerCallTimeout,
			MaxPromptChars:        defaultMaxPromptChars,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
