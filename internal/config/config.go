// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all tunables for the retrieval and auto-fix pipelines.
type Config struct {
	// Graph backend settings.
	GraphDialect  string // "falkordb" or "neo4j"
	GraphAddr     string // FalkorDB redis address or Neo4j bolt URI.
	GraphName     string // FalkorDB graph key.
	GraphUser     string
	GraphPassword string
	GraphDatabase string // Neo4j database name.
	TenantID      string

	// Embedding provider settings.
	EmbeddingBackend string // "auto", "voyage", "openai", "deepinfra", or "local"
	VoyageAPIKey     string
	OpenAIAPIKey     string
	DeepInfraAPIKey  string
	LocalEmbedURL    string // Local inference server (Ollama-compatible API).

	// LLM settings.
	LLMBackend      string // "openai" or "anthropic"
	AnthropicAPIKey string
	LLMModel        string
	LLMMaxTokens    int

	// Retrieval settings.
	DenseTopK        int
	BM25TopK         int
	FusionAlgorithm  string  // "rrf" or "linear"
	FusionAlpha      float64 // dense weight for linear fusion
	RerankEnabled    bool
	RerankTopK       int
	RerankMultiplier int
	RerankURL        string
	RerankAPIKey     string
	RerankModel      string
	MaxRelationships int
	ContextLines     int
	CacheTTL         time.Duration
	CacheMaxSize     int
	RepoRoot         string // Base path for snippet file reads.

	// Auto-fix settings.
	FixN                   int
	MinTestPassRate        float64
	TestTimeout            time.Duration
	MaxConcurrentSandboxes int
	TestCommand            string
	DecisionLogPath        string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		GraphDialect:  envStr("REPOTOIRE_GRAPH_DIALECT", "falkordb"),
		GraphAddr:     envStr("REPOTOIRE_GRAPH_ADDR", "localhost:6379"),
		GraphName:     envStr("REPOTOIRE_GRAPH_NAME", "repotoire"),
		GraphUser:     envStr("REPOTOIRE_GRAPH_USER", ""),
		GraphPassword: envStr("REPOTOIRE_GRAPH_PASSWORD", ""),
		GraphDatabase: envStr("REPOTOIRE_GRAPH_DATABASE", "neo4j"),
		TenantID:      envStr("REPOTOIRE_TENANT_ID", ""),

		EmbeddingBackend: envStr("REPOTOIRE_EMBEDDING_BACKEND", "auto"),
		VoyageAPIKey:     envStr("VOYAGE_API_KEY", ""),
		OpenAIAPIKey:     envStr("OPENAI_API_KEY", ""),
		DeepInfraAPIKey:  envStr("DEEPINFRA_API_KEY", ""),
		LocalEmbedURL:    envStr("REPOTOIRE_LOCAL_EMBED_URL", "http://localhost:11434"),

		LLMBackend:      envStr("REPOTOIRE_LLM_BACKEND", "anthropic"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		LLMModel:        envStr("REPOTOIRE_LLM_MODEL", ""),
		LLMMaxTokens:    envInt("REPOTOIRE_LLM_MAX_TOKENS", 4096),

		DenseTopK:        envInt("REPOTOIRE_DENSE_TOP_K", 100),
		BM25TopK:         envInt("REPOTOIRE_BM25_TOP_K", 100),
		FusionAlgorithm:  envStr("REPOTOIRE_FUSION", "rrf"),
		FusionAlpha:      envFloat("REPOTOIRE_FUSION_ALPHA", 0.7),
		RerankEnabled:    envBool("REPOTOIRE_RERANK_ENABLED", false),
		RerankTopK:       envInt("REPOTOIRE_RERANK_TOP_K", 10),
		RerankMultiplier: envInt("REPOTOIRE_RERANK_MULTIPLIER", 3),
		RerankURL:        envStr("REPOTOIRE_RERANK_URL", "https://api.voyageai.com/v1/rerank"),
		RerankAPIKey:     envStr("REPOTOIRE_RERANK_API_KEY", ""),
		RerankModel:      envStr("REPOTOIRE_RERANK_MODEL", "rerank-2.5"),
		MaxRelationships: envInt("REPOTOIRE_MAX_RELATIONSHIPS", 20),
		ContextLines:     envInt("REPOTOIRE_CONTEXT_LINES", 5),
		CacheTTL:         envDuration("REPOTOIRE_CACHE_TTL", time.Hour),
		CacheMaxSize:     envInt("REPOTOIRE_CACHE_MAX_SIZE", 1000),
		RepoRoot:         envStr("REPOTOIRE_REPO_ROOT", "."),

		FixN:                   envInt("REPOTOIRE_FIX_N", 3),
		MinTestPassRate:        envFloat("REPOTOIRE_MIN_TEST_PASS_RATE", 0.8),
		TestTimeout:            envDuration("REPOTOIRE_TEST_TIMEOUT", 120*time.Second),
		MaxConcurrentSandboxes: envInt("REPOTOIRE_MAX_CONCURRENT_SANDBOXES", 5),
		TestCommand:            envStr("REPOTOIRE_TEST_COMMAND", ""),
		DecisionLogPath:        envStr("REPOTOIRE_DECISION_LOG", defaultDecisionLogPath()),

		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:  envStr("OTEL_SERVICE_NAME", "repotoire"),

		LogLevel: envStr("REPOTOIRE_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.GraphDialect {
	case "falkordb", "neo4j":
	default:
		return fmt.Errorf("config: unknown graph dialect %q (use \"falkordb\" or \"neo4j\")", c.GraphDialect)
	}
	switch c.FusionAlgorithm {
	case "rrf", "linear":
	default:
		return fmt.Errorf("config: unknown fusion algorithm %q (use \"rrf\" or \"linear\")", c.FusionAlgorithm)
	}
	if c.FusionAlpha < 0 || c.FusionAlpha > 1 {
		return fmt.Errorf("config: REPOTOIRE_FUSION_ALPHA must be in [0, 1]")
	}
	if c.CacheMaxSize <= 0 {
		return fmt.Errorf("config: REPOTOIRE_CACHE_MAX_SIZE must be positive")
	}
	if c.MinTestPassRate < 0 || c.MinTestPassRate > 1 {
		return fmt.Errorf("config: REPOTOIRE_MIN_TEST_PASS_RATE must be in [0, 1]")
	}
	if c.MaxConcurrentSandboxes <= 0 {
		return fmt.Errorf("config: REPOTOIRE_MAX_CONCURRENT_SANDBOXES must be positive")
	}
	return nil
}

// defaultDecisionLogPath resolves ~/.repotoire/decisions.jsonl, falling back
// to a relative path when the home directory is unknown.
func defaultDecisionLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".repotoire", "decisions.jsonl")
	}
	return filepath.Join(home, ".repotoire", "decisions.jsonl")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
