package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "falkordb", cfg.GraphDialect)
	assert.Equal(t, "auto", cfg.EmbeddingBackend)
	assert.Equal(t, "rrf", cfg.FusionAlgorithm)
	assert.InDelta(t, 0.7, cfg.FusionAlpha, 1e-9)
	assert.Equal(t, 100, cfg.DenseTopK)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheMaxSize)
	assert.Equal(t, 120*time.Second, cfg.TestTimeout)
	assert.Equal(t, 5, cfg.MaxConcurrentSandboxes)
	assert.Contains(t, cfg.DecisionLogPath, "decisions.jsonl")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REPOTOIRE_GRAPH_DIALECT", "neo4j")
	t.Setenv("REPOTOIRE_FUSION", "linear")
	t.Setenv("REPOTOIRE_FUSION_ALPHA", "0.5")
	t.Setenv("REPOTOIRE_CACHE_TTL", "30s")
	t.Setenv("REPOTOIRE_RERANK_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "neo4j", cfg.GraphDialect)
	assert.Equal(t, "linear", cfg.FusionAlgorithm)
	assert.InDelta(t, 0.5, cfg.FusionAlpha, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.RerankEnabled)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Setenv("REPOTOIRE_GRAPH_DIALECT", "dgraph")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REPOTOIRE_GRAPH_DIALECT", "neo4j")
	t.Setenv("REPOTOIRE_FUSION_ALPHA", "1.5")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("REPOTOIRE_FUSION_ALPHA", "0.7")
	t.Setenv("REPOTOIRE_MIN_TEST_PASS_RATE", "2")
	_, err = Load()
	assert.Error(t, err)
}
