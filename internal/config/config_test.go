package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "disabled", cfg.Embedding.Provider)
	assert.Equal(t, 10000, cfg.Embedding.CacheCapacity)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 2048, cfg.Embedding.HotCacheSize)

	assert.InDelta(t, 0.7, cfg.Search.VectorWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Search.KeywordWeight, 1e-9)
	assert.Equal(t, 1000, cfg.Search.MaxList)

	assert.Equal(t, 400, cfg.Ingest.MaxTokens)
	assert.Equal(t, 40, cfg.Ingest.OverlapTokens)

	assert.Equal(t, 8372, cfg.Gateway.Port)
	assert.False(t, cfg.Gateway.Enabled)

	assert.Equal(t, "0 * * * *", cfg.Maintenance.ReindexSchedule)
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}
