// Package config defines the engine configuration surface and its loader.
package config

import "github.com/zeroclaw-labs/zeroclaw-sub002/internal/logger"

// Config is the top-level configuration for the memory engine and its
// collaborator surfaces.
type Config struct {
	// Data directory, holds the database and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Database path; defaults to <data_dir>/memory.db
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// Logging configuration
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Embedding provider and cache configuration
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Search ranking configuration
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Document ingestion configuration
	Ingest IngestConfig `json:"ingest" mapstructure:"ingest"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Maintenance scheduling configuration
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Transcript distillation configuration
	Distill DistillConfig `json:"distill" mapstructure:"distill"`
}

// EmbeddingConfig holds embedding provider and cache settings
type EmbeddingConfig struct {
	Provider      string `json:"provider" mapstructure:"provider"` // openai, ollama, disabled
	Model         string `json:"model" mapstructure:"model"`
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	BaseURL       string `json:"base_url" mapstructure:"base_url"`
	Dimensions    int    `json:"dimensions" mapstructure:"dimensions"`
	CacheCapacity int    `json:"cache_capacity" mapstructure:"cache_capacity"`
	BatchSize     int    `json:"batch_size" mapstructure:"batch_size"`
	HotCacheSize  int    `json:"hot_cache_size" mapstructure:"hot_cache_size"`
}

// SearchConfig holds hybrid ranking weights and result caps
type SearchConfig struct {
	VectorWeight  float64 `json:"vector_weight" mapstructure:"vector_weight"`
	KeywordWeight float64 `json:"keyword_weight" mapstructure:"keyword_weight"`
	MaxList       int     `json:"max_list" mapstructure:"max_list"`
}

// IngestConfig holds document ingestion settings
type IngestConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	MaxTokens     int    `json:"max_tokens" mapstructure:"max_tokens"`
	OverlapTokens int    `json:"overlap_tokens" mapstructure:"overlap_tokens"`
}

// GatewayConfig holds gateway server settings
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// MaintenanceConfig holds scheduled maintenance settings
type MaintenanceConfig struct {
	ReindexSchedule string `json:"reindex_schedule" mapstructure:"reindex_schedule"`
	StatsSchedule   string `json:"stats_schedule" mapstructure:"stats_schedule"`
}

// DistillConfig holds transcript distillation settings
type DistillConfig struct {
	Model      string `json:"model" mapstructure:"model"`
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	MaxEntries int    `json:"max_entries" mapstructure:"max_entries"`
}

// DefaultConfig returns a configuration with sane defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Embedding: EmbeddingConfig{
			Provider:      "disabled",
			CacheCapacity: 10000,
			BatchSize:     16,
			HotCacheSize:  2048,
		},
		Search: SearchConfig{
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
			MaxList:       1000,
		},
		Ingest: IngestConfig{
			MaxTokens:     400,
			OverlapTokens: 40,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8372,
		},
		Maintenance: MaintenanceConfig{
			ReindexSchedule: "0 * * * *",
			StatsSchedule:   "*/5 * * * *",
		},
		Distill: DistillConfig{
			MaxEntries: 200,
		},
	}
}
