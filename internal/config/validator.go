package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the structural contract the loaded configuration must meet.
var configSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"data_dir": map[string]interface{}{"type": "string"},
		"db_path":  map[string]interface{}{"type": "string"},
		"logging": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"level": map[string]interface{}{
					"type": "string",
					"enum": []string{"trace", "debug", "info", "warn", "error", ""},
				},
			},
		},
		"embedding": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"provider": map[string]interface{}{
					"type": "string",
					"enum": []string{"openai", "ollama", "disabled", "none", ""},
				},
				"dimensions":     map[string]interface{}{"type": "integer", "minimum": 0},
				"cache_capacity": map[string]interface{}{"type": "integer", "minimum": 0},
				"batch_size":     map[string]interface{}{"type": "integer", "minimum": 1},
				"hot_cache_size": map[string]interface{}{"type": "integer", "minimum": 0},
			},
		},
		"search": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"vector_weight":  map[string]interface{}{"type": "number", "minimum": 0},
				"keyword_weight": map[string]interface{}{"type": "number", "minimum": 0},
				"max_list":       map[string]interface{}{"type": "integer", "minimum": 1},
			},
		},
		"gateway": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"port": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 65535},
			},
		},
	},
}

// Validate checks cfg structurally against the config schema, then applies
// the semantic rules the schema cannot express.
func Validate(cfg *Config) error {
	if err := validateSchema(cfg); err != nil {
		return err
	}
	return validateSemantics(cfg)
}

func validateSchema(cfg *Config) error {
	// Round-trip through JSON so the schema sees the serialized shape
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(configSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, e := range result.Errors() {
			errors = append(errors, e.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(errors, "; "))
	}
	return nil
}

func validateSemantics(cfg *Config) error {
	if cfg.Search.VectorWeight+cfg.Search.KeywordWeight <= 0 {
		return fmt.Errorf("search weights must sum to a positive value")
	}

	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		return fmt.Errorf("openai embedding provider requires an api key")
	}

	if cfg.Gateway.Enabled && cfg.Gateway.SharedSecret == "" {
		return fmt.Errorf("gateway requires a shared secret when enabled")
	}

	for name, expr := range map[string]string{
		"reindex_schedule": cfg.Maintenance.ReindexSchedule,
		"stats_schedule":   cfg.Maintenance.StatsSchedule,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, expr, err)
		}
	}

	return nil
}
