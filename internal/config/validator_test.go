package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "ollama without key is valid",
			mutate: func(c *Config) {
				c.Embedding.Provider = "ollama"
			},
		},
		{
			name: "openai with key is valid",
			mutate: func(c *Config) {
				c.Embedding.Provider = "openai"
				c.Embedding.APIKey = "sk-test"
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Embedding.Provider = "openai"
			},
			wantErr: true,
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Embedding.Provider = "espresso"
			},
			wantErr: true,
		},
		{
			name: "negative vector weight",
			mutate: func(c *Config) {
				c.Search.VectorWeight = -0.1
			},
			wantErr: true,
		},
		{
			name: "weights sum to zero",
			mutate: func(c *Config) {
				c.Search.VectorWeight = 0
				c.Search.KeywordWeight = 0
			},
			wantErr: true,
		},
		{
			name: "enabled gateway without secret",
			mutate: func(c *Config) {
				c.Gateway.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "invalid cron schedule",
			mutate: func(c *Config) {
				c.Maintenance.ReindexSchedule = "once in a while"
			},
			wantErr: true,
		},
		{
			name: "empty schedule is allowed",
			mutate: func(c *Config) {
				c.Maintenance.ReindexSchedule = ""
			},
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "loud"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
