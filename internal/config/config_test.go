package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.False(t, cfg.Server.AuthToken.IsSet())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())

	assert.Equal(t, "chromem", cfg.Store.Provider)
	assert.Equal(t, "~/.config/vmemd/vectorstore", cfg.Store.Chromem.Path)
	assert.Equal(t, "localhost", cfg.Store.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Store.Qdrant.Port)

	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Embeddings.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaultsPreservesExplicit(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Store.Provider = "qdrant"
	cfg.Embeddings.Model = "all-minilm"

	cfg.ApplyDefaults()

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.Store.Provider)
	assert.Equal(t, "all-minilm", cfg.Embeddings.Model)
	// Unset fields still get defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "localhost", cfg.Store.Qdrant.Host)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port",
		},
		{
			name: "rate limit zero rps",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RPS = 0
			},
			wantErr: "rate limit rps",
		},
		{
			name:    "unknown store provider",
			mutate:  func(c *Config) { c.Store.Provider = "pinecone" },
			wantErr: "unknown store provider",
		},
		{
			name:    "chromem without path",
			mutate:  func(c *Config) { c.Store.Chromem.Path = "" },
			wantErr: "chromem store path",
		},
		{
			name: "qdrant without host",
			mutate: func(c *Config) {
				c.Store.Provider = "qdrant"
				c.Store.Qdrant.Host = ""
			},
			wantErr: "qdrant host",
		},
		{
			name: "qdrant bad port",
			mutate: func(c *Config) {
				c.Store.Provider = "qdrant"
				c.Store.Qdrant.Port = -1
			},
			wantErr: "qdrant port",
		},
		{
			name:    "unknown embeddings provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "cohere" },
			wantErr: "unknown embeddings provider",
		},
		{
			name:    "ollama without base url",
			mutate:  func(c *Config) { c.Embeddings.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name: "fastembed needs no base url",
			mutate: func(c *Config) {
				c.Embeddings.Provider = "fastembed"
				c.Embeddings.BaseURL = ""
			},
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Embeddings.Model = "" },
			wantErr: "model",
		},
		{
			name:    "zero dimensions",
			mutate:  func(c *Config) { c.Embeddings.Dimensions = -3 },
			wantErr: "dimensions",
		},
		{
			name:    "invalid logging section",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging:",
		},
		{
			name: "invalid telemetry section",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
