// Package config provides configuration loading for vmemd.
//
// The daemon configuration is loaded from a YAML file with environment
// variable overrides (VMEMD_ prefix). The CLI client configuration is
// loaded from environment variables only (VMEM_ prefix).
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vmemd/internal/logging"
	"github.com/fyrsmithlabs/vmemd/internal/telemetry"
)

// Config holds the complete vmemd daemon configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Logging    logging.Config   `koanf:"logging"`
	Telemetry  telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// AuthToken guards the API with bearer authentication. When empty,
	// authentication is disabled.
	AuthToken Secret `koanf:"auth_token"`

	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig holds token bucket rate limit settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Provider is the backend name: "chromem" (embedded, default) or
	// "qdrant" (external).
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds settings for the embedded chromem backend.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds settings for the external qdrant backend.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is the embedding backend: "ollama" (default), "openai"
	// (OpenAI-compatible HTTP endpoints, including TEI), or "fastembed"
	// (local ONNX).
	Provider string `koanf:"provider"`

	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	APIKey     Secret `koanf:"api_key"`
	Dimensions int    `koanf:"dimensions"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// NewDefaultConfig returns the daemon defaults: embedded chromem store,
// ollama embeddings, JSON logging, telemetry disabled.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in defaults for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 50
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 100
	}

	if c.Store.Provider == "" {
		c.Store.Provider = "chromem"
	}
	if c.Store.Chromem.Path == "" {
		c.Store.Chromem.Path = "~/.config/vmemd/vectorstore"
	}
	if c.Store.Qdrant.Host == "" {
		c.Store.Qdrant.Host = "localhost"
	}
	if c.Store.Qdrant.Port == 0 {
		c.Store.Qdrant.Port = 6334
	}

	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "ollama"
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = "http://localhost:11434"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text"
	}
	if c.Embeddings.Dimensions == 0 {
		c.Embeddings.Dimensions = 768
	}
	if c.Embeddings.RateLimit.RPS == 0 {
		c.Embeddings.RateLimit.RPS = 10
	}
	if c.Embeddings.RateLimit.Burst == 0 {
		c.Embeddings.RateLimit.Burst = 20
	}

	if c.Logging.Format == "" {
		c.Logging = *logging.NewDefaultConfig()
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry = *telemetry.NewDefaultConfig()
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RPS <= 0 {
			return fmt.Errorf("server rate limit rps must be positive, got %v", c.Server.RateLimit.RPS)
		}
		if c.Server.RateLimit.Burst < 1 {
			return fmt.Errorf("server rate limit burst must be at least 1, got %d", c.Server.RateLimit.Burst)
		}
	}

	switch c.Store.Provider {
	case "chromem":
		if c.Store.Chromem.Path == "" {
			return fmt.Errorf("chromem store path cannot be empty")
		}
	case "qdrant":
		if c.Store.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host cannot be empty")
		}
		if c.Store.Qdrant.Port < 1 || c.Store.Qdrant.Port > 65535 {
			return fmt.Errorf("qdrant port must be between 1 and 65535, got %d", c.Store.Qdrant.Port)
		}
	default:
		return fmt.Errorf("unknown store provider %q (must be chromem or qdrant)", c.Store.Provider)
	}

	switch c.Embeddings.Provider {
	case "ollama", "openai", "fastembed":
	default:
		return fmt.Errorf("unknown embeddings provider %q (must be ollama, openai, or fastembed)", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider != "fastembed" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings base_url cannot be empty for provider %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings model cannot be empty")
	}
	if c.Embeddings.Dimensions < 1 {
		return fmt.Errorf("embeddings dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.RateLimit.Enabled && c.Embeddings.RateLimit.RPS <= 0 {
		return fmt.Errorf("embeddings rate limit rps must be positive, got %v", c.Embeddings.RateLimit.RPS)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
