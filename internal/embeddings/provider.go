// Package embeddings provides embedding generation via multiple providers.
//
// Three providers are supported:
//   - "ollama": a local Ollama server (the default)
//   - "openai": the OpenAI embeddings API, or any OpenAI-compatible
//     endpoint such as TEI
//   - "fastembed": local ONNX models, no external service (requires CGO)
//
// Embedding dimensions are detected from the model name when not
// configured explicitly.
package embeddings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/vmemd/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "ollama", "openai", or "fastembed".
	Provider string

	// BaseURL is the API endpoint for ollama and openai providers.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// APIKey authenticates openai requests. Unused by other providers.
	APIKey string

	// Dimensions overrides dimension detection when non-zero.
	Dimensions int

	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dimension := cfg.Dimensions
	if dimension == 0 {
		dimension = DetectDimension(cfg.Model)
	}

	switch cfg.Provider {
	case "ollama", "":
		return newOllamaProvider(cfg, dimension, logger)
	case "openai":
		return newOpenAIProvider(cfg, dimension, logger)
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: ollama, openai, fastembed)", ErrInvalidConfig, cfg.Provider)
	}
}

// modelDimensionTable maps known embedding models to their dimensions.
var modelDimensionTable = map[string]int{
	"nomic-embed-text":                       768,
	"mxbai-embed-large":                      1024,
	"all-minilm":                             384,
	"snowflake-arctic-embed":                 1024,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-large-en-v1.5":                 1024,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// DetectDimension returns the embedding dimension for a model name.
// Unknown models fall back to name heuristics, then to 768.
func DetectDimension(model string) int {
	if dim, ok := modelDimensionTable[model]; ok {
		return dim
	}
	// Tags like "nomic-embed-text:latest" still match the base name.
	if base, _, found := strings.Cut(model, ":"); found {
		if dim, ok := modelDimensionTable[base]; ok {
			return dim
		}
	}
	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 768
	}
}
