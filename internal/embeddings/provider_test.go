package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"nomic-embed-text", 768},
		{"nomic-embed-text:latest", 768},
		{"mxbai-embed-large", 1024},
		{"all-minilm", 384},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"BAAI/bge-small-en-v1.5", 384},
		{"custom-large-model", 1024},
		{"custom-base-model", 768},
		{"custom-mini-model", 384},
		{"completely-unknown", 768},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDimension(tt.model), "model=%q", tt.model)
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "bedrock"}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider_Ollama(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 768, p.Dimension())
}

func TestNewProvider_DefaultsToOllama(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		BaseURL: "http://localhost:11434",
		Model:   "all-minilm",
	}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 384, p.Dimension())
}

func TestNewProvider_DimensionOverride(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Dimensions: 512,
	}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 512, p.Dimension())
}

func TestNewProvider_OpenAI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{
		Provider: "openai",
		BaseURL:  "http://localhost:8080/v1",
		Model:    "text-embedding-3-small",
	}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 1536, p.Dimension())
}

func TestOllamaProvider_RequiresConfig(t *testing.T) {
	_, err := newOllamaProvider(ProviderConfig{Model: "nomic-embed-text"}, 768, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = newOllamaProvider(ProviderConfig{BaseURL: "http://localhost:11434"}, 768, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLangchainProvider_EmptyInput(t *testing.T) {
	p, err := newOllamaProvider(ProviderConfig{
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
	}, 768, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
