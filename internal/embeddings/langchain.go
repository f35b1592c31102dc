package embeddings

import (
	"context"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// langchainProvider adapts a langchaingo embedder to the Provider
// interface. Both the ollama and openai providers share it.
type langchainProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	model     string
	dimension int
	metrics   *Metrics
}

// newOllamaProvider embeds through a local Ollama server.
func newOllamaProvider(cfg ProviderConfig, dimension int, logger *zap.Logger) (*langchainProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required for ollama provider", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required for ollama provider", ErrInvalidConfig)
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &langchainProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: dimension,
		metrics:   NewMetrics(logger),
	}, nil
}

// newOpenAIProvider embeds through the OpenAI API or any OpenAI-compatible
// endpoint such as TEI.
func newOpenAIProvider(cfg ProviderConfig, dimension int, logger *zap.Logger) (*langchainProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required for openai provider", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required for openai provider", ErrInvalidConfig)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token; TEI and other compatible
		// servers ignore it.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &langchainProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: dimension,
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *langchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *langchainProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	return vector, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *langchainProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op for HTTP-backed providers.
func (p *langchainProvider) Close() error {
	return nil
}
