package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedProvider throttles embedding calls so a shared embedding
// backend is not overwhelmed by large prune or import batches.
type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps a provider with a token bucket of rps requests per
// second and the given burst. Zero or negative rps returns the provider
// unchanged.
func NewRateLimited(provider Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return provider
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{
		Provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *rateLimitedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	return p.Provider.EmbedDocuments(ctx, texts)
}

func (p *rateLimitedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	return p.Provider.EmbedQuery(ctx, text)
}
