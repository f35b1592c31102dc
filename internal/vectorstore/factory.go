package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/vmemd/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store from the daemon configuration.
//
// The store.provider field selects the implementation:
//   - "chromem" (default): embedded ChromemStore, no external services
//   - "qdrant": QdrantStore talking to an external Qdrant server
//
// The embedding dimension comes from the embeddings configuration so the
// store and embedder always agree on vector size.
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Provider {
	case "chromem", "":
		chromemCfg := ChromemConfig{
			Path:       cfg.Store.Chromem.Path,
			Compress:   cfg.Store.Chromem.Compress,
			VectorSize: cfg.Embeddings.Dimensions,
		}
		return NewChromemStore(chromemCfg, embedder, logger)

	case "qdrant":
		qdrantCfg := QdrantConfig{
			Host:       cfg.Store.Qdrant.Host,
			Port:       cfg.Store.Qdrant.Port,
			APIKey:     cfg.Store.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Store.Qdrant.UseTLS,
			VectorSize: cfg.Embeddings.Dimensions,
		}
		return NewQdrantStore(qdrantCfg, embedder, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.Store.Provider)
	}
}
