package integration

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/config"
	"github.com/fyrsmithlabs/vmemd/internal/server"
	"github.com/fyrsmithlabs/vmemd/internal/vectorstore"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

const embedDim = 64

// hashEmbedder returns deterministic vectors so identical texts embed
// identically and the suite never needs a model or network.
type hashEmbedder struct{}

func (hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text)
	}
	return out, nil
}

func (hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return hashVector(text), nil
}

func hashVector(text string) []float32 {
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	vec := make([]float32, embedDim)
	var sumSq float32
	for i := range vec {
		vec[i] = float32((hash+i)%100) / 100.0
		sumSq += vec[i] * vec[i]
	}
	// chromem requires unit vectors.
	if sumSq > 0 {
		norm := 1.0 / sqrt32(sumSq)
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}

// serveAPI builds a fresh store and server and returns the base URL of
// a live listener in front of it. Everything is torn down with t.
func serveAPI(t *testing.T, cfg *config.ServerConfig) string {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       filepath.Join(t.TempDir(), "vectors"),
		VectorSize: embedDim,
	}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv, err := server.NewServer(store, zap.NewNop(), cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts.URL
}

// startDaemon wires a client against a fresh unauthenticated server.
func startDaemon(t *testing.T) *client.Client {
	t.Helper()
	api, err := client.New(client.Config{BaseURL: serveAPI(t, nil)})
	require.NoError(t, err)
	return api
}
