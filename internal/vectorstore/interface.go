// Package vectorstore provides vector storage backends for memory documents.
//
// Two implementations are available:
//   - ChromemStore: embedded chromem-go database, persisted to disk, no
//     external service required (the default)
//   - QdrantStore: gRPC client for an external Qdrant server
//
// Both store raw document text alongside its embedding so that documents can
// be listed and deleted without re-embedding.
package vectorstore

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrCollectionNotFound is returned when a collection doesn't exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig is returned when store configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments is returned when attempting to add an empty batch.
	ErrEmptyDocuments = errors.New("documents cannot be empty")

	// ErrConnectionFailed is returned when connection to the backend fails.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrInvalidCollectionName is returned when a collection name fails validation.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedDocuments generates embeddings for a batch of texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage backends.
//
// Collections are created on demand by AddDocuments. Read and delete
// operations against a collection that was never written return
// ErrCollectionNotFound.
type Store interface {
	// AddDocuments embeds and stores documents in the collection named by
	// the batch. Documents with an empty ID get a generated one. Returns
	// the stored document IDs in input order.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SearchInCollection performs similarity search in a collection and
	// returns up to k results ordered by descending similarity.
	SearchInCollection(ctx context.Context, collectionName, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// ListDocuments returns a page of stored documents. Offset and limit
	// page through the collection in storage order; callers that need a
	// recency ordering sort the returned page themselves.
	ListDocuments(ctx context.Context, collectionName string, limit, offset int) ([]StoredDocument, error)

	// DeleteDocumentsFromCollection deletes documents by ID. IDs that do
	// not exist are ignored.
	DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error

	// DeleteCollection deletes a collection and all its documents.
	DeleteCollection(ctx context.Context, collectionName string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection.
	GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error)

	// Close releases backend resources.
	Close() error
}

// CollectionInfo holds metadata about a collection.
type CollectionInfo struct {
	Name       string
	PointCount int
	VectorSize int
}
