package client

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
)

// GlobalCollection is the collection name backing the global scope.
const GlobalCollection = "global"

// CollectionName maps a scope to its remote collection. Project ids are
// expected to already be slugs (lowercase, hyphenated); the server
// normalizes them the same way, so pre-slugged input round-trips
// unchanged.
func CollectionName(scope retention.Scope) string {
	if scope.IsGlobal() {
		return GlobalCollection
	}
	return "project_" + scope.ProjectID
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

type writeRequest struct {
	ProjectID string         `json:"project_id,omitempty"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// WriteResponse acknowledges a stored document.
type WriteResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Write stores one document in the scope's collection.
func (c *Client) Write(ctx context.Context, scope retention.Scope, text string, metadata map[string]any) (*WriteResponse, error) {
	path := "/write/global"
	req := writeRequest{Text: text, Metadata: metadata}
	if !scope.IsGlobal() {
		path = "/write/project"
		req.ProjectID = scope.ProjectID
	}
	var resp WriteResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type queryRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

// Match is one similarity hit.
type Match struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}

// QueryResponse holds the ranked matches for a query.
type QueryResponse struct {
	Query      string  `json:"query"`
	Collection string  `json:"collection"`
	Count      int     `json:"count"`
	Matches    []Match `json:"matches"`
}

// MinSimilarity is the score floor below which a match is treated as noise.
// Embedding backends return the nearest neighbors regardless of relevance, so
// near-zero scores only mean "least unrelated thing in the collection".
const MinSimilarity = 0.001

// SignificantMatches filters out matches at or below MinSimilarity,
// preserving order.
func SignificantMatches(matches []Match) []Match {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > MinSimilarity {
			kept = append(kept, m)
		}
	}
	return kept
}

// Query runs a semantic search over the scope's collection.
func (c *Client) Query(ctx context.Context, scope retention.Scope, query string, topK int) (*QueryResponse, error) {
	path := "/query/global"
	req := queryRequest{Query: query, TopK: topK}
	if !scope.IsGlobal() {
		path = "/query/project"
		req.ProjectID = scope.ProjectID
	}
	var resp QueryResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type listRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Document is one stored item in a listing.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// ListResponse is one page of documents. The page is fetched in
// insertion order and sorted newest first by the server; Count is the
// page size, not the collection total.
type ListResponse struct {
	Collection string     `json:"collection"`
	Count      int        `json:"count"`
	Documents  []Document `json:"documents"`
}

// List fetches one page of the scope's documents.
func (c *Client) List(ctx context.Context, scope retention.Scope, limit, offset int) (*ListResponse, error) {
	path := "/list/global"
	req := listRequest{Limit: limit, Offset: offset}
	if !scope.IsGlobal() {
		path = "/list/project"
		req.ProjectID = scope.ProjectID
	}
	var resp ListResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type deleteRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

// DeleteResponse acknowledges a document delete.
type DeleteResponse struct {
	Status       string   `json:"status"`
	Collection   string   `json:"collection"`
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
}

// DeleteDocuments removes documents by id from the scope's collection.
func (c *Client) DeleteDocuments(ctx context.Context, scope retention.Scope, ids []string) (*DeleteResponse, error) {
	req := deleteRequest{Collection: CollectionName(scope), IDs: ids}
	var resp DeleteResponse
	if err := c.post(ctx, "/delete/document", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type uninitRequest struct {
	ProjectID string `json:"project_id"`
}

// DeleteProjectResponse acknowledges a project collection drop.
type DeleteProjectResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DeleteProject drops a project's entire collection. Dropping a
// collection that does not exist succeeds.
func (c *Client) DeleteProject(ctx context.Context, projectID string) (*DeleteProjectResponse, error) {
	var resp DeleteProjectResponse
	if err := c.post(ctx, "/delete/project", uninitRequest{ProjectID: projectID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
