package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/fyrsmithlabs/vmemd/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// defaultTopK is the match count for queries that omit top_k.
	defaultTopK = 5

	// defaultListLimit is the page size for list requests that omit limit.
	defaultListLimit = 20

	// timestampLayout is the metadata timestamp format. Fixed microsecond
	// precision keeps the strings lexicographically sortable.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// WriteGlobalRequest is the request body for POST /write/global.
type WriteGlobalRequest struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// WriteProjectRequest is the request body for POST /write/project.
type WriteProjectRequest struct {
	ProjectID string                 `json:"project_id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// WriteResponse is the response body for the write endpoints.
type WriteResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// QueryGlobalRequest is the request body for POST /query/global.
type QueryGlobalRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// QueryProjectRequest is the request body for POST /query/project.
type QueryProjectRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
}

// Match is a single similarity search hit in a QueryResponse.
type Match struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata"`
	Distance   float64                `json:"distance"`
	Similarity float64                `json:"similarity"`
}

// QueryResponse is the response body for the query endpoints.
type QueryResponse struct {
	Query      string  `json:"query"`
	Collection string  `json:"collection"`
	Count      int     `json:"count"`
	Matches    []Match `json:"matches"`
}

// ListGlobalRequest is the request body for POST /list/global.
type ListGlobalRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListProjectRequest is the request body for POST /list/project.
type ListProjectRequest struct {
	ProjectID string `json:"project_id"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// ListedDocument is a stored document in a ListResponse.
type ListedDocument struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ListResponse is the response body for the list endpoints. Count is
// the size of the returned page, not the collection total.
type ListResponse struct {
	Collection string           `json:"collection"`
	Count      int              `json:"count"`
	Documents  []ListedDocument `json:"documents"`
}

// DeleteDocumentRequest is the request body for POST /delete/document.
// Collection is the full collection name ("global" or "project_<slug>").
type DeleteDocumentRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

// DeleteDocumentResponse is the response body for POST /delete/document.
type DeleteDocumentResponse struct {
	Status       string   `json:"status"`
	Collection   string   `json:"collection"`
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
}

// DeleteProjectRequest is the request body for POST /delete/project.
type DeleteProjectRequest struct {
	ProjectID string `json:"project_id"`
}

// DeleteProjectResponse is the response body for POST /delete/project.
type DeleteProjectResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleWriteGlobal(c echo.Context) error {
	var req WriteGlobalRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid write request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	now := time.Now().UTC().Format(timestampLayout)
	metadata := cloneMetadata(req.Metadata)
	metadata["visibility"] = "global"
	metadata["created_at"] = now
	metadata["updated_at"] = now

	id, err := s.addDocument(c, vectorstore.GlobalCollection, req.Text, metadata)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, WriteResponse{
		Status:     "success",
		Collection: vectorstore.GlobalCollection,
		ID:         id,
		CreatedAt:  now,
	})
}

func (s *Server) handleWriteProject(c echo.Context) error {
	var req WriteProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid write request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id field is required")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	collection := vectorstore.ProjectCollection(req.ProjectID)

	now := time.Now().UTC().Format(timestampLayout)
	metadata := cloneMetadata(req.Metadata)
	metadata["project_slug"] = req.ProjectID
	metadata["visibility"] = "project"
	metadata["created_at"] = now
	metadata["updated_at"] = now

	id, err := s.addDocument(c, collection, req.Text, metadata)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, WriteResponse{
		Status:     "success",
		Collection: collection,
		ID:         id,
		CreatedAt:  now,
	})
}

// addDocument stores one document and returns its assigned id.
func (s *Server) addDocument(c echo.Context, collection, text string, metadata map[string]interface{}) (string, error) {
	ids, err := s.store.AddDocuments(c.Request().Context(), []vectorstore.Document{{
		Content:    text,
		Metadata:   metadata,
		Collection: collection,
	}})
	if err != nil {
		if errors.Is(err, vectorstore.ErrInvalidCollectionName) {
			return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return "", echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("write failed: %v", err))
	}
	return ids[0], nil
}

func (s *Server) handleQueryGlobal(c echo.Context) error {
	var req QueryGlobalRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	return s.queryCollection(c, vectorstore.GlobalCollection, req.Query, req.TopK)
}

func (s *Server) handleQueryProject(c echo.Context) error {
	var req QueryProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id field is required")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	return s.queryCollection(c, vectorstore.ProjectCollection(req.ProjectID), req.Query, req.TopK)
}

// queryCollection runs a similarity search and writes the response.
// A collection that was never written yields an empty match list.
func (s *Server) queryCollection(c echo.Context, collection, query string, topK int) error {
	if topK <= 0 {
		topK = defaultTopK
	}

	results, err := s.store.SearchInCollection(c.Request().Context(), collection, query, topK, nil)
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		results = nil
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		similarity := float64(r.Score)
		matches = append(matches, Match{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   nonNilMetadata(r.Metadata),
			Distance:   1 - similarity,
			Similarity: similarity,
		})
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Query:      query,
		Collection: collection,
		Count:      len(matches),
		Matches:    matches,
	})
}

func (s *Server) handleListGlobal(c echo.Context) error {
	var req ListGlobalRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid list request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.listCollection(c, vectorstore.GlobalCollection, req.Limit, req.Offset)
}

func (s *Server) handleListProject(c echo.Context) error {
	var req ListProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid list request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id field is required")
	}
	return s.listCollection(c, vectorstore.ProjectCollection(req.ProjectID), req.Limit, req.Offset)
}

// listCollection returns a page of documents sorted newest first by
// their created_at metadata. The page is selected in storage order
// before sorting, so offset paging remains stable across calls.
func (s *Server) listCollection(c echo.Context, collection string, limit, offset int) error {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	stored, err := s.store.ListDocuments(c.Request().Context(), collection, limit, offset)
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		stored = nil
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("list failed: %v", err))
	}

	documents := make([]ListedDocument, 0, len(stored))
	for _, d := range stored {
		documents = append(documents, ListedDocument{
			ID:       d.ID,
			Text:     d.Content,
			Metadata: nonNilMetadata(d.Metadata),
		})
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return createdAt(documents[i].Metadata) > createdAt(documents[j].Metadata)
	})

	return c.JSON(http.StatusOK, ListResponse{
		Collection: collection,
		Count:      len(documents),
		Documents:  documents,
	})
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	var req DeleteDocumentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid delete request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Collection == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "collection field is required")
	}

	err := s.store.DeleteDocumentsFromCollection(c.Request().Context(), req.Collection, req.IDs)
	switch {
	case errors.Is(err, vectorstore.ErrInvalidCollectionName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Collection '%s' not found", req.Collection))
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("delete failed: %v", err))
	}

	ids := req.IDs
	if ids == nil {
		ids = []string{}
	}

	return c.JSON(http.StatusOK, DeleteDocumentResponse{
		Status:       "success",
		Collection:   req.Collection,
		DeletedCount: len(ids),
		DeletedIDs:   ids,
	})
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	var req DeleteProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid delete request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id field is required")
	}

	collection := vectorstore.ProjectCollection(req.ProjectID)

	err := s.store.DeleteCollection(c.Request().Context(), collection)
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		// Dropping a collection that never existed is a success.
		return c.JSON(http.StatusOK, DeleteProjectResponse{
			Status:  "success",
			Message: fmt.Sprintf("Project collection '%s' not found, nothing to delete", collection),
		})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("delete failed: %v", err))
	}

	return c.JSON(http.StatusOK, DeleteProjectResponse{
		Status:  "success",
		Message: fmt.Sprintf("Project collection '%s' deleted", collection),
	})
}

// cloneMetadata copies request metadata so enrichment never aliases
// the caller's map. A nil map yields an empty one.
func cloneMetadata(md map[string]interface{}) map[string]interface{} {
	clone := make(map[string]interface{}, len(md)+4)
	for k, v := range md {
		clone[k] = v
	}
	return clone
}

// nonNilMetadata normalizes absent metadata to an empty JSON object.
func nonNilMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return map[string]interface{}{}
	}
	return md
}

// createdAt extracts the created_at metadata string, or "" when absent.
// Timestamps use a fixed-precision layout, so string comparison orders
// them chronologically.
func createdAt(md map[string]interface{}) string {
	if v, ok := md["created_at"].(string); ok {
		return v
	}
	return ""
}
