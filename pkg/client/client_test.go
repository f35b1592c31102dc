package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}

func TestClient_Headers(t *testing.T) {
	var captured http.Header
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, AuthToken: "sekrit"})
	require.NoError(t, err)
	require.NoError(t, c.Health(context.Background()))

	assert.Equal(t, "Bearer sekrit", captured.Get("Authorization"))
	assert.Equal(t, "true", captured.Get("Ngrok-Skip-Browser-Warning"))

	anon, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, anon.Health(context.Background()))
	assert.Empty(t, captured.Get("Authorization"))
}

func TestClient_Health(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	require.NoError(t, c.Health(context.Background()))
}

func TestClient_HealthDegraded(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting")
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	err = c.Health(context.Background())
	require.ErrorIs(t, err, retention.ErrRemoteUnavailable)
}

func TestClient_WriteGlobal(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/write/global", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "remember this", body["text"])
		assert.NotContains(t, body, "project_id")

		_, _ = w.Write([]byte(`{"status":"success","collection":"global","id":"123_abc","created_at":"2025-06-01T10:00:00Z"}`))
	}))

	resp, err := c.Write(context.Background(), retention.GlobalScope(), "remember this", map[string]any{"agent": "cli"})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "global", resp.Collection)
	assert.Equal(t, "123_abc", resp.ID)
	assert.Equal(t, "2025-06-01T10:00:00Z", resp.CreatedAt)
}

func TestClient_WriteProject(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/write/project", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "my-app", body["project_id"])

		_, _ = w.Write([]byte(`{"status":"success","collection":"project_my-app","id":"456_def"}`))
	}))

	resp, err := c.Write(context.Background(), retention.ProjectScope("my-app"), "note", nil)
	require.NoError(t, err)
	assert.Equal(t, "project_my-app", resp.Collection)
}

func TestClient_Query(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/project", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deploy steps", body["query"])
		assert.Equal(t, float64(3), body["top_k"])
		assert.Equal(t, "my-app", body["project_id"])

		_, _ = w.Write([]byte(`{
			"query": "deploy steps",
			"collection": "project_my-app",
			"count": 1,
			"matches": [{"id":"1_a","text":"run make deploy","metadata":{"type":"note"},"distance":0.25,"similarity":0.8}]
		}`))
	}))

	resp, err := c.Query(context.Background(), retention.ProjectScope("my-app"), "deploy steps", 3)
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "run make deploy", resp.Matches[0].Text)
	assert.InDelta(t, 0.8, resp.Matches[0].Similarity, 1e-9)
	assert.InDelta(t, 0.25, resp.Matches[0].Distance, 1e-9)
}

func TestClient_List(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list/global", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(50), body["limit"])
		assert.Equal(t, float64(100), body["offset"])

		_, _ = w.Write([]byte(`{
			"collection": "global",
			"count": 2,
			"documents": [
				{"id":"2_b","text":"newer","metadata":{"created_at":"2025-06-02T00:00:00Z"}},
				{"id":"1_a","text":"older","metadata":{"created_at":"2025-06-01T00:00:00Z"}}
			]
		}`))
	}))

	resp, err := c.List(context.Background(), retention.GlobalScope(), 50, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "newer", resp.Documents[0].Text)
}

func TestClient_DeleteDocuments(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delete/document", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "project_my-app", body["collection"])
		assert.Equal(t, []any{"1_a", "2_b"}, body["ids"])

		_, _ = w.Write([]byte(`{"status":"success","collection":"project_my-app","deleted_count":2,"deleted_ids":["1_a","2_b"]}`))
	}))

	resp, err := c.DeleteDocuments(context.Background(), retention.ProjectScope("my-app"), []string{"1_a", "2_b"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DeletedCount)
	assert.Equal(t, []string{"1_a", "2_b"}, resp.DeletedIDs)
}

func TestClient_DeleteProject(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delete/project", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "my-app", body["project_id"])

		_, _ = w.Write([]byte(`{"status":"success","message":"collection dropped"}`))
	}))

	resp, err := c.DeleteProject(context.Background(), "my-app")
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, resp.Message, "dropped")
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "global", CollectionName(retention.GlobalScope()))
	assert.Equal(t, "project_my-app", CollectionName(retention.ProjectScope("my-app")))
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(200, nil))
	assert.NoError(t, statusError(204, nil))

	err := statusError(401, []byte(`{"detail":"Invalid token"}`))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Invalid token")

	err = statusError(403, nil)
	require.ErrorIs(t, err, ErrUnauthorized)

	for _, status := range []int{429, 500, 502, 503} {
		err = statusError(status, []byte("overloaded"))
		require.ErrorIs(t, err, retention.ErrRemoteUnavailable, "status %d", status)
	}

	err = statusError(404, []byte(`{"detail":"missing"}`))
	require.ErrorIs(t, err, retention.ErrNotFound)

	err = statusError(422, []byte(`{"detail":"text must not be empty"}`))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.False(t, errors.Is(err, retention.ErrRemoteUnavailable))
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestParseDetail(t *testing.T) {
	assert.Equal(t, "boom", parseDetail([]byte(`{"detail":"boom"}`)))
	assert.Equal(t, "plain text failure", parseDetail([]byte("plain text failure")))
	assert.Equal(t, "empty response body", parseDetail(nil))
}
