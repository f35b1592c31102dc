package client

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
)

// listPageSize is how many documents Remote pulls per page when
// draining a collection.
const listPageSize = 1000

// Remote adapts the HTTP client to the retention policy's store
// contract. It owns the wire-level mapping of Kind: a kind is carried
// as the "type" metadata key, compact entries exactly matching
// "compact" and notes being everything else.
type Remote struct {
	client   *Client
	pageSize int
}

// NewRemote wraps a client for use by the retention store.
func NewRemote(c *Client) *Remote {
	return &Remote{client: c, pageSize: listPageSize}
}

var _ retention.RemoteStore = (*Remote)(nil)

// List drains every page of the scope and returns the entries matching
// the kind. Order is whatever the server returned; the retention layer
// sorts.
func (r *Remote) List(ctx context.Context, scope retention.Scope, kind retention.Kind) ([]retention.Entry, error) {
	var entries []retention.Entry
	for offset := 0; ; offset += r.pageSize {
		page, err := r.client.List(ctx, scope, r.pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, doc := range page.Documents {
			if !matchesKind(doc.Metadata, kind) {
				continue
			}
			entries = append(entries, toEntry(doc))
		}
		if len(page.Documents) < r.pageSize {
			return entries, nil
		}
	}
}

// Write stores a new entry, stamping the kind into its metadata.
func (r *Remote) Write(ctx context.Context, scope retention.Scope, kind retention.Kind, text string, metadata map[string]any) (retention.Entry, error) {
	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md["type"] = string(kind)

	resp, err := r.client.Write(ctx, scope, text, md)
	if err != nil {
		return retention.Entry{}, err
	}

	createdAt := time.Now().UTC()
	if ts, ok := parseTimestamp(resp.CreatedAt); ok {
		createdAt = ts
	}
	return retention.Entry{
		ID:        resp.ID,
		Text:      text,
		Metadata:  md,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes the ids one call each so a failing id does not mask
// the rest of the batch. Context cancellation aborts the remaining ids
// and returns the partial results with the context error.
func (r *Remote) Delete(ctx context.Context, scope retention.Scope, ids []string) ([]retention.DeleteResult, error) {
	results := make([]retention.DeleteResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		_, err := r.client.DeleteDocuments(ctx, scope, []string{id})
		results = append(results, retention.DeleteResult{ID: id, Err: err})
	}
	return results, nil
}

func matchesKind(metadata map[string]any, kind retention.Kind) bool {
	t, _ := metadata["type"].(string)
	if kind == retention.KindCompact {
		return t == string(retention.KindCompact)
	}
	return t != string(retention.KindCompact)
}

func toEntry(doc Document) retention.Entry {
	entry := retention.Entry{
		ID:       doc.ID,
		Text:     doc.Text,
		Metadata: doc.Metadata,
	}
	if ts, ok := parseTimestamp(stringField(doc.Metadata, "created_at")); ok {
		entry.CreatedAt = ts
	}
	return entry
}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func stringField(metadata map[string]any, key string) string {
	s, _ := metadata[key].(string)
	return s
}
