// Package retention enforces the bounded compact store and the
// duplicate/age pruning sweeps over a remote vector memory.
//
// Compacts are long-form snapshot entries kept per scope with a fixed
// retention count: every append rotates out the oldest entries beyond the
// limit. Notes are uncapped and only cleaned up by an explicit prune.
// All state lives in the remote store; each operation is a fresh
// list/write/delete cycle with no cached rank-to-id mapping, since ranks
// shift whenever an entry is deleted.
package retention

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Kind partitions entries into short-form notes and retention-capped
// compacts.
type Kind string

const (
	KindNote    Kind = "note"
	KindCompact Kind = "compact"
)

// Scope selects the project-local or global partition of the store.
// An empty ProjectID addresses the global partition.
type Scope struct {
	ProjectID string
}

// GlobalScope addresses the shared partition.
func GlobalScope() Scope { return Scope{} }

// ProjectScope addresses one project's partition.
func ProjectScope(projectID string) Scope { return Scope{ProjectID: projectID} }

// IsGlobal reports whether the scope addresses the shared partition.
func (s Scope) IsGlobal() bool { return s.ProjectID == "" }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "project:" + s.ProjectID
}

// Entry is one stored memory item as seen by the retention policy.
// Entries are never mutated in place; corrections are new writes.
type Entry struct {
	ID        string
	Text      string
	Metadata  map[string]any
	CreatedAt time.Time
}

// DeleteResult reports the outcome for a single id in a batch delete.
type DeleteResult struct {
	ID  string
	Err error
}

// RemoteStore is the contract the retention policy requires from the
// remote vector memory. Implementations map Kind onto whatever the wire
// format uses; the policy itself never inspects metadata.
//
// List returns every entry of the kind in the scope, in no guaranteed
// order. Delete reports per-id outcomes and keeps going past individual
// failures.
type RemoteStore interface {
	List(ctx context.Context, scope Scope, kind Kind) ([]Entry, error)
	Write(ctx context.Context, scope Scope, kind Kind, text string, metadata map[string]any) (Entry, error)
	Delete(ctx context.Context, scope Scope, ids []string) ([]DeleteResult, error)
}

// sortByRecency orders entries newest first: created_at descending with
// ties broken by id descending, which matches the rank addressing used by
// retrieve and delete (1 = newest).
func sortByRecency(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

// newerThan reports whether a ranks above b under the recency order.
func newerThan(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// PreviewText returns the first line of text truncated to maxRunes, with
// an ellipsis when anything was cut. Listings show previews; full text
// comes from indexed lookups.
func PreviewText(text string, maxRunes int) string {
	line, rest, multiline := strings.Cut(text, "\n")
	runes := []rune(line)
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "…"
	}
	if multiline && rest != "" {
		return line + "…"
	}
	return line
}
