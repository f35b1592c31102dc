package retention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultCompactLimit caps how many compacts a scope retains when the
// configuration does not say otherwise.
const DefaultCompactLimit = 5

// Config carries the retention policy knobs. The limit is threaded in
// explicitly rather than read from ambient state so the policy stays
// testable without environment setup.
type Config struct {
	// CompactLimit is the maximum number of compacts retained per scope.
	// Zero selects DefaultCompactLimit.
	CompactLimit int
}

// Store applies the retention policy against a remote store. It holds no
// entry state of its own; every operation is a fresh request cycle.
type Store struct {
	remote RemoteStore
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

// NewStore validates the configuration and returns a retention store.
func NewStore(remote RemoteStore, cfg Config, logger *zap.Logger) (*Store, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if cfg.CompactLimit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, cfg.CompactLimit)
	}
	limit := cfg.CompactLimit
	if limit == 0 {
		limit = DefaultCompactLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		remote: remote,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}, nil
}

// CompactLimit returns the effective retention limit.
func (s *Store) CompactLimit() int { return s.limit }

// AppendResult describes a completed compact append.
type AppendResult struct {
	Entry    Entry
	Retained int      // compacts stored after rotation, 0 when unknown
	Limit    int
	Evicted  []string // ids rotated out by this append
}

// AppendCompact writes a new compact and rotates the scope down to the
// retention limit, evicting oldest entries first. The fresh write is
// never the one evicted.
//
// When the write lands but the follow-up rotation fails, the scope is
// temporarily over limit. That is returned as an *OverRetentionError
// alongside a valid result: the caller has a stored entry and a warning,
// not a failure.
func (s *Store) AppendCompact(ctx context.Context, scope Scope, text string, metadata map[string]any) (*AppendResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	entry, err := s.remote.Write(ctx, scope, KindCompact, text, metadata)
	if err != nil {
		return nil, fmt.Errorf("writing compact: %w", err)
	}
	s.logger.Debug("compact written",
		zap.String("scope", scope.String()),
		zap.String("id", entry.ID))

	result := &AppendResult{Entry: entry, Limit: s.limit}

	entries, err := s.remote.List(ctx, scope, KindCompact)
	if err != nil {
		return result, &OverRetentionError{Limit: s.limit, Count: -1, Err: err}
	}

	sortByRecency(entries)
	if len(entries) <= s.limit {
		result.Retained = len(entries)
		return result, nil
	}

	victims := entries[s.limit:]
	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}

	results, err := s.remote.Delete(ctx, scope, ids)
	if err != nil {
		return result, &OverRetentionError{Limit: s.limit, Count: len(entries), Err: err}
	}

	var failed []DeleteResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		} else {
			result.Evicted = append(result.Evicted, r.ID)
		}
	}
	result.Retained = len(entries) - len(result.Evicted)

	if len(failed) > 0 {
		partial := &PartialFailureError{Attempted: len(ids), Failed: failed}
		return result, &OverRetentionError{Limit: s.limit, Count: result.Retained, Err: partial}
	}

	s.logger.Debug("compacts rotated",
		zap.String("scope", scope.String()),
		zap.Int("evicted", len(result.Evicted)),
		zap.Int("retained", result.Retained))
	return result, nil
}

// RetrieveCompact returns the compact at the given 1-based recency rank,
// rank 1 being the newest. Ranks are resolved at call time; they shift
// whenever an entry is deleted.
func (s *Store) RetrieveCompact(ctx context.Context, scope Scope, index int) (Entry, error) {
	entries, err := s.listSorted(ctx, scope)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoEntries
	}
	if index < 1 || index > len(entries) {
		return Entry{}, fmt.Errorf("compact %d of %d: %w", index, len(entries), ErrNotFound)
	}
	return entries[index-1], nil
}

// ListCompacts returns every compact in the scope, newest first. An empty
// scope yields an empty slice.
func (s *Store) ListCompacts(ctx context.Context, scope Scope) ([]Entry, error) {
	return s.listSorted(ctx, scope)
}

// DeleteCompact resolves the rank to an id at call time and deletes that
// entry, returning it. Repeating the call with the same rank acts on
// whatever entry occupies the rank afterwards.
func (s *Store) DeleteCompact(ctx context.Context, scope Scope, index int) (Entry, error) {
	entry, err := s.RetrieveCompact(ctx, scope, index)
	if err != nil {
		return Entry{}, err
	}

	results, err := s.remote.Delete(ctx, scope, []string{entry.ID})
	if err != nil {
		return Entry{}, fmt.Errorf("deleting compact %s: %w", entry.ID, err)
	}
	for _, r := range results {
		if r.ID == entry.ID && r.Err != nil {
			return Entry{}, fmt.Errorf("deleting compact %s: %w", entry.ID, r.Err)
		}
	}

	s.logger.Debug("compact deleted",
		zap.String("scope", scope.String()),
		zap.String("id", entry.ID),
		zap.Int("index", index))
	return entry, nil
}

func (s *Store) listSorted(ctx context.Context, scope Scope) ([]Entry, error) {
	entries, err := s.remote.List(ctx, scope, KindCompact)
	if err != nil {
		return nil, fmt.Errorf("listing compacts: %w", err)
	}
	sortByRecency(entries)
	return entries, nil
}
