package retention

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// PruneReason is a bitmask of the rules that marked an entry for
// deletion. An entry can match several rules and is still deleted once.
type PruneReason uint8

const (
	// ReasonDuplicate marks an older copy of a text that appears more
	// than once in the scope.
	ReasonDuplicate PruneReason = 1 << iota
	// ReasonExpired marks an entry older than the age cutoff.
	ReasonExpired
	// ReasonSweepAll marks an entry caught by a delete-everything sweep.
	ReasonSweepAll
)

// Has reports whether the reason includes r.
func (p PruneReason) Has(r PruneReason) bool { return p&r != 0 }

func (p PruneReason) String() string {
	var parts []string
	if p.Has(ReasonDuplicate) {
		parts = append(parts, "duplicate")
	}
	if p.Has(ReasonExpired) {
		parts = append(parts, "expired")
	}
	if p.Has(ReasonSweepAll) {
		parts = append(parts, "all")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// PruneOptions selects which rules a sweep applies. Zero options produce
// an empty deletion set.
type PruneOptions struct {
	// Duplicates groups entries by exact text equality and marks all but
	// the newest copy in each group. No normalization, no fuzzy match.
	Duplicates bool
	// OlderThanDays marks entries created strictly before
	// now - OlderThanDays. Zero disables the age rule.
	OlderThanDays int
	// All marks every entry. Used by the compact sweep's full wipe.
	All bool
	// DryRun computes the deletion set without issuing any delete. The
	// set is exactly what an immediate real run would delete.
	DryRun bool
}

func (o PruneOptions) active() bool {
	return o.Duplicates || o.OlderThanDays > 0 || o.All
}

// PruneCandidate is one entry marked for deletion and why.
type PruneCandidate struct {
	Entry  Entry
	Reason PruneReason
}

// PruneResult reports a sweep. On a dry run Deleted and Failed stay
// empty; Candidates always holds the full marked set, oldest first.
type PruneResult struct {
	Examined   int
	Candidates []PruneCandidate
	Deleted    []string
	Failed     []DeleteResult
	DryRun     bool
}

// Prune sweeps one (scope, kind) partition. The duplicate and age rules
// are unioned; each marked entry is deleted once. Individual delete
// failures do not abort the batch: they come back in Result.Failed and as
// a *PartialFailureError next to the otherwise-valid result.
func (s *Store) Prune(ctx context.Context, scope Scope, kind Kind, opts PruneOptions) (*PruneResult, error) {
	if opts.OlderThanDays < 0 {
		return nil, fmt.Errorf("olderThanDays must not be negative: %d", opts.OlderThanDays)
	}

	entries, err := s.remote.List(ctx, scope, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s entries: %w", kind, err)
	}

	result := &PruneResult{Examined: len(entries), DryRun: opts.DryRun}
	if !opts.active() || len(entries) == 0 {
		return result, nil
	}

	marked := make(map[string]PruneReason)

	if opts.All {
		for _, e := range entries {
			marked[e.ID] |= ReasonSweepAll
		}
	}

	if opts.Duplicates {
		for _, id := range duplicateIDs(entries) {
			marked[id] |= ReasonDuplicate
		}
	}

	if opts.OlderThanDays > 0 {
		cutoff := s.now().AddDate(0, 0, -opts.OlderThanDays)
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				marked[e.ID] |= ReasonExpired
			}
		}
	}

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	for id, reason := range marked {
		result.Candidates = append(result.Candidates, PruneCandidate{Entry: byID[id], Reason: reason})
	}
	sort.Slice(result.Candidates, func(i, j int) bool {
		return newerThan(result.Candidates[j].Entry, result.Candidates[i].Entry)
	})

	s.logger.Debug("prune computed",
		zap.String("scope", scope.String()),
		zap.String("kind", string(kind)),
		zap.Int("examined", result.Examined),
		zap.Int("marked", len(result.Candidates)),
		zap.Bool("dry_run", opts.DryRun))

	if opts.DryRun || len(result.Candidates) == 0 {
		return result, nil
	}

	ids := make([]string, len(result.Candidates))
	for i, c := range result.Candidates {
		ids[i] = c.Entry.ID
	}

	outcomes, err := s.remote.Delete(ctx, scope, ids)
	if err != nil {
		return result, fmt.Errorf("deleting %d entries: %w", len(ids), err)
	}

	for _, r := range outcomes {
		if r.Err != nil {
			result.Failed = append(result.Failed, r)
		} else {
			result.Deleted = append(result.Deleted, r.ID)
		}
	}

	if len(result.Failed) > 0 {
		return result, &PartialFailureError{Attempted: len(ids), Failed: result.Failed}
	}
	return result, nil
}

// duplicateIDs returns the ids of every entry that shares its exact text
// with a newer entry. The newest copy in each group survives; ties fall
// back to id order, matching the recency ranking.
func duplicateIDs(entries []Entry) []string {
	newest := make(map[string]Entry)
	for _, e := range entries {
		keep, ok := newest[e.Text]
		if !ok || newerThan(e, keep) {
			newest[e.Text] = e
		}
	}

	var ids []string
	for _, e := range entries {
		if newest[e.Text].ID != e.ID {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
