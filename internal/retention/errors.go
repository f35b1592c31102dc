package retention

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested index or id does not exist at
	// resolution time.
	ErrNotFound = errors.New("entry not found")

	// ErrNoEntries indicates the scope holds no entries at all. It
	// matches ErrNotFound under errors.Is so callers that only care
	// about "nothing there" need a single check.
	ErrNoEntries = fmt.Errorf("no entries stored: %w", ErrNotFound)

	// ErrRemoteUnavailable indicates a transport-level failure talking
	// to the remote store. Remote store implementations wrap their
	// connection, timeout, and non-2xx failures with it.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrEmptyText rejects writes with no content.
	ErrEmptyText = errors.New("text is empty")

	// ErrInvalidLimit rejects non-positive retention limits.
	ErrInvalidLimit = errors.New("retention limit must be positive")
)

// OverRetentionError is the soft warning returned by AppendCompact when
// the write succeeded but the rotation that follows it did not: the scope
// is left holding more than Limit compacts until a later append or prune
// catches up. The new entry is stored; callers should surface the warning
// and treat the append as successful.
type OverRetentionError struct {
	Limit int
	Count int // compacts present when known, -1 when the follow-up list failed
	Err   error
}

func (e *OverRetentionError) Error() string {
	if e.Count < 0 {
		return fmt.Sprintf("retention cleanup failed, compact count unknown (limit %d): %v", e.Limit, e.Err)
	}
	return fmt.Sprintf("%d compacts retained, limit is %d: %v", e.Count, e.Limit, e.Err)
}

func (e *OverRetentionError) Unwrap() error { return e.Err }

// PartialFailureError reports a batch delete in which some ids failed.
// Failed holds only the failing ids with their reasons; the remaining
// attempted ids succeeded.
type PartialFailureError struct {
	Attempted int
	Failed    []DeleteResult
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d deletes failed", len(e.Failed), e.Attempted)
}

// Unwrap exposes the individual failure causes to errors.Is and
// errors.As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FailedIDs lists the ids that could not be deleted.
func (e *PartialFailureError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}
