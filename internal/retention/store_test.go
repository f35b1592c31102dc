package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRemote is an in-memory RemoteStore. List returns entries in
// reverse insertion order so tests exercise the local sorting.
type fakeRemote struct {
	mu      sync.Mutex
	clock   time.Time
	seq     int
	entries map[string][]Entry

	writeErr  error
	listErr   error
	deleteErr error
	failIDs   map[string]error

	writeCalls  int
	listCalls   int
	deleteCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		entries: make(map[string][]Entry),
		failIDs: make(map[string]error),
	}
}

func (f *fakeRemote) key(scope Scope, kind Kind) string {
	return scope.String() + "/" + string(kind)
}

func (f *fakeRemote) List(_ context.Context, scope Scope, kind Kind) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	src := f.entries[f.key(scope, kind)]
	out := make([]Entry, len(src))
	for i, e := range src {
		out[len(src)-1-i] = e
	}
	return out, nil
}

func (f *fakeRemote) Write(_ context.Context, scope Scope, kind Kind, text string, metadata map[string]any) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if f.writeErr != nil {
		return Entry{}, f.writeErr
	}
	f.seq++
	e := Entry{
		ID:        fmt.Sprintf("id-%04d", f.seq),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: f.clock,
	}
	f.clock = f.clock.Add(time.Second)
	k := f.key(scope, kind)
	f.entries[k] = append(f.entries[k], e)
	return e, nil
}

func (f *fakeRemote) Delete(_ context.Context, scope Scope, ids []string) ([]DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	results := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		if err, ok := f.failIDs[id]; ok {
			results = append(results, DeleteResult{ID: id, Err: err})
			continue
		}
		f.removeLocked(scope, id)
		results = append(results, DeleteResult{ID: id})
	}
	return results, nil
}

// removeLocked deletes the id from every kind bucket of the scope, the
// way the remote's delete-by-id ignores kind.
func (f *fakeRemote) removeLocked(scope Scope, id string) {
	prefix := scope.String() + "/"
	for k, list := range f.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		kept := list[:0]
		for _, e := range list {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		f.entries[k] = kept
	}
}

// seed inserts an entry with explicit id and timestamp, bypassing the
// write clock.
func (f *fakeRemote) seed(scope Scope, kind Kind, id, text string, createdAt time.Time) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		f.seq++
		id = fmt.Sprintf("id-%04d", f.seq)
	}
	e := Entry{ID: id, Text: text, CreatedAt: createdAt}
	k := f.key(scope, kind)
	f.entries[k] = append(f.entries[k], e)
	return e
}

func (f *fakeRemote) count(scope Scope, kind Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries[f.key(scope, kind)])
}

func (f *fakeRemote) texts(scope Scope, kind Kind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries[f.key(scope, kind)] {
		out = append(out, e.Text)
	}
	return out
}

func newTestStore(t *testing.T, remote RemoteStore, limit int) *Store {
	t.Helper()
	s, err := NewStore(remote, Config{CompactLimit: limit}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil, Config{}, nil)
	require.Error(t, err)

	_, err = NewStore(newFakeRemote(), Config{CompactLimit: -1}, nil)
	require.ErrorIs(t, err, ErrInvalidLimit)

	s, err := NewStore(newFakeRemote(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompactLimit, s.CompactLimit())

	s, err = NewStore(newFakeRemote(), Config{CompactLimit: 9}, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, s.CompactLimit())
}

func TestAppendCompact_EmptyText(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 3)

	_, err := s.AppendCompact(context.Background(), GlobalScope(), "", nil)
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = s.AppendCompact(context.Background(), GlobalScope(), "  \n\t", nil)
	require.ErrorIs(t, err, ErrEmptyText)

	assert.Zero(t, remote.writeCalls)
}

func TestAppendCompact_BoundedAfterEveryCall(t *testing.T) {
	const limit = 3
	remote := newFakeRemote()
	s := newTestStore(t, remote, limit)
	scope := ProjectScope("vmem")

	for i := 1; i <= 2*limit; i++ {
		result, err := s.AppendCompact(context.Background(), scope, fmt.Sprintf("snapshot %d", i), nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, remote.count(scope, KindCompact), limit, "after append %d", i)
		assert.LessOrEqual(t, result.Retained, limit)
		assert.Contains(t, remote.texts(scope, KindCompact), fmt.Sprintf("snapshot %d", i),
			"fresh write must never be evicted")
	}
}

func TestAppendCompact_RotationWindow(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 5)
	scope := GlobalScope()

	for i := 1; i <= 7; i++ {
		_, err := s.AppendCompact(context.Background(), scope, fmt.Sprintf("c%d", i), nil)
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []string{"c3", "c4", "c5", "c6", "c7"}, remote.texts(scope, KindCompact))

	newest, err := s.RetrieveCompact(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, "c7", newest.Text)

	oldest, err := s.RetrieveCompact(context.Background(), scope, 5)
	require.NoError(t, err)
	assert.Equal(t, "c3", oldest.Text)

	_, err = s.RetrieveCompact(context.Background(), scope, 6)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNoEntries)
}

func TestAppendCompact_ReportsEvictions(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 2)
	scope := GlobalScope()

	r1, err := s.AppendCompact(context.Background(), scope, "one", nil)
	require.NoError(t, err)
	assert.Empty(t, r1.Evicted)
	assert.Equal(t, 1, r1.Retained)
	assert.Equal(t, 2, r1.Limit)

	r2, err := s.AppendCompact(context.Background(), scope, "two", nil)
	require.NoError(t, err)
	assert.Empty(t, r2.Evicted)
	assert.Equal(t, 2, r2.Retained)

	r3, err := s.AppendCompact(context.Background(), scope, "three", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{r1.Entry.ID}, r3.Evicted)
	assert.Equal(t, 2, r3.Retained)
}

func TestAppendCompact_WriteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = fmt.Errorf("boom: %w", ErrRemoteUnavailable)
	s := newTestStore(t, remote, 3)

	result, err := s.AppendCompact(context.Background(), GlobalScope(), "text", nil)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestAppendCompact_ListFailureIsSoftWarning(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 2)
	scope := GlobalScope()

	_, err := s.AppendCompact(context.Background(), scope, "first", nil)
	require.NoError(t, err)

	remote.listErr = fmt.Errorf("list timeout: %w", ErrRemoteUnavailable)
	result, err := s.AppendCompact(context.Background(), scope, "second", nil)

	require.NotNil(t, result, "entry was written, result must be usable")
	assert.NotEmpty(t, result.Entry.ID)

	var over *OverRetentionError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 2, over.Limit)
	assert.Equal(t, -1, over.Count)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestAppendCompact_PartialEvictionFailure(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 2)
	scope := GlobalScope()

	r1, err := s.AppendCompact(context.Background(), scope, "one", nil)
	require.NoError(t, err)
	_, err = s.AppendCompact(context.Background(), scope, "two", nil)
	require.NoError(t, err)

	remote.failIDs[r1.Entry.ID] = fmt.Errorf("locked: %w", ErrRemoteUnavailable)
	result, err := s.AppendCompact(context.Background(), scope, "three", nil)

	require.NotNil(t, result)
	assert.Equal(t, 3, result.Retained, "failed eviction leaves the scope over limit")
	assert.Empty(t, result.Evicted)

	var over *OverRetentionError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 3, over.Count)

	var partial *PartialFailureError
	require.ErrorAs(t, over.Err, &partial)
	assert.Equal(t, []string{r1.Entry.ID}, partial.FailedIDs())
	assert.Equal(t, 1, partial.Attempted)
}

func TestRetrieveCompact_NewestFirst(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 10)
	scope := ProjectScope("demo")

	for _, text := range []string{"alpha", "beta", "gamma"} {
		_, err := s.AppendCompact(context.Background(), scope, text, nil)
		require.NoError(t, err)
	}

	entry, err := s.RetrieveCompact(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, "gamma", entry.Text)

	entry, err = s.RetrieveCompact(context.Background(), scope, 3)
	require.NoError(t, err)
	assert.Equal(t, "alpha", entry.Text)
}

func TestRetrieveCompact_EmptyScope(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), 5)

	_, err := s.RetrieveCompact(context.Background(), GlobalScope(), 1)
	require.ErrorIs(t, err, ErrNoEntries)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveCompact_OutOfRange(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 5)
	scope := GlobalScope()

	_, err := s.AppendCompact(context.Background(), scope, "only", nil)
	require.NoError(t, err)

	for _, index := range []int{0, -1, 2, 99} {
		_, err := s.RetrieveCompact(context.Background(), scope, index)
		require.ErrorIs(t, err, ErrNotFound, "index %d", index)
		assert.NotErrorIs(t, err, ErrNoEntries, "index %d", index)
	}
}

func TestRetrieveCompact_TieBrokenByID(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 5)
	scope := GlobalScope()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	remote.seed(scope, KindCompact, "id-0001", "earlier insert", at)
	remote.seed(scope, KindCompact, "id-0002", "later insert", at)

	entry, err := s.RetrieveCompact(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, "id-0002", entry.ID)
}

func TestListCompacts_OrderAndEmpty(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 10)
	scope := GlobalScope()

	entries, err := s.ListCompacts(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, text := range []string{"first", "second", "third"} {
		_, err := s.AppendCompact(context.Background(), scope, text, nil)
		require.NoError(t, err)
	}

	entries, err = s.ListCompacts(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Text)
	assert.Equal(t, "second", entries[1].Text)
	assert.Equal(t, "first", entries[2].Text)
}

func TestDeleteCompact_RemovesFromListing(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 10)
	scope := GlobalScope()

	for _, text := range []string{"a", "b", "c"} {
		_, err := s.AppendCompact(context.Background(), scope, text, nil)
		require.NoError(t, err)
	}

	deleted, err := s.DeleteCompact(context.Background(), scope, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", deleted.Text)

	entries, err := s.ListCompacts(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEqual(t, deleted.ID, e.ID)
	}
}

func TestDeleteCompact_RanksReresolve(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 10)
	scope := GlobalScope()

	for _, text := range []string{"a", "b", "c"} {
		_, err := s.AppendCompact(context.Background(), scope, text, nil)
		require.NoError(t, err)
	}

	first, err := s.DeleteCompact(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", first.Text)

	second, err := s.DeleteCompact(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", second.Text, "rank 1 re-resolves after each delete")
}

func TestDeleteCompact_Errors(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 10)
	scope := GlobalScope()

	_, err := s.DeleteCompact(context.Background(), scope, 1)
	require.ErrorIs(t, err, ErrNoEntries)

	entry, err := s.AppendCompact(context.Background(), scope, "kept", nil)
	require.NoError(t, err)

	_, err = s.DeleteCompact(context.Background(), scope, 5)
	require.ErrorIs(t, err, ErrNotFound)

	remote.failIDs[entry.Entry.ID] = fmt.Errorf("refused: %w", ErrRemoteUnavailable)
	_, err = s.DeleteCompact(context.Background(), scope, 1)
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, 1, remote.count(scope, KindCompact))
}

func TestAppendCompact_ScopeIsolation(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, 2)

	for i := 0; i < 3; i++ {
		_, err := s.AppendCompact(context.Background(), ProjectScope("alpha"), fmt.Sprintf("alpha %d", i), nil)
		require.NoError(t, err)
		_, err = s.AppendCompact(context.Background(), GlobalScope(), fmt.Sprintf("global %d", i), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, remote.count(ProjectScope("alpha"), KindCompact))
	assert.Equal(t, 2, remote.count(GlobalScope(), KindCompact))
}

func TestOverRetentionError_Message(t *testing.T) {
	unknown := &OverRetentionError{Limit: 5, Count: -1, Err: errors.New("list failed")}
	assert.Contains(t, unknown.Error(), "unknown")
	assert.Contains(t, unknown.Error(), "limit 5")

	known := &OverRetentionError{Limit: 5, Count: 6, Err: errors.New("delete failed")}
	assert.Contains(t, known.Error(), "6 compacts retained")
}
