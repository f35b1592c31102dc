package autosave

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreAt(t.TempDir(), t.TempDir())
}

func TestLoadMissingFiles(t *testing.T) {
	store := newTestStore(t)

	settings := store.Load()
	assert.Empty(t, settings.GlobalMode)
	assert.Empty(t, settings.ProjectMode)
	assert.Equal(t, ModeOff, settings.Effective())
}

func TestLoadGlobalConfig(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.GlobalPath()), 0700))
	require.NoError(t, os.WriteFile(store.GlobalPath(), []byte("auto_save:\n  mode: prompt\n  per_project: true\n"), 0600))

	settings := store.Load()
	assert.Equal(t, ModePrompt, settings.GlobalMode)
	assert.Equal(t, ModePrompt, settings.Effective())
}

func TestLoadProjectOverride(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.GlobalPath()), 0700))
	require.NoError(t, os.WriteFile(store.GlobalPath(), []byte("auto_save:\n  mode: on\n"), 0600))
	require.NoError(t, os.WriteFile(store.ProjectPath(), []byte("auto_save: off\n"), 0600))

	settings := store.Load()
	assert.Equal(t, ModeOn, settings.GlobalMode)
	assert.Equal(t, ModeOff, settings.ProjectMode)
	assert.Equal(t, ModeOff, settings.Effective())
}

func TestLoadProjectBooleanValue(t *testing.T) {
	store := newTestStore(t)
	// YAML 1.1 parsers turn bare on/off into booleans; the loader must
	// accept the explicit bool spelling too.
	require.NoError(t, os.WriteFile(store.ProjectPath(), []byte("auto_save: true\n"), 0600))

	settings := store.Load()
	assert.Equal(t, ModeOn, settings.ProjectMode)
}

func TestLoadCorruptFileTreatedAsUnset(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.ProjectPath(), []byte("auto_save: [unterminated\n"), 0600))

	settings := store.Load()
	assert.Empty(t, settings.ProjectMode)
	assert.Equal(t, ModeOff, settings.Effective())
}

func TestSetGlobal(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetGlobal(ModeOn))

	content, err := os.ReadFile(store.GlobalPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "mode: on")

	info, err := os.Stat(store.GlobalPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(store.GlobalPath()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	// Round trip.
	settings := store.Load()
	assert.Equal(t, ModeOn, settings.GlobalMode)
}

func TestSetProject(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetProject(ModePrompt))

	content, err := os.ReadFile(store.ProjectPath())
	require.NoError(t, err)
	assert.Equal(t, "auto_save: prompt\n", string(content))

	settings := store.Load()
	assert.Equal(t, ModePrompt, settings.ProjectMode)
}

func TestSetRejectsInvalidMode(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SetGlobal(Mode("auto")))
	assert.Error(t, store.SetProject(Mode("")))
}
