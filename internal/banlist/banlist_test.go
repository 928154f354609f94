package banlist

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestMemoryOnlyStore(t *testing.T) {
	st, err := Open(testLogger(), nil, "")
	require.NoError(t, err)

	assert.False(t, st.IsBanned(7))
	require.NoError(t, st.AddBanned(7, "alice"))
	assert.True(t, st.IsBanned(7))
	require.NoError(t, st.RemoveBanned(7))
	assert.False(t, st.IsBanned(7))
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")

	st, err := Open(testLogger(), nil, path)
	require.NoError(t, err)
	require.NoError(t, st.AddBanned(7, "alice"))
	require.NoError(t, st.AddBanned(3, "bob"))

	reloaded, err := Open(testLogger(), nil, path)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBanned(7))
	assert.True(t, reloaded.IsBanned(3))

	entries := reloaded.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].ID)
	assert.Equal(t, "bob", entries[0].Name)
}

func TestRemovePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")

	st, err := Open(testLogger(), nil, path)
	require.NoError(t, err)
	require.NoError(t, st.AddBanned(7, "alice"))
	require.NoError(t, st.RemoveBanned(7))

	reloaded, err := Open(testLogger(), nil, path)
	require.NoError(t, err)
	assert.False(t, reloaded.IsBanned(7))
	assert.Empty(t, reloaded.Entries())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	st, err := Open(testLogger(), nil, "")
	require.NoError(t, err)
	assert.NoError(t, st.RemoveBanned(99))
}

func TestCorruptFileRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Open(testLogger(), nil, path)
	assert.Error(t, err)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bans.json")

	st, err := Open(testLogger(), nil, path)
	require.NoError(t, err)
	require.NoError(t, st.AddBanned(1, "alice"))
	require.NoError(t, st.AddBanned(2, "bob"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp."), "leftover temp file %s", e.Name())
	}
}
