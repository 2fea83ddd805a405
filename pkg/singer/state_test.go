package singer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStateEmptyPath(t *testing.T) {
	state, err := LoadState("")
	require.NoError(t, err)
	assert.Empty(t, state.Bookmarks)
}

func TestLoadStateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{"bookmarks": {"blasts": {"modify_time": "2021-04-01T00:00:00Z"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	state, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "2021-04-01T00:00:00Z",
		state.GetBookmark("blasts", "modify_time", "fallback"))
}

func TestLoadStateMissingFile(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestGetBookmarkFallback(t *testing.T) {
	state := NewState()
	assert.Equal(t, "2021-01-01T00:00:00Z",
		state.GetBookmark("blasts", "modify_time", "2021-01-01T00:00:00Z"))

	state.SetBookmark("blasts", "modify_time", "")
	assert.Equal(t, "fallback", state.GetBookmark("blasts", "modify_time", "fallback"))
}

func TestSetBookmarkOverwrites(t *testing.T) {
	state := NewState()
	state.SetBookmark("purchase_log", "date", "2021-01-01T00:00:00Z")
	state.SetBookmark("purchase_log", "date", "2021-02-01T00:00:00Z")
	assert.Equal(t, "2021-02-01T00:00:00Z",
		state.GetBookmark("purchase_log", "date", ""))
}
