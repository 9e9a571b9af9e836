package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	want := doc{Name: "queue", Count: 3}
	require.NoError(t, SaveJSON(path, want))

	var got doc
	ok, err := LoadJSON(path, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLoadMissingFile(t *testing.T) {
	var got doc
	ok, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, doc{}, got, "missing file must leave the target untouched")
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got doc
	_, err := LoadJSON(path, &got)
	assert.Error(t, err)
}

func TestSaveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, SaveJSON(path, doc{Name: "old", Count: 1}))
	require.NoError(t, SaveJSON(path, doc{Name: "new", Count: 2}))

	var got doc
	_, err := LoadJSON(path, &got)
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "new", Count: 2}, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, SaveJSON(path, doc{Name: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, SaveJSON(path, doc{}))
	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path), "removing a missing file is not an error")
}
