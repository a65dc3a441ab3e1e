package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessapp/ota/internal/logger"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func TestFS_SetGetDelete(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(KeyLastKnownPackageVersion)
	assert.False(t, ok)

	s.Set(KeyLastKnownPackageVersion, "1.9.0")
	v, ok := s.Get(KeyLastKnownPackageVersion)
	assert.True(t, ok)
	assert.Equal(t, "1.9.0", v)

	s.Delete(KeyLastKnownPackageVersion)
	_, ok = s.Get(KeyLastKnownPackageVersion)
	assert.False(t, ok)
}

func TestFS_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewFS(dir)
	require.NoError(t, err)
	s1.Set(KeyLastKnownBundleID, "bundle-abc")
	s1.Set(KeyUserPostponedUpdate, `{"postponed_at_epoch_ms":1}`)

	s2, err := NewFS(dir)
	require.NoError(t, err)

	v, ok := s2.Get(KeyLastKnownBundleID)
	assert.True(t, ok)
	assert.Equal(t, "bundle-abc", v)
}

func TestFS_CorruptStateFileReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o644))

	s, err := NewFS(dir)
	require.NoError(t, err)

	_, ok := s.Get(KeyStoredDownload)
	assert.False(t, ok)

	// The store stays writable after a corrupt boot.
	s.Set(KeyStoredDownload, "x")
	v, ok := s.Get(KeyStoredDownload)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestReadWriteJSON(t *testing.T) {
	kv := NewMemory()

	type record struct {
		Version string `json:"version"`
		Count   int    `json:"count"`
	}

	WriteJSON(kv, "rec", record{Version: "2.0.0", Count: 3})

	var out record
	require.True(t, ReadJSON(kv, "rec", &out))
	assert.Equal(t, "2.0.0", out.Version)
	assert.Equal(t, 3, out.Count)

	var missing record
	assert.False(t, ReadJSON(kv, "nope", &missing))

	kv.Set("bad", "{{{")
	assert.False(t, ReadJSON(kv, "bad", &missing))
}
