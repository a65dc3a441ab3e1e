package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/runner"
	"github.com/tessapp/ota/internal/store"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func storedWithArtifact(t *testing.T) *models.StoredDownload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tessa-2.0.0.pkg")
	require.NoError(t, os.WriteFile(path, []byte("artifact"), 0o644))
	return &models.StoredDownload{
		Version:   "2.0.0",
		CachePath: path,
		Complete:  true,
	}
}

func TestInstall_FirstStrategyWins(t *testing.T) {
	mr := runner.NewMockRunner()
	o := New(store.NewMemory(), StaticGate(true), DefaultStrategies(mr, "pkginstall", "application/vnd.tessa.package-archive"))

	stored := storedWithArtifact(t)
	result, err := o.Install(context.Background(), stored)
	require.NoError(t, err)

	assert.Equal(t, OutcomeLaunched, result.Outcome)
	assert.Equal(t, "content-uri", result.Strategy)
	// Only the first strategy ran.
	assert.True(t, mr.VerifyRunCount("pkginstall", 1))
}

func TestInstall_FallsThroughToNextStrategy(t *testing.T) {
	stored := storedWithArtifact(t)

	mr := runner.NewMockRunner()
	mr.AddResponse("pkginstall|--action|install|--uri|content://"+stored.CachePath+"|--mime|mime|--grant-read",
		nil, errors.New("unsupported action"))

	o := New(store.NewMemory(), StaticGate(true), DefaultStrategies(mr, "pkginstall", "mime"))

	result, err := o.Install(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLaunched, result.Outcome)
	assert.Equal(t, "file-uri", result.Strategy)
	assert.True(t, mr.VerifyRunCount("pkginstall", 2))
}

func TestInstall_ExhaustionEndsInManualFallback(t *testing.T) {
	mr := runner.NewMockRunner()
	mr.ResponseFunc = func(string, ...string) ([]byte, error) {
		return nil, errors.New("installer not present")
	}

	o := New(store.NewMemory(), StaticGate(true), DefaultStrategies(mr, "pkginstall", "mime"))

	stored := storedWithArtifact(t)
	result, err := o.Install(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, OutcomeManualFallback, result.Outcome)
	assert.Equal(t, stored.CachePath, result.CachePath)
	// Every strategy was attempted before giving up.
	assert.True(t, mr.VerifyRunCount("pkginstall", 3))
}

func TestInstall_MissingArtifactPurgesRecord(t *testing.T) {
	kv := store.NewMemory()
	store.WriteJSON(kv, store.KeyStoredDownload, models.StoredDownload{Version: "2.0.0", Complete: true})

	o := New(kv, StaticGate(true), nil)
	_, err := o.Install(context.Background(), &models.StoredDownload{
		Version:   "2.0.0",
		CachePath: "/nonexistent/a.pkg",
	})
	assert.ErrorIs(t, err, errs.ErrArtifactMissing)

	_, present := kv.Get(store.KeyStoredDownload)
	assert.False(t, present)
}

func TestInstall_PublishedPathFallback(t *testing.T) {
	published := filepath.Join(t.TempDir(), "tessa-2.0.0.pkg")
	require.NoError(t, os.WriteFile(published, []byte("artifact"), 0o644))

	mr := runner.NewMockRunner()
	o := New(store.NewMemory(), StaticGate(true), DefaultStrategies(mr, "pkginstall", "mime"))

	result, err := o.Install(context.Background(), &models.StoredDownload{
		Version:       "2.0.0",
		CachePath:     "/nonexistent/a.pkg",
		PublishedPath: published,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeLaunched, result.Outcome)
	assert.True(t, mr.VerifyCommand("pkginstall",
		"--action", "install", "--uri", "content://"+published,
		"--mime", "mime", "--grant-read"))
}

func TestInstall_DeclinedPermissionSkipsStrategies(t *testing.T) {
	mr := runner.NewMockRunner()
	o := New(store.NewMemory(), StaticGate(false), DefaultStrategies(mr, "pkginstall", "mime"))

	result, err := o.Install(context.Background(), storedWithArtifact(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeManualFallback, result.Outcome)
	// No installer launch was even attempted.
	assert.True(t, mr.VerifyRunCount("pkginstall", 0))
}

func TestPromptedGate_PersistsGrant(t *testing.T) {
	kv := store.NewMemory()
	g := &PromptedGate{KV: kv, Prompter: fakePrompter{answer: true}}

	assert.False(t, g.Allowed(context.Background()))

	granted, err := g.Request(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	// The grant sticks without re-prompting.
	assert.True(t, g.Allowed(context.Background()))
}

type fakePrompter struct{ answer bool }

func (f fakePrompter) Confirm(string) (bool, error) { return f.answer, nil }
func (f fakePrompter) Prompt(string) (string, error) { return "", nil }
