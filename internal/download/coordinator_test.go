package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessapp/ota/internal/config"
	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/service"
	"github.com/tessapp/ota/internal/store"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func testCoordinator(t *testing.T, kv store.KV) *Coordinator {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.SideloadSupported = true
	return New(&cfg, service.NewHTTPClient(0), kv)
}

func packageOffer(url string, size int64) *models.UpdateOffer {
	return &models.UpdateOffer{
		Available:     true,
		Channel:       models.ChannelPackage,
		Version:       "2.0.0",
		FileSizeBytes: size,
		DownloadURL:   url,
	}
}

func TestDownload_HappyPath(t *testing.T) {
	payload := bytes.Repeat([]byte("tessa"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	kv := store.NewMemory()
	c := testCoordinator(t, kv)

	var ticks []models.DownloadProgress
	stored, err := c.Download(context.Background(), packageOffer(srv.URL, int64(len(payload))), func(p models.DownloadProgress) {
		ticks = append(ticks, p)
	})
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", stored.Version)
	assert.True(t, stored.Complete)

	info, err := os.Stat(stored.CachePath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())

	// The durable record matches what was returned.
	var persisted models.StoredDownload
	require.True(t, store.ReadJSON(kv, store.KeyStoredDownload, &persisted))
	assert.Equal(t, stored.CachePath, persisted.CachePath)
	assert.True(t, persisted.Complete)

	// Progress record is cleared once the transfer completes.
	_, ok := kv.Get(store.KeyDownloadProgress)
	assert.False(t, ok)

	// Progress is monotone and bounded.
	require.NotEmpty(t, ticks)
	var prev int64
	for _, p := range ticks {
		assert.GreaterOrEqual(t, p.BytesLoaded, prev)
		assert.GreaterOrEqual(t, p.Percent, 0.0)
		assert.LessOrEqual(t, p.Percent, 100.0)
		prev = p.BytesLoaded
	}
	assert.Equal(t, int64(len(payload)), ticks[len(ticks)-1].BytesLoaded)
}

func TestDownload_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c := testCoordinator(t, store.NewMemory())
	offer := packageOffer(srv.URL, 7)

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		_, _ = c.Download(context.Background(), offer, nil)
	}()

	<-started
	// Give the first call time to take the guard.
	for {
		c.mu.Lock()
		inFlight := c.inFlight
		c.mu.Unlock()
		if inFlight {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	_, err := c.Download(context.Background(), offer, nil)
	assert.ErrorIs(t, err, errs.ErrDownloadInFlight)

	close(release)
	wg.Wait()

	// Guard is released once the first transfer finishes.
	c.mu.Lock()
	stuck := c.inFlight
	c.mu.Unlock()
	assert.False(t, stuck)
}

func TestDownload_PersistsProgressMidTransfer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
		_, _ = w.Write(bytes.Repeat([]byte("b"), 1024))
	}))
	defer srv.Close()

	kv := store.NewMemory()
	c := testCoordinator(t, kv)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Download(context.Background(), packageOffer(srv.URL, 2048), nil)
	}()

	// The first chunk's tick writes the resume hint; a crash here would
	// leave it behind for the next launch.
	deadline := time.Now().Add(5 * time.Second)
	var hint models.DownloadProgress
	for {
		if store.ReadJSON(kv, store.KeyDownloadProgress, &hint) {
			break
		}
		require.True(t, time.Now().Before(deadline), "no progress record persisted mid-transfer")
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, hint.BytesLoaded, int64(0))
	assert.Equal(t, int64(2048), hint.BytesTotal)
	assert.Less(t, hint.Percent, 100.0)

	close(release)
	wg.Wait()

	// Completion removes the hint again.
	_, ok := kv.Get(store.KeyDownloadProgress)
	assert.False(t, ok)
}

func TestDownload_RefusesNonPackageOffer(t *testing.T) {
	c := testCoordinator(t, store.NewMemory())

	_, err := c.Download(context.Background(), &models.UpdateOffer{
		Available: true,
		Channel:   models.ChannelBundle,
	}, nil)
	assert.ErrorIs(t, err, errs.ErrDownloadFailed)

	_, err = c.Download(context.Background(), packageOffer("", 0), nil)
	assert.ErrorIs(t, err, errs.ErrDownloadFailed)
}

func TestDownload_RefusesUnsupportedPlatform(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.SideloadSupported = false
	c := New(&cfg, nil, store.NewMemory())

	_, err := c.Download(context.Background(), packageOffer("http://example.com/a.pkg", 1), nil)
	assert.ErrorIs(t, err, errs.ErrUnsupportedPlatform)
}

func TestDownload_EmptyBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	kv := store.NewMemory()
	c := testCoordinator(t, kv)

	_, err := c.Download(context.Background(), packageOffer(srv.URL, 0), nil)
	assert.ErrorIs(t, err, errs.ErrDownloadFailed)

	// Failure clears the resume hint and leaves no completed record.
	_, ok := kv.Get(store.KeyDownloadProgress)
	assert.False(t, ok)
	_, ok = kv.Get(store.KeyStoredDownload)
	assert.False(t, ok)
}

func TestDownload_ServerErrorSurfacedWithoutRetry(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testCoordinator(t, store.NewMemory())
	_, err := c.Download(context.Background(), packageOffer(srv.URL, 0), nil)
	assert.ErrorIs(t, err, errs.ErrDownloadFailed)
	assert.Equal(t, 1, requests)
}

func TestDownload_ReplacesStaleFile(t *testing.T) {
	payload := []byte("new artifact bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := testCoordinator(t, store.NewMemory())
	stale := c.CachePath("2.0.0")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale leftovers from a previous attempt"), 0o644))

	stored, err := c.Download(context.Background(), packageOffer(srv.URL, int64(len(payload))), nil)
	require.NoError(t, err)

	got, err := os.ReadFile(stored.CachePath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCompleted_SelfHealsMissingFile(t *testing.T) {
	kv := store.NewMemory()
	store.WriteJSON(kv, store.KeyStoredDownload, models.StoredDownload{
		Version:   "2.0.0",
		CachePath: "/nonexistent/tessa-2.0.0.pkg",
		Complete:  true,
	})

	_, ok := Completed(kv)
	assert.False(t, ok)

	// The stale record was purged, not just hidden.
	_, present := kv.Get(store.KeyStoredDownload)
	assert.False(t, present)
}

func TestCompleted_FindsVerifiedDownload(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/tessa-2.0.0.pkg"
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

	kv := store.NewMemory()
	store.WriteJSON(kv, store.KeyStoredDownload, models.StoredDownload{
		Version:   "2.0.0",
		CachePath: path,
		Complete:  true,
	})

	stored, ok := Completed(kv)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", stored.Version)
}
