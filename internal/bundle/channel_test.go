package bundle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessapp/ota/internal/logger"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func manifestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPChannel_FetchNewBundle(t *testing.T) {
	srv := manifestServer(t, `{"id":"bundle-7f3a","version":"2.0.0"}`)
	ch := NewHTTPChannel(srv.Client(), srv.URL, t.TempDir())

	require.True(t, ch.Enabled())
	assert.Equal(t, "", ch.CurrentID())

	fetched, err := ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "bundle-7f3a", ch.CurrentID())
}

func TestHTTPChannel_FetchIsIdempotent(t *testing.T) {
	srv := manifestServer(t, `{"id":"bundle-7f3a"}`)
	ch := NewHTTPChannel(srv.Client(), srv.URL, t.TempDir())

	fetched, err := ch.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, fetched)

	// Remote identity matches the applied one: nothing to do.
	fetched, err = ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)
}

func TestHTTPChannel_ManifestIDDoesNotTouchState(t *testing.T) {
	srv := manifestServer(t, `{"id":"bundle-next"}`)
	ch := NewHTTPChannel(srv.Client(), srv.URL, t.TempDir())

	id, err := ch.ManifestID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bundle-next", id)
	assert.Equal(t, "", ch.CurrentID())
}

func TestHTTPChannel_EmptyManifestIdentityIsNoUpdate(t *testing.T) {
	srv := manifestServer(t, `{"id":""}`)
	ch := NewHTTPChannel(srv.Client(), srv.URL, t.TempDir())

	fetched, err := ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)
}

func TestHTTPChannel_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	ch := NewHTTPChannel(srv.Client(), srv.URL, t.TempDir())

	_, err := ch.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPChannel_StateSurvivesRestart(t *testing.T) {
	srv := manifestServer(t, `{"id":"bundle-1"}`)
	dir := t.TempDir()

	ch := NewHTTPChannel(srv.Client(), srv.URL, dir)
	_, err := ch.Fetch(context.Background())
	require.NoError(t, err)

	reopened := NewHTTPChannel(srv.Client(), srv.URL, dir)
	assert.Equal(t, "bundle-1", reopened.CurrentID())
}

func TestDisabledChannel(t *testing.T) {
	var ch Channel = Disabled{}
	assert.False(t, ch.Enabled())
	assert.Equal(t, "", ch.CurrentID())

	fetched, err := ch.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)
}
