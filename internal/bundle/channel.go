package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/service"
	"github.com/tessapp/ota/internal/utils"
)

// Channel is the code-bundle update channel. A bundle update is applied by
// fetching a manifest and reloading the app, without going through the OS
// installer. Platforms without a bundle runtime plug in Disabled.
type Channel interface {
	Enabled() bool
	// CurrentID is the identity of the bundle the app is running right now.
	CurrentID() string
	// ManifestID fetches the remote manifest identity without transferring
	// bundle contents.
	ManifestID(ctx context.Context) (string, error)
	// Fetch transfers the remote bundle if its identity differs from the
	// running one. Returns true only when a new bundle was actually retrieved.
	Fetch(ctx context.Context) (bool, error)
}

// Reloader restarts the application so a freshly fetched bundle takes effect.
type Reloader interface {
	Reload() error
}

type ReloadFunc func() error

func (f ReloadFunc) Reload() error { return f() }

type manifest struct {
	ID        string `json:"id"`
	Version   string `json:"version,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// HTTPChannel resolves the manifest over HTTP and tracks the applied bundle
// identity in a small state file under bundleDir.
type HTTPChannel struct {
	client      service.HTTPClient
	manifestURL string
	statePath   string
}

func NewHTTPChannel(client service.HTTPClient, manifestURL, bundleDir string) *HTTPChannel {
	if client == nil {
		client = service.NewHTTPClient(30 * time.Second)
	}
	return &HTTPChannel{
		client:      client,
		manifestURL: manifestURL,
		statePath:   filepath.Join(bundleDir, "current.json"),
	}
}

func (c *HTTPChannel) Enabled() bool { return c.manifestURL != "" }

func (c *HTTPChannel) CurrentID() string {
	var m manifest
	if err := utils.FileReader(c.statePath, utils.FileTypeJSON, &m); err != nil {
		logger.Debug("bundle: no current manifest: %v", err)
		return ""
	}
	return m.ID
}

func (c *HTTPChannel) ManifestID(ctx context.Context) (string, error) {
	m, err := c.remoteManifest(ctx)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (c *HTTPChannel) Fetch(ctx context.Context) (bool, error) {
	m, err := c.remoteManifest(ctx)
	if err != nil {
		return false, err
	}
	if m.ID == "" || m.ID == c.CurrentID() {
		return false, nil
	}
	if err := utils.CreateFile(c.statePath, m, utils.FileTypeJSON, 0o644); err != nil {
		return false, fmt.Errorf("failed to record fetched bundle: %w", err)
	}
	logger.Debug("bundle: fetched new bundle %s", m.ID)
	return true, nil
}

func (c *HTTPChannel) remoteManifest(ctx context.Context) (*manifest, error) {
	var m manifest
	if err := service.GetJSON(ctx, c.client, c.manifestURL, &m); err != nil {
		return nil, fmt.Errorf("failed to fetch bundle manifest: %w", err)
	}
	return &m, nil
}

// Disabled is the channel used where no bundle runtime exists.
type Disabled struct{}

func (Disabled) Enabled() bool                              { return false }
func (Disabled) CurrentID() string                          { return "" }
func (Disabled) ManifestID(context.Context) (string, error) { return "", nil }
func (Disabled) Fetch(context.Context) (bool, error)        { return false, nil }
