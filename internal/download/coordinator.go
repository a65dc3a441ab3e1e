package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tessapp/ota/internal/config"
	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/service"
	"github.com/tessapp/ota/internal/store"
	"github.com/tessapp/ota/internal/utils"
)

// ProgressFunc observes a running transfer. It is invoked on every I/O tick
// with a freshly computed snapshot.
type ProgressFunc func(models.DownloadProgress)

// Coordinator streams a package artifact into the private cache. Only one
// download may be in flight; a second call fails fast.
type Coordinator struct {
	Config     config.Config
	HTTPClient service.HTTPClient
	KV         store.KV

	mu       sync.Mutex
	inFlight bool
}

func New(conf *config.Config, client service.HTTPClient, kv store.KV) *Coordinator {
	if conf == nil {
		def := config.Default()
		conf = &def
	}
	if client == nil {
		// Transfers are long-lived by design; no overall timeout.
		client = service.NewHTTPClient(0)
	}
	if kv == nil {
		kv = store.NewMemory()
	}

	return &Coordinator{
		Config:     *conf,
		HTTPClient: client,
		KV:         kv,
	}
}

// Download transfers the offered package artifact to the cache and persists
// a StoredDownload once the file is verified present and non-empty. Failures
// clear the progress record and surface to the caller; retrying is a
// caller-initiated action.
func (c *Coordinator) Download(ctx context.Context, offer *models.UpdateOffer, onProgress ProgressFunc) (*models.StoredDownload, error) {
	if err := c.precheck(offer); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, errs.ErrDownloadInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	stored, err := c.transfer(ctx, offer, onProgress)
	if err != nil {
		c.KV.Delete(store.KeyDownloadProgress)
		return nil, err
	}
	return stored, nil
}

func (c *Coordinator) precheck(offer *models.UpdateOffer) error {
	if !c.Config.SideloadSupported {
		return errs.ErrUnsupportedPlatform
	}
	if offer == nil || !offer.Available || offer.Channel != models.ChannelPackage {
		return fmt.Errorf("%w: not a package offer", errs.ErrDownloadFailed)
	}
	if offer.DownloadURL == "" {
		return fmt.Errorf("%w: offer has no download URL", errs.ErrDownloadFailed)
	}
	return nil
}

func (c *Coordinator) transfer(ctx context.Context, offer *models.UpdateOffer, onProgress ProgressFunc) (*models.StoredDownload, error) {
	cachePath := c.CachePath(offer.Version)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: cache dir: %v", errs.ErrDownloadFailed, err)
	}

	// A stale file at the target path belongs to an older attempt.
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		logger.Debug("failed to remove stale artifact %s: %v", cachePath, err)
	}

	resp, err := service.Get(ctx, c.HTTPClient, offer.DownloadURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDownloadFailed, err)
	}
	defer utils.Try(resp.Body.Close)

	f, err := os.OpenFile(cachePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", errs.ErrDownloadFailed, cachePath, err)
	}

	pw := newProgressWriter(f, totalBytes(resp, offer), c.KV, onProgress)
	_, copyErr := io.Copy(pw, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("%w: transfer: %v", errs.ErrDownloadFailed, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: close %s: %v", errs.ErrDownloadFailed, cachePath, closeErr)
	}
	pw.flush()

	// The only integrity check: the file exists and is non-empty.
	if utils.FileSize(cachePath) <= 0 {
		return nil, fmt.Errorf("%w: artifact at %s is empty", errs.ErrDownloadFailed, cachePath)
	}

	stored := &models.StoredDownload{
		Version:      offer.Version,
		CachePath:    cachePath,
		Offer:        *offer,
		DownloadedAt: time.Now().UnixMilli(),
		Complete:     true,
	}
	store.WriteJSON(c.KV, store.KeyStoredDownload, stored)
	c.KV.Delete(store.KeyDownloadProgress)

	logger.Debug("downloaded %s (%s) to %s",
		offer.Version, utils.HumanSize(utils.FileSize(cachePath)), cachePath)
	return stored, nil
}

// CachePath is the private location a given package version downloads to.
func (c *Coordinator) CachePath(version string) string {
	return filepath.Join(c.Config.CacheDir, fmt.Sprintf("tessa-%s.pkg", version))
}

func totalBytes(resp *http.Response, offer *models.UpdateOffer) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return offer.FileSizeBytes
}

// Completed returns the stored download if its record says complete and its
// file is still on disk. A record whose file is gone is purged (self-healing)
// and reads as absent.
func Completed(kv store.KV) (*models.StoredDownload, bool) {
	var stored models.StoredDownload
	if !store.ReadJSON(kv, store.KeyStoredDownload, &stored) {
		return nil, false
	}
	if !stored.Complete {
		return nil, false
	}
	if artifactPath(&stored) == "" {
		logger.Debug("stored download %s has no file on disk, purging record", stored.Version)
		kv.Delete(store.KeyStoredDownload)
		return nil, false
	}
	return &stored, true
}

// artifactPath returns the first of cache/published path that still exists.
func artifactPath(stored *models.StoredDownload) string {
	if ok, _ := utils.FileExists(stored.CachePath); ok {
		return stored.CachePath
	}
	if stored.PublishedPath != "" {
		if ok, _ := utils.FileExists(stored.PublishedPath); ok {
			return stored.PublishedPath
		}
	}
	return ""
}
