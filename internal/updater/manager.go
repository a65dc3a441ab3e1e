package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tessapp/ota/internal/bundle"
	"github.com/tessapp/ota/internal/checker"
	"github.com/tessapp/ota/internal/config"
	"github.com/tessapp/ota/internal/detect"
	"github.com/tessapp/ota/internal/download"
	"github.com/tessapp/ota/internal/installer"
	"github.com/tessapp/ota/internal/lifecycle"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/publish"
	"github.com/tessapp/ota/internal/service"
	"github.com/tessapp/ota/internal/store"
)

// Manager is the consumer-facing surface of the update subsystem. All
// collaborators are injected; there is no global state.
type Manager struct {
	Config config.Config
	KV     store.KV

	Checker   *checker.Checker
	Downloads *download.Coordinator
	Publisher *publish.Publisher
	Installer *installer.Orchestrator
	Bundle    bundle.Channel
	Reloader  bundle.Reloader
	Bridge    *lifecycle.Bridge
}

// New wires a Manager with default collaborators. Pass nil for conf, client
// or kv to get defaults; use the With* setters to swap platform pieces.
func New(conf *config.Config, client service.HTTPClient, kv store.KV) *Manager {
	if conf == nil {
		def := config.Default()
		conf = &def
	}
	if kv == nil {
		var err error
		kv, err = store.NewFS(conf.StateDir)
		if err != nil {
			logger.Debug("failed to open state store: %v", err)
			kv = store.NewMemory()
		}
	}

	var ch bundle.Channel = bundle.Disabled{}
	if conf.BundleManifestURL != "" {
		ch = bundle.NewHTTPChannel(client, conf.BundleManifestURL, conf.BundleDir)
	}

	m := &Manager{
		Config:    *conf,
		KV:        kv,
		Checker:   checker.New(conf, client, ch),
		Downloads: download.New(conf, client, kv),
		Publisher: publish.New(&publish.PromptedDirGrant{Dir: conf.SharedDir}, kv),
		Installer: installer.New(kv, nil,
			installer.DefaultStrategies(nil, conf.InstallerTool, conf.PackageMIME)),
		Bundle: ch,
		Reloader: bundle.ReloadFunc(func() error {
			logger.Info("Bundle applied, reloading application")
			return nil
		}),
	}
	m.Bridge = lifecycle.New(detect.New(kv, conf.CurrentVersion, ch), m.Downloads, kv)
	return m
}

// WithBundle swaps the bundle channel and the reload hook.
func (m *Manager) WithBundle(ch bundle.Channel, r bundle.Reloader) *Manager {
	if ch == nil {
		ch = bundle.Disabled{}
	}
	m.Bundle = ch
	m.Checker.Bundle = ch
	m.Bridge.Detector.Bundle = ch
	if r != nil {
		m.Reloader = r
	}
	return m
}

// WithInstaller swaps the permission gate and the strategy list.
func (m *Manager) WithInstaller(gate installer.PermissionGate, strategies []Strategy) *Manager {
	m.Installer = installer.New(m.KV, gate, strategies)
	return m
}

// Strategy aliases the installer strategy type so callers configuring the
// manager need only this package.
type Strategy = installer.Strategy

// WithPublisher swaps the directory-grant implementation.
func (m *Manager) WithPublisher(grant publish.DirectoryGrant) *Manager {
	m.Publisher = publish.New(grant, m.KV)
	return m
}

// Check queries both channels and persists any available offer for the
// notification surface. Never returns nil.
func (m *Manager) Check(ctx context.Context) *models.UpdateOffer {
	offer := m.Checker.Check(ctx)
	if offer.Available {
		store.WriteJSON(m.KV, store.KeyLastOffer, offer)
	}
	return offer
}

// Download runs the package pipeline for an offer, then best-effort
// publishes the artifact to the shared directory. Publish failures never
// fail the download; the cache copy is what installation uses.
func (m *Manager) Download(ctx context.Context, offer *models.UpdateOffer, onProgress download.ProgressFunc) (*models.StoredDownload, error) {
	stored, err := m.Downloads.Download(ctx, offer, onProgress)
	if err != nil {
		return nil, err
	}

	published, err := m.Publisher.Publish(ctx, stored.CachePath, filepath.Base(stored.CachePath))
	if err != nil {
		logger.Debug("publish skipped: %v", err)
		return stored, nil
	}
	stored.PublishedPath = published
	store.WriteJSON(m.KV, store.KeyStoredDownload, stored)
	return stored, nil
}

// Install drives the OS installer for a stored download. Pass nil to install
// the currently stored one.
func (m *Manager) Install(ctx context.Context, stored *models.StoredDownload) (*installer.Result, error) {
	if stored == nil {
		var ok bool
		stored, ok = download.Completed(m.KV)
		if !ok {
			return nil, fmt.Errorf("no completed download to install")
		}
	}
	return m.Installer.Install(ctx, stored)
}

// ApplyBundle fetches the bundle channel and reloads the app only when a new
// bundle actually arrived. Returns false with no side effects when the
// remote bundle equals the running one.
func (m *Manager) ApplyBundle(ctx context.Context) (bool, error) {
	isNew, err := m.Bundle.Fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("bundle fetch failed: %w", err)
	}
	if !isNew {
		return false, nil
	}
	if err := m.Reloader.Reload(); err != nil {
		return true, fmt.Errorf("bundle fetched but reload failed: %w", err)
	}
	return true, nil
}

// HasCompletedDownload reports whether a finished, file-verified download is
// waiting to be installed. A record whose file vanished is purged here.
func (m *Manager) HasCompletedDownload() (*models.StoredDownload, bool) {
	return download.Completed(m.KV)
}

// ScheduleInstallForLater records that the user postponed installing the
// pending download. Cleared by the detector once any update applies.
func (m *Manager) ScheduleInstallForLater() {
	postponed := models.Postponement{PostponedAt: time.Now().UnixMilli()}
	if stored, ok := download.Completed(m.KV); ok {
		postponed.Version = stored.Version
	}
	store.WriteJSON(m.KV, store.KeyUserPostponedUpdate, postponed)
}

// QueueBackgroundDownload asks for the offer to be downloaded on the next
// background transition instead of right now.
func (m *Manager) QueueBackgroundDownload(offer *models.UpdateOffer) {
	pending := models.PendingDownload{
		ID:          uuid.NewString(),
		Offer:       *offer,
		RequestedAt: time.Now().UnixMilli(),
	}
	store.WriteJSON(m.KV, store.KeyPendingDownload, pending)
}

// DiscardDownload drops the stored download record and its files. This is
// the explicit-cancellation path of the record's lifecycle.
func (m *Manager) DiscardDownload() {
	var stored models.StoredDownload
	if store.ReadJSON(m.KV, store.KeyStoredDownload, &stored) {
		if err := os.Remove(stored.CachePath); err != nil && !os.IsNotExist(err) {
			logger.Debug("failed to remove cached artifact: %v", err)
		}
		if stored.PublishedPath != "" {
			if err := os.Remove(stored.PublishedPath); err != nil && !os.IsNotExist(err) {
				logger.Debug("failed to remove published artifact: %v", err)
			}
		}
	}
	m.KV.Delete(store.KeyStoredDownload)
	m.KV.Delete(store.KeyDownloadProgress)
}

func (m *Manager) CurrentVersion() string { return m.Config.CurrentVersion }

func (m *Manager) CurrentBundleID() string { return m.Bundle.CurrentID() }

// OnForeground / OnBackground expose the lifecycle bridge to the host.
func (m *Manager) OnForeground(ctx context.Context) lifecycle.ForegroundEvent {
	return m.Bridge.OnForeground(ctx)
}

func (m *Manager) OnBackground(ctx context.Context) {
	m.Bridge.OnBackground(ctx)
}
