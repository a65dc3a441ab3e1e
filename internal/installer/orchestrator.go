package installer

import (
	"context"

	"github.com/tessapp/ota/internal/errs"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/store"
	"github.com/tessapp/ota/internal/utils"
)

// Orchestrator drives OS-level installation of a downloaded package through
// an ordered list of installer strategies.
type Orchestrator struct {
	KV         store.KV
	Gate       PermissionGate
	Strategies []Strategy
}

func New(kv store.KV, gate PermissionGate, strategies []Strategy) *Orchestrator {
	if kv == nil {
		kv = store.NewMemory()
	}
	if gate == nil {
		gate = StaticGate(true)
	}
	return &Orchestrator{
		KV:         kv,
		Gate:       gate,
		Strategies: strategies,
	}
}

// Install locates the artifact, clears the permission gate, and tries each
// strategy until one launches. A successful launch does not confirm
// installation; that is inferred from the version change on next start.
// Exhaustion (or a declined permission) ends in a manual-fallback result,
// which is terminal for this invocation but re-invocable by the user.
func (o *Orchestrator) Install(ctx context.Context, stored *models.StoredDownload) (*Result, error) {
	path := locateArtifact(stored)
	if path == "" {
		logger.Debug("artifact for %s gone from disk, purging stored download", stored.Version)
		o.KV.Delete(store.KeyStoredDownload)
		return nil, errs.ErrArtifactMissing
	}

	if !o.Gate.Allowed(ctx) {
		granted, err := o.Gate.Request(ctx)
		if err != nil {
			logger.Debug("permission request failed: %v", err)
		}
		if err != nil || !granted {
			// Declined: no automatic retry, hand the user the artifact.
			return o.manualFallback(stored), nil
		}
	}

	for _, s := range o.Strategies {
		if err := s.Launch(ctx, path); err != nil {
			logger.Debug("installer strategy %s failed: %v", s.Name(), err)
			continue
		}
		logger.Debug("installer launched via strategy %s", s.Name())
		return &Result{
			Outcome:       OutcomeLaunched,
			Strategy:      s.Name(),
			CachePath:     stored.CachePath,
			PublishedPath: stored.PublishedPath,
		}, nil
	}

	return o.manualFallback(stored), nil
}

func (o *Orchestrator) manualFallback(stored *models.StoredDownload) *Result {
	return &Result{
		Outcome:       OutcomeManualFallback,
		CachePath:     stored.CachePath,
		PublishedPath: stored.PublishedPath,
	}
}

func locateArtifact(stored *models.StoredDownload) string {
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
