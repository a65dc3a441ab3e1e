package lifecycle

import (
	"context"

	"github.com/tessapp/ota/internal/detect"
	"github.com/tessapp/ota/internal/download"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/store"
)

// ForegroundEvent is what the host UI reacts to after a foreground
// transition: an applied-update notice, a ready-to-install download, or both.
type ForegroundEvent struct {
	Notice         *detect.Notice
	PendingInstall *models.StoredDownload
}

// Bridge ties the host process's foreground/background transitions to the
// update pipeline.
type Bridge struct {
	Detector  *detect.Detector
	Downloads *download.Coordinator
	KV        store.KV
}

func New(detector *detect.Detector, downloads *download.Coordinator, kv store.KV) *Bridge {
	if kv == nil {
		kv = store.NewMemory()
	}
	return &Bridge{
		Detector:  detector,
		Downloads: downloads,
		KV:        kv,
	}
}

// OnForeground runs install detection, then reports a completed, file-verified
// download if one is waiting.
func (b *Bridge) OnForeground(ctx context.Context) ForegroundEvent {
	event := ForegroundEvent{}
	if b.Detector != nil {
		event.Notice = b.Detector.Observe(ctx)
	}
	if stored, ok := download.Completed(b.KV); ok {
		event.PendingInstall = stored
	}
	return event
}

// OnBackground starts a queued background download, if one was requested.
// The queued record is cleared regardless of how the transfer ends; a failed
// transfer is not silently re-queued.
func (b *Bridge) OnBackground(ctx context.Context) {
	var pending models.PendingDownload
	if !store.ReadJSON(b.KV, store.KeyPendingDownload, &pending) {
		return
	}
	b.KV.Delete(store.KeyPendingDownload)

	if b.Downloads == nil {
		return
	}
	logger.Debug("starting queued background download %s (version %s)", pending.ID, pending.Offer.Version)
	if _, err := b.Downloads.Download(ctx, &pending.Offer, nil); err != nil {
		logger.Debug("background download %s failed: %v", pending.ID, err)
		return
	}
	logger.Debug("background download %s finished", pending.ID)
}
