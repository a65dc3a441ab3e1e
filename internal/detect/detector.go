package detect

import (
	"context"

	goversion "github.com/hashicorp/go-version"

	"github.com/tessapp/ota/internal/bundle"
	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/store"
)

// Notice reports that an update was positively confirmed as applied. Emitted
// at most once per applied update: the confirming observation also advances
// the version record.
type Notice struct {
	PackageApplied bool
	BundleApplied  bool
	FromVersion    string
	ToVersion      string
	FromBundleID   string
	ToBundleID     string
}

// Detector infers install completion on start/foreground: the running
// identifiers differing from the last recorded ones is the only confirmation
// signal the platform offers. The record is written only after observation,
// never speculatively, so an in-progress download can never be mistaken for
// a completed install.
type Detector struct {
	KV             store.KV
	CurrentVersion string
	Bundle         bundle.Channel
}

func New(kv store.KV, currentVersion string, ch bundle.Channel) *Detector {
	if kv == nil {
		kv = store.NewMemory()
	}
	if ch == nil {
		ch = bundle.Disabled{}
	}
	return &Detector{
		KV:             kv,
		CurrentVersion: currentVersion,
		Bundle:         ch,
	}
}

// Observe compares running vs. last-known identifiers, performs post-install
// cleanup, and returns a notice when an update was confirmed. Returns nil
// when nothing changed. Safe to call on every foreground transition.
func (d *Detector) Observe(ctx context.Context) *Notice {
	notice := &Notice{}

	lastVersion, haveVersion := d.KV.Get(store.KeyLastKnownPackageVersion)
	switch {
	case !haveVersion:
		// First launch: nothing to confirm, just record what runs now.
		d.KV.Set(store.KeyLastKnownPackageVersion, d.CurrentVersion)
	case !sameVersion(lastVersion, d.CurrentVersion):
		logger.Debug("package version changed %s -> %s, treating pending install as applied",
			lastVersion, d.CurrentVersion)
		d.cleanup()
		notice.PackageApplied = true
		notice.FromVersion = lastVersion
		notice.ToVersion = d.CurrentVersion
		d.KV.Set(store.KeyLastKnownPackageVersion, d.CurrentVersion)
	}

	if d.Bundle.Enabled() {
		currentBundle := d.Bundle.CurrentID()
		lastBundle, haveBundle := d.KV.Get(store.KeyLastKnownBundleID)
		switch {
		case currentBundle == "":
			// Bundle runtime not initialized yet; nothing to compare.
		case !haveBundle:
			d.KV.Set(store.KeyLastKnownBundleID, currentBundle)
		case lastBundle != currentBundle:
			logger.Debug("bundle identity changed %s -> %s", lastBundle, currentBundle)
			d.cleanup()
			notice.BundleApplied = true
			notice.FromBundleID = lastBundle
			notice.ToBundleID = currentBundle
			d.KV.Set(store.KeyLastKnownBundleID, currentBundle)
		}
	}

	if !notice.PackageApplied && !notice.BundleApplied {
		return nil
	}
	return notice
}

// cleanup purges every record tied to the now-finished update cycle.
// Unconditional and idempotent.
func (d *Detector) cleanup() {
	d.KV.Delete(store.KeyStoredDownload)
	d.KV.Delete(store.KeyDownloadProgress)
	d.KV.Delete(store.KeyPendingDownload)
	d.KV.Delete(store.KeyUserPostponedUpdate)
	d.KV.Delete(store.KeyLastOffer)
}

// sameVersion compares identities, not ordering: the detector never decides
// which version is newer.
func sameVersion(a, b string) bool {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return va.Equal(vb)
}
