package errs

import "errors"

// Operation-level failure classes. Component-internal failures are logged at
// the point of occurrence; only these surface to callers of the update
// manager's public operations.
var (
	// ErrNetworkUnreachable marks a transient transport failure. The checker
	// treats it as "no update from that channel", never as a fatal error.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrDownloadFailed marks an artifact transfer error or a zero-byte /
	// missing result. Surfaced to the caller; retry is caller-initiated.
	ErrDownloadFailed = errors.New("download failed")

	// ErrDownloadInFlight is returned when a second download is requested
	// while one is already running.
	ErrDownloadInFlight = errors.New("a download is already in flight")

	// ErrArtifactMissing marks a stale stored-download record whose file no
	// longer exists on disk. The record is purged when this is detected.
	ErrArtifactMissing = errors.New("downloaded artifact is missing")

	// ErrPermissionDenied marks a refused installer-source or directory
	// grant. Routes to guided request or manual fallback, never a crash.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInstallLaunchFailed marks a single installer strategy failing to
	// launch. The orchestrator logs it and advances to the next strategy;
	// exhausting all of them ends in a manual-fallback result, not an error.
	ErrInstallLaunchFailed = errors.New("installer strategy failed to launch")

	// ErrUnsupportedPlatform is returned when sideloaded package
	// installation is not available on the current platform.
	ErrUnsupportedPlatform = errors.New("package sideloading not supported on this platform")
)
