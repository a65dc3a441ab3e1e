package models

// Channel identifies which update pipeline an offer belongs to.
type Channel string

const (
	// ChannelBundle is the instantly-applied code-bundle channel.
	ChannelBundle Channel = "bundle"
	// ChannelPackage is the full binary-package channel that goes through the
	// OS installer.
	ChannelPackage Channel = "package"
)

// UpdateOffer is the normalized result of an update check, regardless of
// which channel produced it. Immutable once returned by the checker.
type UpdateOffer struct {
	Available     bool     `json:"available"`
	Channel       Channel  `json:"channel,omitempty"`
	Version       string   `json:"version,omitempty"`
	BundleID      string   `json:"bundle_id,omitempty"`
	Changelog     []string `json:"changelog,omitempty"`
	FileSizeBytes int64    `json:"file_size_bytes,omitempty"`
	ForceUpdate   bool     `json:"force_update,omitempty"`
	DownloadURL   string   `json:"download_url,omitempty"`
}

// DownloadProgress is recomputed on every I/O tick of a running transfer.
// It is persisted only as a best-effort resume hint.
type DownloadProgress struct {
	BytesLoaded    int64   `json:"bytes_loaded"`
	BytesTotal     int64   `json:"bytes_total"`
	Percent        float64 `json:"percent"`
	BytesPerSecond float64 `json:"bytes_per_second"`
	ETASeconds     float64 `json:"eta_seconds"`
}

// StoredDownload is the sole durable record of "an artifact is ready to
// install". Complete == true implies the file at CachePath (or
// PublishedPath) exists; a record whose file is gone is purged on read.
type StoredDownload struct {
	Version       string      `json:"version"`
	CachePath     string      `json:"cache_path"`
	PublishedPath string      `json:"published_path,omitempty"`
	Offer         UpdateOffer `json:"offer"`
	DownloadedAt  int64       `json:"downloaded_at_epoch_ms"`
	Complete      bool        `json:"complete"`
}

// Postponement records a user's "install later" choice for a completed
// download. Purged by the detector once any update applies.
type Postponement struct {
	Version     string `json:"version,omitempty"`
	PostponedAt int64  `json:"postponed_at_epoch_ms"`
}

// PendingDownload is a queued request to start a package download on the
// next background transition. Distinct from StoredDownload, which only
// exists once a transfer finished.
type PendingDownload struct {
	ID          string      `json:"id"`
	Offer       UpdateOffer `json:"offer"`
	RequestedAt int64       `json:"requested_at_epoch_ms"`
}
