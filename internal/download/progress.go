package download

import (
	"io"
	"time"

	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/store"
)

// persistEvery throttles how often the resume hint hits disk; the in-memory
// snapshot and the callback still update on every tick.
const persistEvery = 500 * time.Millisecond

type progressWriter struct {
	w           io.Writer
	total       int64
	loaded      int64
	started     time.Time
	lastPersist time.Time
	kv          store.KV
	onTick      ProgressFunc
}

func newProgressWriter(w io.Writer, total int64, kv store.KV, onTick ProgressFunc) *progressWriter {
	return &progressWriter{
		w:       w,
		total:   total,
		started: time.Now(),
		kv:      kv,
		onTick:  onTick,
	}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.loaded += int64(n)

	snap := pw.snapshot()
	if pw.onTick != nil {
		pw.onTick(snap)
	}
	if now := time.Now(); now.Sub(pw.lastPersist) >= persistEvery {
		store.WriteJSON(pw.kv, store.KeyDownloadProgress, snap)
		pw.lastPersist = now
	}
	return n, err
}

// flush persists the final snapshot regardless of throttling.
func (pw *progressWriter) flush() {
	store.WriteJSON(pw.kv, store.KeyDownloadProgress, pw.snapshot())
}

func (pw *progressWriter) snapshot() models.DownloadProgress {
	progress := models.DownloadProgress{
		BytesLoaded: pw.loaded,
		BytesTotal:  pw.total,
	}

	if pw.total > 0 {
		progress.Percent = float64(pw.loaded) / float64(pw.total) * 100
		if progress.Percent > 100 {
			progress.Percent = 100
		}
	}

	elapsed := time.Since(pw.started).Seconds()
	if elapsed > 0 && pw.loaded > 0 {
		progress.BytesPerSecond = float64(pw.loaded) / elapsed
		if pw.total > pw.loaded && progress.BytesPerSecond > 0 {
			progress.ETASeconds = float64(pw.total-pw.loaded) / progress.BytesPerSecond
		}
	}
	return progress
}
