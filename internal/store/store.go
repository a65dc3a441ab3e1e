package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/utils"
)

// Keys owned by the update manager. Each key is written by exactly one
// component, so no locking discipline beyond the store's own is needed.
const (
	KeyLastKnownPackageVersion = "last_known_package_version"
	KeyLastKnownBundleID       = "last_known_bundle_id"
	KeyStoredDownload          = "stored_download"
	KeyDownloadProgress        = "download_progress"
	KeyPendingDownload         = "pending_background_download"
	KeyUserPostponedUpdate     = "user_postponed_update"
	KeyPublishedDirGrant       = "published_directory_grant"
	KeyLastOffer               = "last_update_offer"
)

// KV is a best-effort durable key-value façade. Read/write failures are
// logged and treated as "no value"; they are never fatal.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// FS persists the key map as a single JSON file with atomic rewrites.
type FS struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

func NewFS(dataDir string) (*FS, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dataDir, err)
	}
	s := &FS{
		path: filepath.Join(dataDir, "state.json"),
		data: make(map[string]string),
	}
	s.loadFromDisk() // best-effort at boot
	return s, nil
}

func (s *FS) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FS) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.flushLocked()
}

func (s *FS) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.flushLocked()
}

// --- internals ---

func (s *FS) loadFromDisk() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("store: read %s: %v", s.path, err)
		}
		return
	}
	m := make(map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Debug("store: corrupt state file %s: %v", s.path, err)
		return
	}
	s.data = m
}

func (s *FS) flushLocked() {
	if err := utils.WriteJSONAtomic(s.path, s.data); err != nil {
		logger.Debug("store: write %s: %v", s.path, err)
	}
}

// Memory is an in-process KV used in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// ReadJSON decodes the JSON blob stored under key into out. A missing or
// undecodable value reads as absent.
func ReadJSON(kv KV, key string, out any) bool {
	raw, ok := kv.Get(key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.Debug("store: bad JSON under %q: %v", key, err)
		return false
	}
	return true
}

// WriteJSON stores v as a JSON blob under key.
func WriteJSON(kv KV, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Debug("store: marshal for %q: %v", key, err)
		return
	}
	kv.Set(key, string(raw))
}
