// Package mirror is the dashboard's offline cache of the persona list. It
// wraps a primary persistent key-value store with quota handling and a
// secondary in-memory fallback, so a full or broken cache degrades service
// quality instead of failing dashboard operations.
package mirror

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("mirror: key not found")

// ErrQuotaExceeded is returned by a KV whose storage budget is exhausted.
var ErrQuotaExceeded = errors.New("mirror: storage quota exceeded")

// KV is a minimal serialized key-value store.
type KV interface {
	Set(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// MemKV is an ephemeral in-process KV, the secondary tier of the adapter.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV returns an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Set(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FileKV persists each key as a file under a base directory, with an
// optional total-size quota. Zero quota means unlimited.
type FileKV struct {
	mu    sync.Mutex
	dir   string
	quota int64
}

// NewFileKV creates the base directory if missing.
func NewFileKV(dir string, quotaBytes int64) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &FileKV{dir: dir, quota: quotaBytes}, nil
}

func (f *FileKV) Set(key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.keyPath(key)
	if f.quota > 0 {
		used, err := f.usedExcluding(path)
		if err != nil {
			return err
		}
		if used+int64(len(data)) > f.quota {
			return ErrQuotaExceeded
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write mirror key: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace mirror key: %w", err)
	}
	return nil
}

func (f *FileKV) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.keyPath(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read mirror key: %w", err)
	}
	return data, nil
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete mirror key: %w", err)
	}
	return nil
}

// keyPath hex-encodes keys so arbitrary key strings map to safe filenames.
func (f *FileKV) keyPath(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+".json")
}

func (f *FileKV) usedExcluding(path string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("scan mirror dir: %w", err)
	}
	var used int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(f.dir, entry.Name())
		if full == path {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		used += info.Size()
	}
	return used, nil
}
