package offline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultKey is the storage key the pending queue lives under.
const DefaultKey = "maelstrom_pending_notes"

// Storage is durable key-value storage bound to a single key.
// Read returns (nil, nil) when nothing has been stored yet.
type Storage interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Remove() error
}

// Locker is implemented by Storage shared between processes. Lock guards one
// read-modify-write of the snapshot. TrySyncLock guards a whole sync pass and
// returns ErrLocked when another pass holds it.
type Locker interface {
	Lock() (func(), error)
	TrySyncLock() (func(), error)
}

// FileStorage implements Storage as one file inside a directory. Sidecar lock
// files next to it make it safe to share between processes.
type FileStorage struct {
	path     string // absolute path of the backing file
	dataLock *FileLock
	syncLock *FileLock
}

// NewFileStorage returns a FileStorage that keeps key as a JSON file under dir.
// dir is created if missing.
func NewFileStorage(dir, key string) (*FileStorage, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("offline: invalid storage key %q", key)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("offline: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("offline: mkdir: %w", err)
	}
	return &FileStorage{
		path:     filepath.Join(abs, key+".json"),
		dataLock: NewFileLock(filepath.Join(abs, key+".lock")),
		syncLock: NewFileLock(filepath.Join(abs, key+".sync.lock")),
	}, nil
}

// Lock implements Locker.
func (f *FileStorage) Lock() (func(), error) { return f.dataLock.Lock() }

// TrySyncLock implements Locker.
func (f *FileStorage) TrySyncLock() (func(), error) { return f.syncLock.TryLock() }

// Path returns the backing file path.
func (f *FileStorage) Path() string { return f.path }

// Read returns the stored bytes.
func (f *FileStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("offline: read: %w", err)
	}
	return data, nil
}

// Write atomically replaces the stored bytes: tmp file → fsync → rename.
func (f *FileStorage) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".maelstrom-tmp-*")
	if err != nil {
		return fmt.Errorf("offline: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("offline: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("offline: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("offline: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("offline: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes the backing file. A missing file is not an error.
func (f *FileStorage) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("offline: remove: %w", err)
	}
	return nil
}

// MemoryStorage is an in-memory Storage. The Fail* fields inject errors.
type MemoryStorage struct {
	mu        sync.Mutex
	data      []byte
	FailRead  error
	FailWrite error
}

// Read implements Storage.
func (m *MemoryStorage) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return nil, m.FailRead
	}
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

// Write implements Storage.
func (m *MemoryStorage) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.data = append([]byte(nil), data...)
	return nil
}

// Remove implements Storage.
func (m *MemoryStorage) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.data = nil
	return nil
}
