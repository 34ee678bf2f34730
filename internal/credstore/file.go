package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

// FileStore keeps credentials in a single JSON object on disk (mode 0600).
//
// Every operation re-reads the file so that separate vhub processes see each other's
// writes. Writes go through a temp file and rename, so a crash never leaves a truncated
// file behind. A file that does not parse is reported as corruption by Get and is
// overwritten by the next Set or Clear.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created lazily.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

// Get retrieves a value by key.
func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readLocked()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores a value.
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readLocked()
	if err != nil && !errors.HasCode(err, errors.ErrCodeStorageCorruption) {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value
	return f.writeLocked(values)
}

// Clear removes a value by key. The file is deleted once it holds nothing.
func (f *FileStore) Clear(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readLocked()
	if err != nil && !errors.HasCode(err, errors.ErrCodeStorageCorruption) {
		return err
	}
	if _, ok := values[key]; !ok && err == nil {
		return nil
	}
	delete(values, key)

	if len(values) == 0 {
		if rmErr := os.Remove(f.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return errors.NewStoreUnavailableError("file", rmErr)
		}
		return nil
	}
	return f.writeLocked(values)
}

func (f *FileStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.NewStoreUnavailableError("file", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return map[string]string{}, errors.NewStorageCorruptionError(filepath.Base(f.path), err)
	}
	return values, nil
}

func (f *FileStore) writeLocked(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.NewStoreUnavailableError("file", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.NewStoreUnavailableError("file", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*.tmp")
	if err != nil {
		return errors.NewStoreUnavailableError("file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.NewStoreUnavailableError("file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewStoreUnavailableError("file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStoreUnavailableError("file", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.NewStoreUnavailableError("file", fmt.Errorf("replace %s: %w", f.path, err))
	}
	return nil
}
