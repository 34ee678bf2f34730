// Package credstore persists the client's credential between runs.
//
// The store is a plain key-value layer with two fixed keys, KeyToken and KeyUser. Keys are
// written independently and there are no transactions, so a reader may briefly observe a
// token without a user. Consumers must treat that as "no session" rather than fail.
package credstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

// Fixed keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store defines the interface for credential persistence.
//
// Implementations must be safe for concurrent use. Clear on an absent key is a no-op.
type Store interface {
	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Clear removes key. Returns nil if the key does not exist.
	Clear(ctx context.Context, key string) error
}

// ClearCredentials removes both fixed keys. The token goes first so a concurrent request
// stops attaching it as early as possible. Both clears are attempted even if one fails.
func ClearCredentials(ctx context.Context, s Store) error {
	tokenErr := s.Clear(ctx, KeyToken)
	userErr := s.Clear(ctx, KeyUser)
	return stderrors.Join(tokenErr, userErr)
}

// MemoryStore implements in-memory credential storage.
//
// Nothing survives the process; use it for tests and one-shot commands.
type MemoryStore struct {
	values sync.Map
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok := m.values.Load(key)
	if !ok {
		return "", false, nil
	}
	s, ok := value.(string)
	if !ok {
		return "", false, errors.NewStorageCorruptionError(key, fmt.Errorf("unexpected type %T", value))
	}
	return s, true, nil
}

// Set stores a value.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.NewStoreUnavailableError("memory", fmt.Errorf("key cannot be empty"))
	}
	m.values.Store(key, value)
	return nil
}

// Clear removes a value by key.
func (m *MemoryStore) Clear(ctx context.Context, key string) error {
	m.values.Delete(key)
	return nil
}

// Len returns the number of keys held. Useful for tests.
func (m *MemoryStore) Len() int {
	count := 0
	m.values.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// Compile-time verification that the backends implement Store
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
