package credstore

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string
	Redis   RedisOptions

	// Passphrase, when set, wraps the backend in a SealedStore.
	Passphrase string
}

// Open builds the store named by opts.Backend. The returned closer releases
// backend resources and is never nil.
func Open(opts Options) (Store, io.Closer, error) {
	store, closer, err := openBackend(opts)
	if err != nil || opts.Passphrase == "" {
		return store, closer, err
	}
	sealed, err := NewSealedStore(store, opts.Passphrase)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return sealed, closer, nil
}

func openBackend(opts Options) (Store, io.Closer, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case BackendFile, "":
		if opts.Path == "" {
			return nil, nil, errors.NewConfigInvalidError("store.path must be set for the file backend")
		}
		return NewFileStore(opts.Path), nopCloser{}, nil
	case BackendRedis:
		store, err := NewRedisStore(opts.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown store backend %q", opts.Backend))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
