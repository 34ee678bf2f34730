package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

const (
	sealedPrefix     = "sealed:v1:"
	sealedSalt       = "vhub-credential-store"
	sealedIterations = 100000
)

// SealedStore encrypts values with AES-256-GCM before handing them to another Store.
// The key is derived once from a passphrase. A value that is not sealed, or that does not
// open with this key, is reported as corruption.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealedStore wraps inner. passphrase must not be empty.
func NewSealedStore(inner Store, passphrase string) (*SealedStore, error) {
	if passphrase == "" {
		return nil, errors.NewConfigInvalidError("store.passphrase must not be empty")
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(sealedSalt), sealedIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &SealedStore{inner: inner, aead: aead}, nil
}

// Get retrieves and decrypts the value stored under key.
func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	value, err := s.open(raw)
	if err != nil {
		return "", false, errors.NewStorageCorruptionError(key, err).
			WithSuggestion("Check store.passphrase (VHUB_STORE_PASSPHRASE)")
	}
	return value, true, nil
}

// Set encrypts value and stores it under key.
func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return errors.NewStoreUnavailableError("sealed", err)
	}
	return s.inner.Set(ctx, key, sealed)
}

// Clear removes key from the wrapped store.
func (s *SealedStore) Clear(ctx context.Context, key string) error {
	return s.inner.Clear(ctx, key)
}

func (s *SealedStore) seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *SealedStore) open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return "", fmt.Errorf("value is not sealed")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

var _ Store = (*SealedStore)(nil)
