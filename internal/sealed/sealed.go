// Package sealed provides the authenticated encryption used for queue
// snapshots. Ciphertext layout is nonce(12) || ciphertext || tag(16), the
// ChaCha20-Poly1305 construction from golang.org/x/crypto.
package sealed

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrShortCiphertext is returned when input cannot hold a nonce and tag.
var ErrShortCiphertext = errors.New("ciphertext shorter than nonce and tag")

// AEAD encrypts and decrypts whole buffers with a caller-owned key. A fresh
// random nonce is drawn on every Encrypt.
type AEAD struct {
	aead cipher.AEAD
}

// New builds an AEAD from a 32-byte key.
func New(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Encrypt returns nonce || ciphertext || tag.
func (a *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return a.aead.Seal(out, out[:nonceSize], plaintext, nil), nil
}

// Decrypt reverses Encrypt. Any tampering fails authentication.
func (a *AEAD) Decrypt(sealed []byte) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	if len(sealed) < nonceSize+a.aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	plaintext, err := a.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// GenerateKey returns a random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// ParseHexKey decodes a hex-encoded key.
func ParseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding hex key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Argon2id parameters for DeriveKey.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey stretches a passphrase into a key with argon2id. The salt must
// be stable across runs for snapshots to remain readable.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	if len(salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}
