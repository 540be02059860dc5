// Package crypto seals clip payloads before they reach a shared backend.
//
// A 32-byte key is derived from a passphrase with HKDF-SHA256 and payloads
// are sealed with NaCl secretbox. A sealed box is the random nonce followed
// by the ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrOpen is returned when a box cannot be opened, normally because it was
// sealed under a different passphrase.
var ErrOpen = errors.New("crypto: cannot open sealed payload")

// Key is a derived secretbox key.
type Key struct {
	k [keySize]byte
}

// DeriveKey derives a key from passphrase. purpose separates keys derived
// from the same passphrase for different uses.
func DeriveKey(passphrase, purpose string) (*Key, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: empty passphrase")
	}
	h := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(purpose))
	var key Key
	if _, err := io.ReadFull(h, key.k[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (k *Key) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k.k), nil
}

// Open decrypts a box produced by Seal.
func (k *Key) Open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: box too short", ErrOpen)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &k.k)
	if !ok {
		return nil, ErrOpen
	}
	return plain, nil
}
