// Package persistence implements the two Persistence backends spec.md §6
// requires: an encrypted-at-rest local store (bbolt, adapted from the
// teacher's key/value usage patterns) and an optional remote store
// (PostgreSQL via pgx, generalized from the teacher's
// internal/storage/postgres.go PostgresStore). Every value written by
// either backend is sealed first — spec.md §6: "plaintext persistence is
// a compliance failure."
package persistence

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a 32-byte ChaCha20-Poly1305 key from a wallet
// signature, domain-separated from the identity and memo-encryption
// derivations by a distinct HKDF info string.
func DeriveKey(signature []byte) ([32]byte, error) {
	var key [32]byte
	kdf := hkdf.New(sha256.New, signature, nil, []byte("zdoge.persistence.encryption.v1"))
	if _, err := readFull(kdf, key[:]); err != nil {
		return key, fmt.Errorf("persistence: deriving encryption key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random nonce prepended
// to the ciphertext.
func Seal(key [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func Open(key [32]byte, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("persistence: sealed blob shorter than a nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("persistence: short read deriving key material")
		}
	}
	return total, nil
}
