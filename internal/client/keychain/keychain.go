// Package keychain implements the client-held key-derivation chain. The
// secret phrase never leaves this process: it derives a master key, the
// master key unwraps the vault key, and the vault key encrypts individual
// fields. The server only ever stores the salt and the wrapped vault key.
package keychain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"

	"github.com/dvoronkov/lockbox/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of the master key and the vault key.
	KeySize = 32
	// SaltSize is the length of the per-vault PBKDF2 salt.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
	// Iterations is the PBKDF2 work factor. Changing it invalidates every
	// stored wrapped key, so it is fixed for the lifetime of a vault.
	Iterations = 100_000
)

// ErrDecryptionFailed is the only signal for a wrong secret phrase or
// tampered ciphertext. Callers must not distinguish the two cases.
var ErrDecryptionFailed = errors.New("decryption failed")

// NewSalt returns a fresh random PBKDF2 salt.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// NewVaultKey returns a fresh random vault key.
func NewVaultKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// DeriveMasterKey stretches the secret phrase into the master key that wraps the
// vault key. Same secret and salt always derive the same key.
func DeriveMasterKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, Iterations, KeySize, sha256.New)
}

// WrapVaultKey encrypts the vault key under the master key with a fresh
// nonce. The ciphertext and nonce are returned separately.
func WrapVaultKey(vaultKey, masterKey []byte) (wrapped, nonce []byte, err error) {
	return seal(vaultKey, masterKey)
}

// UnwrapVaultKey recovers the vault key. A wrong master key or a tampered
// blob yields ErrDecryptionFailed.
func UnwrapVaultKey(wrapped, nonce, masterKey []byte) ([]byte, error) {
	return open(wrapped, nonce, masterKey)
}

// EncryptField encrypts one secret value under the vault key. Every call
// generates a fresh nonce; nonces are never reused across fields.
func EncryptField(plaintext, vaultKey []byte) (ciphertext, nonce []byte, err error) {
	return seal(plaintext, vaultKey)
}

// DecryptField decrypts one secret value. Any failure, wrong key or modified
// ciphertext, yields ErrDecryptionFailed.
func DecryptField(ciphertext, nonce, vaultKey []byte) ([]byte, error) {
	return open(ciphertext, nonce, vaultKey)
}

// Wipe zeroes key material that is no longer needed.
func Wipe(b []byte) {
	common.WipeByteArray(b)
}

// WithKey runs fn with the key and guarantees the key is zeroed when fn
// returns, panics included. Use it to scope master keys and other short-lived
// material.
func WithKey(key []byte, fn func(key []byte) error) error {
	defer Wipe(key)
	return fn(key)
}

func seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = common.GenerateRandByteArray(NonceSize)
	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

func open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
