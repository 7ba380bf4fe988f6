// Package vault is the client-side vault session: it drives the key chain
// against the server's key material endpoints and keeps the unwrapped vault
// key in memory only while the vault is unlocked.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvoronkov/lockbox/internal/client/api"
	"github.com/dvoronkov/lockbox/internal/client/keychain"
	"github.com/dvoronkov/lockbox/internal/client/repositories/metadata"
	"github.com/dvoronkov/lockbox/internal/dbx"
)

var (
	// ErrLocked is returned by field operations while no vault key is held.
	ErrLocked = errors.New("vault is locked")
	// ErrLocalDataNotAvailable means offline unlock was attempted before any
	// successful online unlock cached the wrapped key bundle.
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

const (
	metaKeySalt       = "salt"
	metaKeyWrappedKey = "wrapped_key"
	metaKeyWrapNonce  = "wrap_nonce"
)

// Remote is the slice of the server API the vault session needs.
type Remote interface {
	KeyMaterial(ctx context.Context) (*api.KeyMaterial, error)
	InitializeKeyMaterial(ctx context.Context, km *api.KeyMaterial) error
	RotateKeyMaterial(ctx context.Context, km *api.KeyMaterial) error
}

// Service manages one vault session.
//
// Contract:
//   - Initialize: create the key chain for a brand new vault and upload it.
//   - UnlockOnline: fetch the bundle from the server, unwrap, cache locally.
//   - UnlockOffline: unwrap from the local cache without touching the network.
//   - RotateSecret: re-wrap the vault key under a new secret phrase.
//   - EncryptField/DecryptField: field crypto under the held vault key.
//   - Lock: wipe the held vault key.
//
// A wrong secret phrase always surfaces as keychain.ErrDecryptionFailed.
type Service interface {
	Initialize(ctx context.Context, secret []byte) error
	UnlockOnline(ctx context.Context, secret []byte) error
	UnlockOffline(ctx context.Context, secret []byte) error
	RotateSecret(ctx context.Context, oldSecret, newSecret []byte) error
	EncryptField(plaintext []byte) (ciphertext, nonce []byte, err error)
	DecryptField(ciphertext, nonce []byte) ([]byte, error)
	Unlocked() bool
	Lock()
	ClearOfflineData(ctx context.Context) error
}

type service struct {
	remote   Remote
	db       *sql.DB
	vaultKey []byte
}

// NewService constructs a vault session bound to the given API client and
// local database.
func NewService(remote Remote, db *sql.DB) Service {
	return &service{remote: remote, db: db}
}

func (s *service) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// Initialize creates the key chain for a new vault: fresh salt and vault
// key, wraps the vault key under the secret phrase, uploads the bundle, and
// caches it for offline unlock. The server rejects a second initialization.
func (s *service) Initialize(ctx context.Context, secret []byte) error {
	salt := keychain.NewSalt()
	masterKey := keychain.DeriveMasterKey(secret, salt)
	defer keychain.Wipe(masterKey)

	vaultKey := keychain.NewVaultKey()
	wrapped, nonce, err := keychain.WrapVaultKey(vaultKey, masterKey)
	if err != nil {
		keychain.Wipe(vaultKey)
		return fmt.Errorf("wrap vault key: %w", err)
	}

	km := &api.KeyMaterial{Salt: salt, WrappedKey: wrapped, Nonce: nonce}
	if err := s.remote.InitializeKeyMaterial(ctx, km); err != nil {
		keychain.Wipe(vaultKey)
		return err
	}

	if err := s.saveOfflineData(ctx, km); err != nil {
		keychain.Wipe(vaultKey)
		return fmt.Errorf("offline data saving error: %w", err)
	}

	s.setVaultKey(vaultKey)
	return nil
}

// UnlockOnline fetches the wrapped bundle from the server, unwraps it with
// the secret phrase, and refreshes the offline cache.
func (s *service) UnlockOnline(ctx context.Context, secret []byte) error {
	km, err := s.remote.KeyMaterial(ctx)
	if err != nil {
		return err
	}

	vaultKey, err := s.unwrap(secret, km)
	if err != nil {
		return err
	}

	if err := s.saveOfflineData(ctx, km); err != nil {
		keychain.Wipe(vaultKey)
		return fmt.Errorf("offline data saving error: %w", err)
	}

	s.setVaultKey(vaultKey)
	return nil
}

// UnlockOffline unwraps the locally cached bundle. The AEAD tag on the
// wrapped key doubles as the secret phrase verifier, so no separate check is
// stored.
func (s *service) UnlockOffline(ctx context.Context, secret []byte) error {
	km, err := s.loadOfflineData(ctx)
	if err != nil {
		return err
	}

	vaultKey, err := s.unwrap(secret, km)
	if err != nil {
		return err
	}

	s.setVaultKey(vaultKey)
	return nil
}

// RotateSecret re-wraps the vault key under a new secret phrase. The vault
// key itself never changes, so existing field ciphertexts stay readable. The
// old phrase is verified against the server's current bundle first.
func (s *service) RotateSecret(ctx context.Context, oldSecret, newSecret []byte) error {
	km, err := s.remote.KeyMaterial(ctx)
	if err != nil {
		return err
	}

	vaultKey, err := s.unwrap(oldSecret, km)
	if err != nil {
		return err
	}

	newSalt := keychain.NewSalt()
	newMasterKey := keychain.DeriveMasterKey(newSecret, newSalt)
	wrapped, nonce, err := keychain.WrapVaultKey(vaultKey, newMasterKey)
	keychain.Wipe(newMasterKey)
	if err != nil {
		keychain.Wipe(vaultKey)
		return fmt.Errorf("wrap vault key: %w", err)
	}

	newKM := &api.KeyMaterial{Salt: newSalt, WrappedKey: wrapped, Nonce: nonce}
	if err := s.remote.RotateKeyMaterial(ctx, newKM); err != nil {
		keychain.Wipe(vaultKey)
		return err
	}

	if err := s.saveOfflineData(ctx, newKM); err != nil {
		keychain.Wipe(vaultKey)
		return fmt.Errorf("offline data saving error: %w", err)
	}

	s.setVaultKey(vaultKey)
	return nil
}

// EncryptField encrypts one secret value under the held vault key.
func (s *service) EncryptField(plaintext []byte) ([]byte, []byte, error) {
	if s.vaultKey == nil {
		return nil, nil, ErrLocked
	}
	return keychain.EncryptField(plaintext, s.vaultKey)
}

// DecryptField decrypts one secret value under the held vault key.
func (s *service) DecryptField(ciphertext, nonce []byte) ([]byte, error) {
	if s.vaultKey == nil {
		return nil, ErrLocked
	}
	return keychain.DecryptField(ciphertext, nonce, s.vaultKey)
}

func (s *service) Unlocked() bool {
	return s.vaultKey != nil
}

// Lock wipes the held vault key. Field operations fail until the next
// unlock.
func (s *service) Lock() {
	if s.vaultKey != nil {
		keychain.Wipe(s.vaultKey)
		s.vaultKey = nil
	}
}

// ClearOfflineData wipes the locally cached bundle, e.g. when the device is
// handed over.
func (s *service) ClearOfflineData(ctx context.Context) error {
	return s.getMetadataRepo().Clear(ctx)
}

func (s *service) unwrap(secret []byte, km *api.KeyMaterial) ([]byte, error) {
	masterKey := keychain.DeriveMasterKey(secret, km.Salt)
	defer keychain.Wipe(masterKey)
	return keychain.UnwrapVaultKey(km.WrappedKey, km.Nonce, masterKey)
}

func (s *service) setVaultKey(vaultKey []byte) {
	s.Lock()
	s.vaultKey = vaultKey
}

// saveOfflineData persists the bundle required for offline unlock in a
// single transaction.
func (s *service) saveOfflineData(ctx context.Context, km *api.KeyMaterial) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, metaKeySalt, km.Salt); err != nil {
			return err
		}
		if err := repo.Set(ctx, metaKeyWrappedKey, km.WrappedKey); err != nil {
			return err
		}
		if err := repo.Set(ctx, metaKeyWrapNonce, km.Nonce); err != nil {
			return err
		}
		return nil
	})
}

func (s *service) loadOfflineData(ctx context.Context) (*api.KeyMaterial, error) {
	repo := s.getMetadataRepo()

	salt, err := repo.Get(ctx, metaKeySalt)
	if err != nil {
		return nil, err
	}
	wrapped, err := repo.Get(ctx, metaKeyWrappedKey)
	if err != nil {
		return nil, err
	}
	nonce, err := repo.Get(ctx, metaKeyWrapNonce)
	if err != nil {
		return nil, err
	}

	if len(salt) == 0 || len(wrapped) == 0 || len(nonce) == 0 {
		return nil, ErrLocalDataNotAvailable
	}
	return &api.KeyMaterial{Salt: salt, WrappedKey: wrapped, Nonce: nonce}, nil
}
