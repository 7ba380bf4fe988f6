// Package vault implements the server side of vault key escrow. The server
// stores the salt and the wrapped vault key as opaque blobs; deriving the
// wrapping key and unwrapping happen exclusively on the client.
package vault

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/logging"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/dvoronkov/lockbox/internal/server/repositories/repomanager"
)

type Service struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func NewService(db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger) *Service {
	return &Service{db: db, repos: repos, log: log.With("component", "vault")}
}

// KeyMaterial returns the stored key material for the identity, or
// common.ErrorNotFound for a vault that has not been initialized.
func (s *Service) KeyMaterial(ctx context.Context, identityID string) (*models.VaultKeyMaterial, error) {
	return s.repos.KeyMaterial(s.db).Get(ctx, identityID)
}

// InitializeKeyMaterial stores key material for a fresh vault. It refuses to
// overwrite existing material: losing the old wrapped key would strand every
// field encrypted under it.
func (s *Service) InitializeKeyMaterial(ctx context.Context, identityID string, salt, wrappedKey, nonce []byte) error {
	if len(salt) == 0 || len(wrappedKey) == 0 || len(nonce) == 0 {
		return common.ErrorInternal
	}

	material := &models.VaultKeyMaterial{
		IdentityID: identityID,
		Salt:       salt,
		WrappedKey: wrappedKey,
		Nonce:      nonce,
	}
	if err := s.repos.KeyMaterial(s.db).Create(ctx, material); err != nil {
		return err
	}
	s.log.Info(ctx, "vault initialized", "identity", identityID)
	return nil
}

// RotateKeyMaterial replaces the stored material after the client re-wrapped
// the vault key under a new secret phrase. The vault key itself does not
// change, so existing ciphertexts stay readable.
func (s *Service) RotateKeyMaterial(ctx context.Context, identityID string, salt, wrappedKey, nonce []byte) error {
	if len(salt) == 0 || len(wrappedKey) == 0 || len(nonce) == 0 {
		return common.ErrorInternal
	}

	material := &models.VaultKeyMaterial{
		IdentityID: identityID,
		Salt:       salt,
		WrappedKey: wrappedKey,
		Nonce:      nonce,
	}
	if err := s.repos.KeyMaterial(s.db).Update(ctx, material); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return err
	}
	s.log.Info(ctx, "vault key material rotated", "identity", identityID)
	return nil
}
