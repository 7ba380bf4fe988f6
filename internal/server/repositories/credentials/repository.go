// Package credentials provides persistence for registered public-key
// credentials.
package credentials

import (
	"context"
	"time"

	"github.com/dvoronkov/lockbox/internal/server/models"
)

type Repository interface {
	// Create inserts a new credential. The credential id is unique across
	// all identities; a duplicate yields common.ErrorAlreadyExists.
	Create(ctx context.Context, cred *models.Credential) error

	// GetByCredentialID returns the credential or common.ErrorNotFound.
	GetByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error)

	// ListByIdentity returns all credentials registered for the identity.
	ListByIdentity(ctx context.Context, identityID string) ([]*models.Credential, error)

	// UpdateCounter advances the signature counter and usage timestamps in
	// one atomic write, guarded by the counter value the caller observed.
	// If the stored counter no longer equals expected, nothing is written
	// and common.ErrVersionConflict is returned, so two concurrent
	// authentications against the same credential cannot lose an update.
	// verifiedAt is only recorded when non-nil (user verification asserted).
	UpdateCounter(ctx context.Context, credentialID []byte, expected, next uint32, usedAt time.Time, verifiedAt *time.Time) error
}
