// Package keymaterial provides persistence for wrapped vault key material.
// The server stores the salt, the wrapped vault key and its nonce as opaque
// blobs; it never sees the secret phrase or any derived key.
package keymaterial

import (
	"context"

	"github.com/dvoronkov/lockbox/internal/server/models"
)

type Repository interface {
	// Get returns the key material for the identity or common.ErrorNotFound.
	Get(ctx context.Context, identityID string) (*models.VaultKeyMaterial, error)

	// Create stores key material for an identity that has none yet.
	// A second create for the same identity yields common.ErrorAlreadyExists,
	// so an initialized vault cannot be silently replaced.
	Create(ctx context.Context, material *models.VaultKeyMaterial) error

	// Update replaces the stored material after a secret phrase rotation.
	Update(ctx context.Context, material *models.VaultKeyMaterial) error
}
