// Package identities provides persistence for user identities.
package identities

import (
	"context"
	"time"

	"github.com/dvoronkov/lockbox/internal/server/models"
)

type Repository interface {
	// Create inserts a new identity and returns it with its assigned id.
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)

	// GetByUserName returns the identity for the given username or
	// common.ErrorNotFound.
	GetByUserName(ctx context.Context, userName string) (*models.Identity, error)

	// GetByID returns the identity for the given id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Identity, error)

	// TouchLastSeen records a successful sign-in.
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}
