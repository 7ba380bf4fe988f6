package credentials

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/models"
)

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Credential
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*models.Credential)}
}

func (r *MemoryRepository) Create(ctx context.Context, cred *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := hex.EncodeToString(cred.CredentialID)
	if _, ok := r.byID[key]; ok {
		return common.ErrorAlreadyExists
	}

	stored := *cred
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.byID[key] = &stored
	r.order = append(r.order, key)
	return nil
}

func (r *MemoryRepository) GetByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byID[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	result := *cred
	return &result, nil
}

func (r *MemoryRepository) ListByIdentity(ctx context.Context, identityID string) ([]*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := make([]*models.Credential, 0)
	for _, key := range r.order {
		cred := r.byID[key]
		if cred.IdentityID == identityID {
			result := *cred
			creds = append(creds, &result)
		}
	}
	return creds, nil
}

func (r *MemoryRepository) UpdateCounter(ctx context.Context, credentialID []byte, expected, next uint32, usedAt time.Time, verifiedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[hex.EncodeToString(credentialID)]
	if !ok {
		return common.ErrVersionConflict
	}
	if cred.Counter != expected {
		return common.ErrVersionConflict
	}
	cred.Counter = next
	cred.LastUsedAt = usedAt
	if verifiedAt != nil {
		cred.LastVerifiedAt = *verifiedAt
	}
	return nil
}
