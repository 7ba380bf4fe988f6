package keymaterial

import (
	"context"
	"sync"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/models"
)

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu         sync.RWMutex
	byIdentity map[string]*models.VaultKeyMaterial
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byIdentity: make(map[string]*models.VaultKeyMaterial)}
}

func (r *MemoryRepository) Get(ctx context.Context, identityID string) (*models.VaultKeyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	material, ok := r.byIdentity[identityID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	result := *material
	return &result, nil
}

func (r *MemoryRepository) Create(ctx context.Context, material *models.VaultKeyMaterial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentity[material.IdentityID]; ok {
		return common.ErrorAlreadyExists
	}

	now := time.Now()
	stored := *material
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.byIdentity[stored.IdentityID] = &stored
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, material *models.VaultKeyMaterial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byIdentity[material.IdentityID]
	if !ok {
		return common.ErrorNotFound
	}

	stored := *material
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	r.byIdentity[stored.IdentityID] = &stored
	return nil
}
