package identities

import (
	"context"
	"sync"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and development.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.Identity
	byUserName map[string]*models.Identity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.Identity),
		byUserName: make(map[string]*models.Identity),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUserName[identity.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}

	now := time.Now()
	stored := *identity
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.LastSeenAt = now

	r.byID[stored.ID] = &stored
	r.byUserName[stored.UserName] = &stored

	result := stored
	return &result, nil
}

func (r *MemoryRepository) GetByUserName(ctx context.Context, userName string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byUserName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	result := *identity
	return &result, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	result := *identity
	return &result, nil
}

func (r *MemoryRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	identity.LastSeenAt = at
	return nil
}
