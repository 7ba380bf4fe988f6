package repomanager

import (
	"context"
	"database/sql"

	"github.com/dvoronkov/lockbox/internal/dbx"
	"github.com/dvoronkov/lockbox/internal/server/repositories/credentials"
	"github.com/dvoronkov/lockbox/internal/server/repositories/identities"
	"github.com/dvoronkov/lockbox/internal/server/repositories/keymaterial"
)

// MemoryRepositoryManager vends shared in-memory repositories. The DBTX
// argument is ignored; it exists only to satisfy RepositoryManager so
// services can run against memory storage in tests and development.
type MemoryRepositoryManager struct {
	identities  *identities.MemoryRepository
	credentials *credentials.MemoryRepository
	keyMaterial *keymaterial.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		identities:  identities.NewMemoryRepository(),
		credentials: credentials.NewMemoryRepository(),
		keyMaterial: keymaterial.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return m.identities
}

func (m *MemoryRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return m.credentials
}

func (m *MemoryRepositoryManager) KeyMaterial(db dbx.DBTX) keymaterial.Repository {
	return m.keyMaterial
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}
