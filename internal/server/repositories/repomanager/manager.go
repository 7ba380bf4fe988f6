package repomanager

import (
	"context"
	"database/sql"

	"github.com/dvoronkov/lockbox/internal/dbx"
	"github.com/dvoronkov/lockbox/internal/server/repositories/credentials"
	"github.com/dvoronkov/lockbox/internal/server/repositories/identities"
	"github.com/dvoronkov/lockbox/internal/server/repositories/keymaterial"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	KeyMaterial(db dbx.DBTX) keymaterial.Repository
}
