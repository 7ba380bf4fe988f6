package keymaterial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/dbx"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, identityID string) (*models.VaultKeyMaterial, error) {
	query := `
		SELECT identity_id, salt, wrapped_key, nonce, created_at, updated_at
		FROM vault_key_material
		WHERE identity_id = $1
	`
	material := &models.VaultKeyMaterial{}
	err := r.db.QueryRowContext(ctx, query, identityID).
		Scan(&material.IdentityID, &material.Salt, &material.WrappedKey,
			&material.Nonce, &material.CreatedAt, &material.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return material, nil
}

func (r *PostgresRepository) Create(ctx context.Context, material *models.VaultKeyMaterial) error {
	query := `
		INSERT INTO vault_key_material (identity_id, salt, wrapped_key, nonce)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		material.IdentityID, material.Salt, material.WrappedKey, material.Nonce)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, material *models.VaultKeyMaterial) error {
	query := `
		UPDATE vault_key_material
		SET salt = $2, wrapped_key = $3, nonce = $4, updated_at = now()
		WHERE identity_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		material.IdentityID, material.Salt, material.WrappedKey, material.Nonce)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}
