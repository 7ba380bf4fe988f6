package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query := `
		INSERT INTO identities (username, display_name, email, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, last_seen_at
	`
	err := r.db.QueryRowContext(ctx, query,
		identity.UserName, identity.DisplayName, identity.Email, identity.EmailVerified).
		Scan(&identity.ID, &identity.CreatedAt, &identity.LastSeenAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return identity, nil
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.Identity, error) {
	query := `
		SELECT id, username, display_name, email, email_verified, created_at, last_seen_at
		FROM identities
		WHERE username = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userName))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	query := `
		SELECT id, username, display_name, email, email_verified, created_at, last_seen_at
		FROM identities
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE identities SET last_seen_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Identity, error) {
	identity := &models.Identity{}
	err := row.Scan(&identity.ID, &identity.UserName, &identity.DisplayName,
		&identity.Email, &identity.EmailVerified, &identity.CreatedAt, &identity.LastSeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
