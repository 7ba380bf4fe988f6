package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/dbx"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/go-webauthn/webauthn/protocol"
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

func (r *PostgresRepository) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO credentials
			(credential_id, identity_id, public_key, counter, transports,
			 aaguid, class, user_verified, name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		cred.CredentialID, cred.IdentityID, cred.PublicKey, int64(cred.Counter),
		joinTransports(cred.Transports), cred.AAGUID, string(cred.Class),
		cred.UserVerified, cred.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error) {
	query := selectCredential + ` WHERE credential_id = $1`

	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, credentialID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cred, nil
}

func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string) ([]*models.Credential, error) {
	query := selectCredential + ` WHERE identity_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	creds := make([]*models.Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return creds, nil
}

func (r *PostgresRepository) UpdateCounter(ctx context.Context, credentialID []byte, expected, next uint32, usedAt time.Time, verifiedAt *time.Time) error {
	query := `
		UPDATE credentials
		SET counter = $3,
		    last_used_at = $4,
		    last_verified_at = COALESCE($5, last_verified_at)
		WHERE credential_id = $1 AND counter = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		credentialID, int64(expected), int64(next), usedAt, verifiedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

const selectCredential = `
	SELECT credential_id, identity_id, public_key, counter, transports,
	       aaguid, class, user_verified, name,
	       created_at, last_used_at, last_verified_at
	FROM credentials
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	cred := &models.Credential{}
	var counter int64
	var transports, class string
	var lastUsed, lastVerified sql.NullTime

	err := row.Scan(&cred.CredentialID, &cred.IdentityID, &cred.PublicKey,
		&counter, &transports, &cred.AAGUID, &class, &cred.UserVerified,
		&cred.Name, &cred.CreatedAt, &lastUsed, &lastVerified)
	if err != nil {
		return nil, err
	}

	cred.Counter = uint32(counter)
	cred.Transports = splitTransports(transports)
	cred.Class = models.AuthenticatorClass(class)
	if lastUsed.Valid {
		cred.LastUsedAt = lastUsed.Time
	}
	if lastVerified.Valid {
		cred.LastVerifiedAt = lastVerified.Time
	}
	return cred, nil
}

func joinTransports(transports []protocol.AuthenticatorTransport) string {
	parts := make([]string, len(transports))
	for i, t := range transports {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func splitTransports(s string) []protocol.AuthenticatorTransport {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	transports := make([]protocol.AuthenticatorTransport, len(parts))
	for i, p := range parts {
		transports[i] = protocol.AuthenticatorTransport(p)
	}
	return transports
}
