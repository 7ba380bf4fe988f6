package keymaterial

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"identity_id", "salt", "wrapped_key", "nonce", "created_at", "updated_at"}).
		AddRow("id-1", []byte("salt"), []byte("wrapped"), []byte("nonce"), now, now)
	mock.ExpectQuery(`SELECT\s+identity_id,.*FROM\s+vault_key_material\s+WHERE\s+identity_id\s*=\s*\$1`).
		WithArgs("id-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.IdentityID != "id-1" || string(got.WrappedKey) != "wrapped" {
		t.Fatalf("unexpected material: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+identity_id,.*FROM\s+vault_key_material`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestCreate_FirstWriteWins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+vault_key_material`).
		WithArgs("id-1", []byte("salt"), []byte("wrapped"), []byte("nonce")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+vault_key_material`).
		WithArgs("id-1", []byte("salt2"), []byte("wrapped2"), []byte("nonce2")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	first := &models.VaultKeyMaterial{IdentityID: "id-1", Salt: []byte("salt"), WrappedKey: []byte("wrapped"), Nonce: []byte("nonce")}
	if err := repo.Create(context.Background(), first); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	second := &models.VaultKeyMaterial{IdentityID: "id-1", Salt: []byte("salt2"), WrappedKey: []byte("wrapped2"), Nonce: []byte("nonce2")}
	if err := repo.Create(context.Background(), second); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+vault_key_material\s+SET\s+salt\s*=\s*\$2`).
		WithArgs("id-1", []byte("salt"), []byte("wrapped"), []byte("nonce")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &models.VaultKeyMaterial{IdentityID: "id-1", Salt: []byte("salt"), WrappedKey: []byte("wrapped"), Nonce: []byte("nonce")}
	if err := repo.Update(context.Background(), m); err != nil {
		t.Fatalf("Update error: %v", err)
	}
}

func TestUpdate_MissingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+vault_key_material\s+SET\s+salt\s*=\s*\$2`).
		WithArgs("ghost", []byte("s"), []byte("w"), []byte("n")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := &models.VaultKeyMaterial{IdentityID: "ghost", Salt: []byte("s"), WrappedKey: []byte("w"), Nonce: []byte("n")}
	if err := repo.Update(context.Background(), m); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
