package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCredential(id byte, identityID string) *models.Credential {
	return &models.Credential{
		CredentialID: []byte{id, 0x01, 0x02},
		IdentityID:   identityID,
		PublicKey:    []byte("pk"),
		Counter:      5,
		Class:        models.ClassCrossPlatform,
		Name:         "key",
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cred := newTestCredential(0xaa, "identity-1")
	require.NoError(t, repo.Create(ctx, cred))

	got, err := repo.GetByCredentialID(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, cred.IdentityID, got.IdentityID)
	assert.Equal(t, uint32(5), got.Counter)

	err = repo.Create(ctx, newTestCredential(0xaa, "identity-2"))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemoryRepository_GetMissing(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.GetByCredentialID(context.Background(), []byte{0x01})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ListByIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestCredential(0x01, "identity-1")))
	require.NoError(t, repo.Create(ctx, newTestCredential(0x02, "identity-1")))
	require.NoError(t, repo.Create(ctx, newTestCredential(0x03, "identity-2")))

	creds, err := repo.ListByIdentity(ctx, "identity-1")
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	creds, err = repo.ListByIdentity(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestMemoryRepository_UpdateCounter(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cred := newTestCredential(0xbb, "identity-1")
	require.NoError(t, repo.Create(ctx, cred))

	now := time.Now()
	verified := now.Add(time.Second)
	err := repo.UpdateCounter(ctx, cred.CredentialID, 5, 6, now, &verified)
	require.NoError(t, err)

	got, err := repo.GetByCredentialID(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.Counter)
	assert.Equal(t, now, got.LastUsedAt)
	assert.Equal(t, verified, got.LastVerifiedAt)
}

func TestMemoryRepository_UpdateCounterStale(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cred := newTestCredential(0xcc, "identity-1")
	require.NoError(t, repo.Create(ctx, cred))

	err := repo.UpdateCounter(ctx, cred.CredentialID, 4, 6, time.Now(), nil)
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	got, err := repo.GetByCredentialID(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.Counter, "stale update must not write")
}

func TestMemoryRepository_UpdateCounterNoVerification(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	cred := newTestCredential(0xdd, "identity-1")
	require.NoError(t, repo.Create(ctx, cred))

	err := repo.UpdateCounter(ctx, cred.CredentialID, 5, 6, time.Now(), nil)
	require.NoError(t, err)

	got, err := repo.GetByCredentialID(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.True(t, got.LastVerifiedAt.IsZero(), "verification timestamp must stay unset")
}
