package challenges

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(challenge string) *webauthn.SessionData {
	return &webauthn.SessionData{Challenge: challenge}
}

func TestRegistry_IssueAndConsume(t *testing.T) {
	r := NewRegistry(time.Minute)

	ch := r.Issue("id-1", PurposeRegistration, session("abc"))
	require.Equal(t, []byte("abc"), ch)

	got, err := r.Consume("id-1", PurposeRegistration, ch)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Challenge)
}

func TestRegistry_ConsumeIsSingleUse(t *testing.T) {
	r := NewRegistry(time.Minute)

	ch := r.Issue("id-1", PurposeAuthentication, session("abc"))

	_, err := r.Consume("id-1", PurposeAuthentication, ch)
	require.NoError(t, err)

	// Presenting the identical bytes a second time must fail: the entry was
	// removed on the first consume.
	_, err = r.Consume("id-1", PurposeAuthentication, ch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_MismatchRemovesEntry(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Issue("id-1", PurposeRegistration, session("abc"))

	_, err := r.Consume("id-1", PurposeRegistration, []byte("other"))
	assert.ErrorIs(t, err, ErrMismatch)

	// The mismatching attempt burned the challenge.
	_, err = r.Consume("id-1", PurposeRegistration, []byte("abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_NeverIssued(t *testing.T) {
	r := NewRegistry(time.Minute)

	_, err := r.Consume("ghost", PurposeRegistration, []byte("abc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_IssueOverwrites(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Issue("id-1", PurposeRegistration, session("first"))
	r.Issue("id-1", PurposeRegistration, session("second"))

	// The first ceremony was cancelled by the second begin.
	_, err := r.Consume("id-1", PurposeRegistration, []byte("first"))
	assert.ErrorIs(t, err, ErrMismatch)

	r.Issue("id-1", PurposeRegistration, session("third"))
	got, err := r.Consume("id-1", PurposeRegistration, []byte("third"))
	require.NoError(t, err)
	assert.Equal(t, "third", got.Challenge)
}

func TestRegistry_PurposesAreIndependent(t *testing.T) {
	r := NewRegistry(time.Minute)

	r.Issue("id-1", PurposeRegistration, session("reg"))
	r.Issue("id-1", PurposeAuthentication, session("auth"))

	got, err := r.Consume("id-1", PurposeAuthentication, []byte("auth"))
	require.NoError(t, err)
	assert.Equal(t, "auth", got.Challenge)

	got, err = r.Consume("id-1", PurposeRegistration, []byte("reg"))
	require.NoError(t, err)
	assert.Equal(t, "reg", got.Challenge)
}

func TestRegistry_Expiry(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)

	ch := r.Issue("id-1", PurposeAuthentication, session("abc"))
	time.Sleep(30 * time.Millisecond)

	_, err := r.Consume("id-1", PurposeAuthentication, ch)
	assert.ErrorIs(t, err, ErrExpired)

	// Expired consume also removed the entry.
	_, err = r.Consume("id-1", PurposeAuthentication, ch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)

	r.Issue("id-1", PurposeRegistration, session("a"))
	r.Issue("id-2", PurposeRegistration, session("b"))
	r.Issue("id-3", PurposeAuthentication, session("c"))
	require.Equal(t, 3, r.Len())

	time.Sleep(30 * time.Millisecond)
	r.Issue("id-4", PurposeRegistration, session("fresh"))

	removed := r.Sweep()
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, r.Len())

	got, err := r.Consume("id-4", PurposeRegistration, []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Challenge)
}
