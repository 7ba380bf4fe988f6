package models

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// AuthenticatorClass is the advisory classification of the authenticator
// model derived from its AAGUID. It never gates trust decisions.
type AuthenticatorClass string

const (
	// ClassPlatform is a platform-bound, user-verifying authenticator
	// (Windows Hello, Touch ID, Android keystore and the like).
	ClassPlatform AuthenticatorClass = "platform"

	// ClassCrossPlatform is a roaming authenticator (security keys).
	ClassCrossPlatform AuthenticatorClass = "cross-platform"

	// ClassUnknown covers AAGUIDs missing from the lookup table, including
	// the all-zero AAGUID many authenticators report under "none"
	// attestation. Unknown authenticators are accepted.
	ClassUnknown AuthenticatorClass = "unknown"
)

// Credential is a registered public-key credential.
//
// CredentialID is globally unique across all identities. Counter must never
// regress between successive authentications (except the permanent-zero case
// for authenticators that do not implement counters); a regression signals a
// cloned authenticator.
type Credential struct {
	CredentialID   []byte
	IdentityID     string
	PublicKey      []byte
	Counter        uint32
	Transports     []protocol.AuthenticatorTransport
	AAGUID         []byte
	Class          AuthenticatorClass
	UserVerified   bool
	Name           string
	CreatedAt      time.Time
	LastUsedAt     time.Time
	LastVerifiedAt time.Time
}
