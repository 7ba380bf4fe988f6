package webauthn

import (
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremonyUser adapts an identity and its stored credentials to the
// webauthn.User interface consumed by the ceremony library.
type ceremonyUser struct {
	identity *models.Identity
	creds    []webauthn.Credential
}

func newCeremonyUser(identity *models.Identity, stored []*models.Credential) *ceremonyUser {
	creds := make([]webauthn.Credential, len(stored))
	for i, c := range stored {
		creds[i] = toLibraryCredential(c)
	}
	return &ceremonyUser{identity: identity, creds: creds}
}

func (u *ceremonyUser) WebAuthnID() []byte { return []byte(u.identity.ID) }

func (u *ceremonyUser) WebAuthnName() string { return u.identity.UserName }

func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.identity.DisplayName != "" {
		return u.identity.DisplayName
	}
	return u.identity.UserName
}

func (u *ceremonyUser) WebAuthnIcon() string { return "" }

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toLibraryCredential(c *models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:        c.CredentialID,
		PublicKey: c.PublicKey,
		Transport: c.Transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:  true,
			UserVerified: c.UserVerified,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.Counter,
		},
	}
}
