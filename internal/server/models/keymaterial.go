package models

import "time"

// VaultKeyMaterial is the server-stored, zero-knowledge half of the client
// key chain: a random salt plus the vault key wrapped (encrypted) under a
// key derived from the user's secret. The unwrapped vault key never reaches
// the server.
type VaultKeyMaterial struct {
	IdentityID string
	Salt       []byte
	WrappedKey []byte
	Nonce      []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
