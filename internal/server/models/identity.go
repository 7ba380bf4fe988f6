package models

import "time"

// Identity is a user account. It is created on the first registration
// ceremony and never deleted by the authentication core.
type Identity struct {
	ID            string
	UserName      string
	DisplayName   string
	Email         string
	EmailVerified bool
	CreatedAt     time.Time
	LastSeenAt    time.Time
}
