package webauthn

import "errors"

// Ceremony failures are mapped to these sentinels so callers can decide what
// to expose. Transport handlers return generic messages to clients and keep
// the specific cause in server logs.
var (
	ErrChallengeExpired    = errors.New("challenge expired")
	ErrChallengeMismatch   = errors.New("challenge mismatch")
	ErrAttestationInvalid  = errors.New("attestation invalid")
	ErrSignatureInvalid    = errors.New("signature invalid")
	ErrCounterRegression   = errors.New("signature counter regression")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrDuplicateCredential = errors.New("credential already registered")
)
