// Package webauthn implements the credential authority: it drives the
// registration and authentication ceremonies, owns the pending-challenge
// registry, and persists credentials with their signature counters.
package webauthn

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/logging"
	"github.com/dvoronkov/lockbox/internal/server/challenges"
	"github.com/dvoronkov/lockbox/internal/server/metrics"
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/dvoronkov/lockbox/internal/server/repositories/repomanager"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Params collects the dependencies of the credential authority.
type Params struct {
	DB          *sql.DB
	Repos       repomanager.RepositoryManager
	Challenges  *challenges.Registry
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	RPID        string
	RPName      string
	RPOrigins   []string
}

// Service is the credential authority. All ceremony state lives in the
// challenge registry; credentials and counters live in the repositories.
type Service struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	wa         *webauthn.WebAuthn
	challenges *challenges.Registry
	metrics    *metrics.Metrics
	log        logging.Logger
}

func NewService(p Params) (*Service, error) {
	if p.Repos == nil {
		return nil, errors.New("repository manager is required")
	}
	if p.Challenges == nil {
		return nil, errors.New("challenge registry is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          p.RPID,
		RPDisplayName: p.RPName,
		RPOrigins:     p.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn config: %w", err)
	}

	return &Service{
		db:         p.DB,
		repos:      p.Repos,
		wa:         wa,
		challenges: p.Challenges,
		metrics:    p.Metrics,
		log:        p.Logger.With("component", "credential-authority"),
	}, nil
}

// BeginRegistration issues creation options for userName, creating the
// identity on first contact. Already-registered credentials are placed on the
// exclusion list so the browser refuses to re-enroll the same authenticator.
func (s *Service) BeginRegistration(ctx context.Context, userName, displayName string) (*protocol.CredentialCreation, error) {
	identity, err := s.getOrCreateIdentity(ctx, userName, displayName)
	if err != nil {
		return nil, err
	}

	stored, err := s.repos.Credentials(s.db).ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	exclusions := make([]protocol.CredentialDescriptor, len(stored))
	for i, c := range stored {
		exclusions[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: c.CredentialID,
			Transport:    c.Transports,
		}
	}

	user := newCeremonyUser(identity, stored)
	options, session, err := s.wa.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementPreferred),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
	)
	if err != nil {
		s.log.Error(ctx, "begin registration failed", "user", userName, "error", err)
		return nil, common.ErrorInternal
	}

	s.challenges.Issue(identity.ID, challenges.PurposeRegistration, session)
	return options, nil
}

// FinishRegistration verifies the attestation response, classifies the
// authenticator, and stores the new credential. The pending challenge is
// consumed whatever the outcome.
func (s *Service) FinishRegistration(ctx context.Context, userName, credentialName string, parsed *protocol.ParsedCredentialCreationData) (*models.Credential, error) {
	identity, err := s.lookupIdentity(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorInternal) {
			return nil, err
		}
		return nil, s.registrationFailure(ctx, userName, ErrChallengeMismatch, err)
	}

	candidate := []byte(parsed.Response.CollectedClientData.Challenge)
	session, err := s.challenges.Consume(identity.ID, challenges.PurposeRegistration, candidate)
	if err != nil {
		return nil, s.registrationFailure(ctx, userName, mapChallengeError(err), err)
	}

	stored, err := s.repos.Credentials(s.db).ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := newCeremonyUser(identity, stored)
	libCred, err := s.wa.CreateCredential(user, *session, parsed)
	if err != nil {
		return nil, s.registrationFailure(ctx, userName, ErrAttestationInvalid, err)
	}

	cred := &models.Credential{
		CredentialID: libCred.ID,
		IdentityID:   identity.ID,
		PublicKey:    libCred.PublicKey,
		Counter:      libCred.Authenticator.SignCount,
		Transports:   libCred.Transport,
		AAGUID:       libCred.Authenticator.AAGUID,
		Class:        ClassifyAAGUID(libCred.Authenticator.AAGUID),
		UserVerified: libCred.Flags.UserVerified,
		Name:         credentialName,
	}
	if err := s.repos.Credentials(s.db).Create(ctx, cred); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, s.registrationFailure(ctx, userName, ErrDuplicateCredential, err)
		}
		return nil, common.ErrorInternal
	}

	s.metrics.CeremonyResult("registration", "success")
	s.log.Info(ctx, "credential registered",
		"user", userName,
		"credential_id", base64.RawURLEncoding.EncodeToString(cred.CredentialID),
		"class", string(cred.Class))
	return cred, nil
}

// BeginAuthentication issues assertion options listing the identity's
// registered credentials.
func (s *Service) BeginAuthentication(ctx context.Context, userName string) (*protocol.CredentialAssertion, error) {
	identity, err := s.lookupIdentity(ctx, userName)
	if err != nil {
		return nil, err
	}

	stored, err := s.repos.Credentials(s.db).ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if len(stored) == 0 {
		return nil, ErrCredentialNotFound
	}

	user := newCeremonyUser(identity, stored)
	options, session, err := s.wa.BeginLogin(user)
	if err != nil {
		s.log.Error(ctx, "begin authentication failed", "user", userName, "error", err)
		return nil, common.ErrorInternal
	}

	s.challenges.Issue(identity.ID, challenges.PurposeAuthentication, session)
	return options, nil
}

// FinishAuthentication verifies the assertion and advances the signature
// counter. A counter that fails to advance (on a credential that has ever
// reported a non-zero counter) is treated as a possible cloned authenticator:
// the assertion is rejected, the stored counter is left untouched, and the
// event is logged and counted.
func (s *Service) FinishAuthentication(ctx context.Context, userName string, parsed *protocol.ParsedCredentialAssertionData) (*models.Identity, *models.Credential, error) {
	identity, err := s.lookupIdentity(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorInternal) {
			return nil, nil, err
		}
		return nil, nil, s.authenticationFailure(ctx, userName, ErrChallengeMismatch, err)
	}

	candidate := []byte(parsed.Response.CollectedClientData.Challenge)
	session, err := s.challenges.Consume(identity.ID, challenges.PurposeAuthentication, candidate)
	if err != nil {
		return nil, nil, s.authenticationFailure(ctx, userName, mapChallengeError(err), err)
	}

	stored, err := s.repos.Credentials(s.db).ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	user := newCeremonyUser(identity, stored)
	libCred, err := s.wa.ValidateLogin(user, *session, parsed)
	if err != nil {
		return nil, nil, s.authenticationFailure(ctx, userName, ErrSignatureInvalid, err)
	}

	var matched *models.Credential
	for _, c := range stored {
		if string(c.CredentialID) == string(libCred.ID) {
			matched = c
			break
		}
	}
	if matched == nil {
		return nil, nil, s.authenticationFailure(ctx, userName, ErrCredentialNotFound, nil)
	}

	newCount := libCred.Authenticator.SignCount
	if libCred.Authenticator.CloneWarning || !counterAdvanced(matched.Counter, newCount) {
		return nil, nil, s.counterRegression(ctx, userName, matched, newCount)
	}

	now := time.Now()
	var verifiedAt *time.Time
	if libCred.Flags.UserVerified {
		verifiedAt = &now
	}
	err = s.repos.Credentials(s.db).UpdateCounter(ctx, matched.CredentialID, matched.Counter, newCount, now, verifiedAt)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			// Someone else advanced the counter between our read and write:
			// the same credential asserted twice in parallel.
			return nil, nil, s.counterRegression(ctx, userName, matched, newCount)
		}
		return nil, nil, common.ErrorInternal
	}

	if err := s.repos.Identities(s.db).TouchLastSeen(ctx, identity.ID, now); err != nil {
		s.log.Warn(ctx, "failed to record last seen", "user", userName, "error", err)
	}

	matched.Counter = newCount
	matched.LastUsedAt = now
	if verifiedAt != nil {
		matched.LastVerifiedAt = *verifiedAt
	}

	s.metrics.CeremonyResult("authentication", "success")
	s.log.Info(ctx, "authentication succeeded",
		"user", userName,
		"credential_id", base64.RawURLEncoding.EncodeToString(matched.CredentialID))
	return identity, matched, nil
}

// Identity returns the identity registered under userName, or
// common.ErrorNotFound.
func (s *Service) Identity(ctx context.Context, userName string) (*models.Identity, error) {
	return s.lookupIdentity(ctx, userName)
}

// Credentials lists the identity's registered credentials for account
// management views.
func (s *Service) Credentials(ctx context.Context, identityID string) ([]*models.Credential, error) {
	return s.repos.Credentials(s.db).ListByIdentity(ctx, identityID)
}

// counterAdvanced reports whether the asserted counter satisfies the
// monotonicity rule: strictly greater than the stored value, except that
// authenticators which never implement counters report zero forever.
func counterAdvanced(stored, asserted uint32) bool {
	if stored == 0 && asserted == 0 {
		return true
	}
	return asserted > stored
}

// lookupIdentity loads the identity for userName. common.ErrorNotFound passes
// through; any other repository failure is an infrastructure problem, logged
// and reported as common.ErrorInternal so it is never mistaken for a ceremony
// rejection.
func (s *Service) lookupIdentity(ctx context.Context, userName string) (*models.Identity, error) {
	identity, err := s.repos.Identities(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		s.log.Error(ctx, "identity lookup failed", "user", userName, "error", err)
		return nil, common.ErrorInternal
	}
	return identity, nil
}

func (s *Service) getOrCreateIdentity(ctx context.Context, userName, displayName string) (*models.Identity, error) {
	repo := s.repos.Identities(s.db)
	identity, err := s.lookupIdentity(ctx, userName)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	identity, err = repo.Create(ctx, &models.Identity{UserName: userName, DisplayName: displayName})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			// Lost a race with a concurrent first registration.
			return repo.GetByUserName(ctx, userName)
		}
		return nil, common.ErrorInternal
	}
	s.log.Info(ctx, "identity created", "user", userName)
	return identity, nil
}

func (s *Service) registrationFailure(ctx context.Context, userName string, sentinel, cause error) error {
	s.metrics.CeremonyResult("registration", "failure")
	s.log.Warn(ctx, "registration rejected", "user", userName, "reason", sentinel.Error(), "error", cause)
	return sentinel
}

func (s *Service) authenticationFailure(ctx context.Context, userName string, sentinel, cause error) error {
	s.metrics.CeremonyResult("authentication", "failure")
	s.log.Warn(ctx, "authentication rejected", "user", userName, "reason", sentinel.Error(), "error", cause)
	return sentinel
}

func (s *Service) counterRegression(ctx context.Context, userName string, cred *models.Credential, asserted uint32) error {
	s.metrics.CeremonyResult("authentication", "failure")
	s.metrics.CounterRegression()
	s.log.Warn(ctx, "signature counter did not advance, possible cloned authenticator",
		"user", userName,
		"credential_id", base64.RawURLEncoding.EncodeToString(cred.CredentialID),
		"stored_counter", cred.Counter,
		"asserted_counter", asserted)
	return ErrCounterRegression
}

func mapChallengeError(err error) error {
	if errors.Is(err, challenges.ErrExpired) {
		return ErrChallengeExpired
	}
	return ErrChallengeMismatch
}
