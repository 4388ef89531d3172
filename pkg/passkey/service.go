// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// ServiceParams holds the collaborators for NewService. Config, Identities,
// Challenges and Registry are required; Verifier defaults to the protocol
// verifier, Sessions and Logger are optional.
type ServiceParams struct {
	Config     *Config
	Identities IdentityStore
	Challenges ChallengeStore
	Registry   CredentialRegistry
	Verifier   Verifier
	Sessions   SessionIssuer
	Logger     *slog.Logger
}

// Service orchestrates passkey registration and authentication ceremonies.
// Each ceremony is bounded by one single-use challenge: Start issues it,
// Finish consumes it. Every failure is terminal for the attempt and leaves
// the registry untouched; callers retry from Start.
type Service struct {
	config     *Config
	identities IdentityStore
	challenges ChallengeStore
	registry   CredentialRegistry
	verifier   Verifier
	sessions   SessionIssuer
	logger     *slog.Logger
}

// NewService creates a ceremony service from the given collaborators.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	if params.Identities == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("credential registry is required")
	}
	if params.Verifier == nil {
		params.Verifier = NewProtocolVerifier()
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}

	return &Service{
		config:     params.Config,
		identities: params.Identities,
		challenges: params.Challenges,
		registry:   params.Registry,
		verifier:   params.Verifier,
		sessions:   params.Sessions,
		logger:     params.Logger,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// StartRegistration begins a registration ceremony for the account with the
// given email, provisioning the identity if it does not exist yet. It issues
// a fresh challenge and returns the credential creation options to hand to
// the client, along with the identity the ceremony is bound to.
//
// Starting again before finishing reissues the challenge; only the latest
// one can complete the ceremony.
func (s *Service) StartRegistration(ctx context.Context, email, displayName string) (*protocol.CredentialCreation, *Identity, error) {
	if email == "" {
		return nil, nil, wrap("start registration", ErrInvalidIdentity)
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		identity, err = s.identities.Create(ctx, email, displayName)
		if err != nil {
			return nil, nil, wrap("start registration", err)
		}
	}

	existing, err := s.registry.GetByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, nil, wrap("start registration", err)
	}
	if s.config.SingleCredentialPerIdentity && len(existing) > 0 {
		return nil, nil, wrap("start registration", ErrDuplicateCredential)
	}

	challenge, err := s.challenges.Issue(ctx, identity.ID, CeremonyRegistration,
		s.config.ceremonyContext(CeremonyRegistration), s.config.ChallengeTTL)
	if err != nil {
		return nil, nil, wrap("start registration", err)
	}

	excludeList := make([]protocol.CredentialDescriptor, len(existing))
	for i, cred := range existing {
		excludeList[i] = cred.Descriptor()
	}

	options := &protocol.CredentialCreation{
		Response: protocol.PublicKeyCredentialCreationOptions{
			Challenge: protocol.URLEncodedBase64(challenge.Value),
			RelyingParty: protocol.RelyingPartyEntity{
				CredentialEntity: protocol.CredentialEntity{Name: s.config.RPDisplayName},
				ID:               s.config.RPID,
			},
			User: protocol.UserEntity{
				CredentialEntity: protocol.CredentialEntity{Name: identity.Email},
				DisplayName:      identity.Label(),
				ID:               protocol.URLEncodedBase64(identity.ID),
			},
			Parameters:             credentialParameters(),
			Timeout:                int(s.config.Timeout.Milliseconds()),
			AuthenticatorSelection: s.config.authenticatorSelection(),
			Attestation:            s.config.attestation(),
			CredentialExcludeList:  excludeList,
		},
	}

	s.logger.Info("registration ceremony started",
		"identity", identity.Label(),
		"existing_credentials", len(existing))

	return options, identity, nil
}

// FinishRegistration completes a registration ceremony. It consumes the
// identity's registration challenge, verifies the creation response against
// it, and on success persists the new credential and mints a session token
// when a SessionIssuer is configured. The challenge is gone either way; a
// failed finish requires a new Start.
func (s *Service) FinishRegistration(ctx context.Context, identityID []byte, response *protocol.ParsedCredentialCreationData) (*Credential, string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, "", wrap("finish registration", err)
	}

	challenge, err := s.challenges.Consume(ctx, identityID, CeremonyRegistration)
	if err != nil {
		return nil, "", wrap("finish registration", err)
	}

	result, err := s.verifier.VerifyRegistration(challenge, response)
	if err != nil {
		s.auditFailure("registration", identity, err)
		return nil, "", err
	}

	if s.config.SingleCredentialPerIdentity {
		existing, err := s.registry.GetByIdentity(ctx, identityID)
		if err != nil {
			return nil, "", wrap("finish registration", err)
		}
		if len(existing) > 0 {
			return nil, "", wrap("finish registration", ErrDuplicateCredential)
		}
	}

	cred := &Credential{
		ID:              result.CredentialID,
		IdentityID:      identity.ID,
		PublicKey:       result.PublicKey,
		AttestationType: result.AttestationType,
		Transport:       result.Transport,
		Flags:           result.Flags,
		AAGUID:          result.AAGUID,
		SignCount:       result.SignCount,
	}

	if err := s.registry.Put(ctx, cred); err != nil {
		return nil, "", wrap("finish registration", err)
	}

	token := ""
	if s.sessions != nil {
		token, err = s.sessions.Issue(ctx, identity)
		if err != nil {
			s.logger.Error("session issuance failed",
				"identity", identity.Label(),
				"error", err)
			return nil, "", wrap("finish registration", ErrSessionIssuance)
		}
	}

	s.logger.Info("credential registered",
		"identity", identity.Label(),
		"attestation", cred.AttestationType,
		"backup_eligible", cred.Flags.BackupEligible)

	return cred, token, nil
}

// StartAuthentication begins an authentication ceremony. The identity must
// already have at least one registered credential; otherwise no challenge is
// issued and ErrNoCredentials is returned.
func (s *Service) StartAuthentication(ctx context.Context, identityID []byte) (*protocol.CredentialAssertion, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, wrap("start authentication", err)
	}

	creds, err := s.registry.GetByIdentity(ctx, identityID)
	if err != nil {
		return nil, wrap("start authentication", err)
	}
	if len(creds) == 0 {
		return nil, wrap("start authentication", ErrNoCredentials)
	}

	challenge, err := s.challenges.Issue(ctx, identityID, CeremonyAuthentication,
		s.config.ceremonyContext(CeremonyAuthentication), s.config.ChallengeTTL)
	if err != nil {
		return nil, wrap("start authentication", err)
	}

	allowList := make([]protocol.CredentialDescriptor, len(creds))
	for i, cred := range creds {
		allowList[i] = cred.Descriptor()
	}

	options := &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:          protocol.URLEncodedBase64(challenge.Value),
			Timeout:            int(s.config.Timeout.Milliseconds()),
			RelyingPartyID:     s.config.RPID,
			UserVerification:   s.config.userVerification(),
			AllowedCredentials: allowList,
		},
	}

	s.logger.Info("authentication ceremony started",
		"identity", identity.Label(),
		"credentials", len(creds))

	return options, nil
}

// FinishAuthentication completes an authentication ceremony. It consumes the
// identity's authentication challenge, resolves the asserted credential,
// verifies the assertion, advances the signature counter, and mints a
// session token when a SessionIssuer is configured.
//
// A credential id that is unknown or owned by a different identity yields
// the same ErrCredentialNotFound; the caller learns nothing about other
// identities' credentials.
func (s *Service) FinishAuthentication(ctx context.Context, identityID []byte, response *protocol.ParsedCredentialAssertionData) (string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return "", wrap("finish authentication", err)
	}

	challenge, err := s.challenges.Consume(ctx, identityID, CeremonyAuthentication)
	if err != nil {
		return "", wrap("finish authentication", err)
	}

	cred, err := s.lookupCredential(ctx, identityID, response)
	if err != nil {
		s.auditFailure("authentication", identity, err)
		return "", err
	}

	newCount, err := s.verifier.VerifyAuthentication(challenge, cred, response)
	if err != nil {
		s.auditFailure("authentication", identity, err)
		return "", err
	}

	if err := s.registry.UpdateCounter(ctx, cred.ID, newCount); err != nil {
		s.auditFailure("authentication", identity, err)
		return "", wrap("finish authentication", err)
	}

	token := ""
	if s.sessions != nil {
		token, err = s.sessions.Issue(ctx, identity)
		if err != nil {
			s.logger.Error("session issuance failed",
				"identity", identity.Label(),
				"error", err)
			return "", wrap("finish authentication", ErrSessionIssuance)
		}
	}

	s.logger.Info("authentication succeeded",
		"identity", identity.Label(),
		"sign_count", newCount)

	return token, nil
}

// Identity resolves an account by email.
func (s *Service) Identity(ctx context.Context, email string) (*Identity, error) {
	return s.identities.GetByEmail(ctx, email)
}

// Registered reports whether the identity has at least one credential.
func (s *Service) Registered(ctx context.Context, identityID []byte) (bool, error) {
	if _, err := s.identities.GetByID(ctx, identityID); err != nil {
		return false, wrap("registration status", err)
	}
	creds, err := s.registry.GetByIdentity(ctx, identityID)
	if err != nil {
		return false, wrap("registration status", err)
	}
	return len(creds) > 0, nil
}

// Credentials returns the identity's registered credentials.
func (s *Service) Credentials(ctx context.Context, identityID []byte) ([]*Credential, error) {
	if _, err := s.identities.GetByID(ctx, identityID); err != nil {
		return nil, wrap("list credentials", err)
	}
	return s.registry.GetByIdentity(ctx, identityID)
}

// lookupCredential resolves the asserted credential for the requesting
// identity. Unknown ids and ids owned by other identities collapse into one
// error so the response cannot be used to probe the registry.
func (s *Service) lookupCredential(ctx context.Context, identityID []byte, response *protocol.ParsedCredentialAssertionData) (*Credential, error) {
	if response == nil || len(response.RawID) == 0 {
		return nil, wrap("finish authentication", ErrMalformedAssertion)
	}

	cred, err := s.registry.GetByCredentialID(ctx, response.RawID)
	if err != nil {
		return nil, wrap("finish authentication", ErrCredentialNotFound)
	}
	if !bytes.Equal(cred.IdentityID, identityID) {
		return nil, wrap("finish authentication", ErrCredentialNotFound)
	}
	return cred, nil
}

// auditFailure records a failed ceremony. Security-significant kinds get a
// warning with an event tag for downstream alerting; the rest log at info.
func (s *Service) auditFailure(ceremony string, identity *Identity, err error) {
	if IsSecuritySignificant(err) {
		s.logger.Warn("ceremony verification failed",
			"event", "security",
			"ceremony", ceremony,
			"identity", identity.Label(),
			"error", err)
		return
	}
	s.logger.Info("ceremony failed",
		"ceremony", ceremony,
		"identity", identity.Label(),
		"error", err)
}

// credentialParameters lists the COSE algorithms accepted at registration,
// in preference order.
func credentialParameters() []protocol.CredentialParameter {
	return []protocol.CredentialParameter{
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgEdDSA},
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
	}
}
