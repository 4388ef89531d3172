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
	"crypto/sha256"
	"encoding/base64"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// ProtocolVerifier validates WebAuthn ceremony responses. It is stateless;
// every check depends only on the challenge, the ceremony context captured
// at issue time, and (for authentication) the stored credential.
//
// Checks run in a fixed order and the first failure wins, so a given bad
// response always maps to the same error kind.
type ProtocolVerifier struct{}

// NewProtocolVerifier creates a verifier.
func NewProtocolVerifier() *ProtocolVerifier {
	return &ProtocolVerifier{}
}

// VerifyRegistration checks a credential creation response against the
// issued challenge and extracts the new credential.
//
// The public key is taken from the attested credential data inside the
// authenticator data, never from the raw attestation object, and must parse
// as a COSE key before the credential is accepted.
func (v *ProtocolVerifier) VerifyRegistration(challenge *Challenge, response *protocol.ParsedCredentialCreationData) (*RegistrationResult, error) {
	if challenge == nil || response == nil {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}

	clientData := &response.Response.CollectedClientData
	if clientData.Type != protocol.CreateCeremony {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}
	if err := verifyClientContext(clientData, challenge); err != nil {
		return nil, wrap("verify registration", err)
	}

	authData := &response.Response.AttestationObject.AuthData
	if err := verifyAuthenticatorContext(authData, &challenge.Context); err != nil {
		return nil, wrap("verify registration", err)
	}

	if !authData.Flags.HasAttestedCredentialData() {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}

	attData := &authData.AttData
	if len(attData.CredentialID) == 0 {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}
	if !bytes.Equal(response.RawID, attData.CredentialID) {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}

	// Reject key material the assertion path could not use later.
	if _, err := webauthncose.ParsePublicKey(attData.CredentialPublicKey); err != nil {
		return nil, wrap("verify registration", ErrMalformedAssertion)
	}

	publicKey := make([]byte, len(attData.CredentialPublicKey))
	copy(publicKey, attData.CredentialPublicKey)

	credID := make([]byte, len(attData.CredentialID))
	copy(credID, attData.CredentialID)

	aaguid := make([]byte, len(attData.AAGUID))
	copy(aaguid, attData.AAGUID)

	return &RegistrationResult{
		CredentialID:    credID,
		PublicKey:       publicKey,
		SignCount:       authData.Counter,
		AttestationType: response.Response.AttestationObject.Format,
		Transport:       response.Response.Transports,
		Flags: CredentialFlags{
			UserPresent:    authData.Flags.UserPresent(),
			UserVerified:   authData.Flags.UserVerified(),
			BackupEligible: authData.Flags.HasBackupEligible(),
			BackupState:    authData.Flags.HasBackupState(),
		},
		AAGUID: aaguid,
	}, nil
}

// VerifyAuthentication checks an assertion response against the issued
// challenge and the stored credential, returning the authenticator-reported
// counter on success.
//
// The signature covers rawAuthenticatorData || SHA-256(clientDataJSON); both
// pieces come from the raw response so the verified bytes are exactly what
// the authenticator signed. The counter check runs after the signature
// check: a valid signature with a non-advancing counter is treated as a
// cloned authenticator, not a success.
func (v *ProtocolVerifier) VerifyAuthentication(challenge *Challenge, cred *Credential, response *protocol.ParsedCredentialAssertionData) (uint32, error) {
	if challenge == nil || cred == nil || response == nil {
		return 0, wrap("verify authentication", ErrMalformedAssertion)
	}

	clientData := &response.Response.CollectedClientData
	if clientData.Type != protocol.AssertCeremony {
		return 0, wrap("verify authentication", ErrMalformedAssertion)
	}
	if err := verifyClientContext(clientData, challenge); err != nil {
		return 0, wrap("verify authentication", err)
	}

	authData := &response.Response.AuthenticatorData
	if err := verifyAuthenticatorContext(authData, &challenge.Context); err != nil {
		return 0, wrap("verify authentication", err)
	}

	if !bytes.Equal(response.RawID, cred.ID) {
		return 0, wrap("verify authentication", ErrCredentialNotFound)
	}

	key, err := webauthncose.ParsePublicKey(cred.PublicKey)
	if err != nil {
		return 0, wrap("verify authentication", ErrSignatureInvalid)
	}

	clientDataHash := sha256.Sum256(response.Raw.AssertionResponse.ClientDataJSON)
	signed := append([]byte{}, response.Raw.AssertionResponse.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)

	valid, err := webauthncose.VerifySignature(key, signed, response.Response.Signature)
	if err != nil || !valid {
		return 0, wrap("verify authentication", ErrSignatureInvalid)
	}

	newCount := authData.Counter
	if newCount != 0 || cred.SignCount != 0 {
		if newCount <= cred.SignCount {
			return 0, wrap("verify authentication", ErrClonedAuthenticator)
		}
	}

	return newCount, nil
}

// verifyClientContext checks the collected client data against the issued
// challenge and its allowed origins. The client reports the challenge as
// unpadded base64url text.
func verifyClientContext(clientData *protocol.CollectedClientData, challenge *Challenge) error {
	issued := base64.RawURLEncoding.EncodeToString(challenge.Value)
	if clientData.Challenge != issued {
		return ErrChallengeMismatch
	}

	for _, origin := range challenge.Context.Origins {
		if clientData.Origin == origin {
			return nil
		}
	}
	return ErrOriginMismatch
}

// verifyAuthenticatorContext checks the authenticator data against the
// ceremony context: relying-party binding first, then the presence and
// verification flags the policy demands.
func verifyAuthenticatorContext(authData *protocol.AuthenticatorData, cctx *CeremonyContext) error {
	rpIDHash := sha256.Sum256([]byte(cctx.RPID))
	if !bytes.Equal(authData.RPIDHash, rpIDHash[:]) {
		return ErrRelyingPartyMismatch
	}

	if !authData.Flags.UserPresent() {
		return ErrUserVerificationRequired
	}
	if cctx.UserVerification == protocol.VerificationRequired && !authData.Flags.UserVerified() {
		return ErrUserVerificationRequired
	}

	return nil
}
