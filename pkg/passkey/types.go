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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// CeremonyKind discriminates the two WebAuthn ceremonies. Registration and
// authentication share the challenge and context-binding machinery; the kind
// tag keeps their challenges from being interchangeable.
type CeremonyKind string

const (
	// CeremonyRegistration is the credential creation ceremony.
	CeremonyRegistration CeremonyKind = "registration"

	// CeremonyAuthentication is the assertion ceremony.
	CeremonyAuthentication CeremonyKind = "authentication"
)

// Identity is an externally-provisioned account the relying party knows.
// The core never mutates an identity; it only binds credentials to its ID.
type Identity struct {
	// ID is the stable, externally-assigned identifier (the WebAuthn user
	// handle). Treated as an opaque byte string.
	ID []byte `json:"id"`

	// Email is the account's login name.
	Email string `json:"email"`

	// DisplayName is the human-readable label shown by authenticators.
	DisplayName string `json:"display_name"`
}

// Label returns the name authenticator UIs should display.
func (i *Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// CeremonyContext captures the verification context fixed at ceremony start.
// It must be identical between start and finish for a given challenge;
// any mismatch is a hard failure.
type CeremonyContext struct {
	// RPID is the expected relying-party identifier (a domain-like string).
	RPID string `json:"rp_id"`

	// Origins are the allowed web origins for the client response.
	Origins []string `json:"origins"`

	// Kind is the ceremony this context belongs to.
	Kind CeremonyKind `json:"kind"`

	// UserVerification is the policy the authenticator flags must satisfy.
	UserVerification protocol.UserVerificationRequirement `json:"user_verification"`
}

// Challenge is a single-use random value binding one ceremony attempt.
// At most one challenge is live per (identity, kind) pair; issuing a new one
// invalidates the previous.
type Challenge struct {
	// Value is the random challenge bytes (32 by default).
	Value []byte `json:"value"`

	// IdentityID is the identity the challenge was issued for.
	IdentityID []byte `json:"identity_id"`

	// Kind is the ceremony the challenge was issued for.
	Kind CeremonyKind `json:"kind"`

	// Context is the verification context fixed at issue time.
	Context CeremonyContext `json:"context"`

	// ExpiresAt is the absolute expiry; the store treats expired entries
	// as absent regardless of client-side timers.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CredentialFlags records the authenticator flags observed at registration.
type CredentialFlags struct {
	// UserPresent indicates the user was present during registration.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be synced/backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// Credential is one registered authenticator: the public half of the key
// pair the authenticator holds, plus the bookkeeping the relying party
// needs to verify assertions against it.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	// Globally unique; compared by exact byte equality.
	ID []byte `json:"id"`

	// IdentityID is the owning identity. A credential id maps to exactly
	// one identity and one public key for its lifetime.
	IdentityID []byte `json:"identity_id"`

	// PublicKey is the credential public key in COSE form. Opaque to the
	// orchestrator; only the Verifier interprets it.
	PublicKey []byte `json:"public_key"`

	// AttestationType is the attestation format conveyed at registration.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports the authenticator reported.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags are the authenticator flags observed at registration.
	Flags CredentialFlags `json:"flags"`

	// AAGUID identifies the authenticator model.
	AAGUID []byte `json:"aaguid,omitempty"`

	// SignCount is the monotonically non-decreasing signature counter.
	// Zero means the authenticator does not count.
	SignCount uint32 `json:"sign_count"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// Descriptor converts the credential to the wire descriptor used in
// allow/exclude lists.
func (c *Credential) Descriptor() protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: c.ID,
		Transport:    c.Transport,
	}
}

// RegistrationResult is the verified outcome of a registration ceremony,
// produced by the Verifier and persisted by the orchestrator.
type RegistrationResult struct {
	// CredentialID is the new credential's identifier.
	CredentialID []byte

	// PublicKey is the extracted COSE public key.
	PublicKey []byte

	// SignCount is the authenticator-reported initial counter value.
	SignCount uint32

	// AttestationType is the attestation format used.
	AttestationType string

	// Transport lists the transports the client reported.
	Transport []protocol.AuthenticatorTransport

	// Flags are the authenticator flags at registration time.
	Flags CredentialFlags

	// AAGUID identifies the authenticator model.
	AAGUID []byte
}
