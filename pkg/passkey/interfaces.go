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
	"context"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// IdentityStore is the narrow interface to the external identity provider.
// The core reads and creates identities; it never mutates or deletes them.
type IdentityStore interface {
	// GetByID retrieves an identity by its stable identifier.
	// Returns ErrInvalidIdentity if the identity does not exist.
	GetByID(ctx context.Context, id []byte) (*Identity, error)

	// GetByEmail retrieves an identity by its email address.
	// Returns ErrInvalidIdentity if the identity does not exist.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// Create provisions a new identity for the given email and display
	// name and returns it with its assigned ID.
	Create(ctx context.Context, email, displayName string) (*Identity, error)
}

// ChallengeStore holds ephemeral per-identity challenges. Implementations
// must make Issue and Consume atomic with respect to concurrent calls for
// the same (identity, kind) key; the atomic fetch-and-delete in Consume is
// the anti-replay mechanism.
type ChallengeStore interface {
	// Issue generates a fresh random challenge for (identity, kind),
	// overwriting any prior live challenge for the same pair, and records
	// expiry as now + ttl.
	Issue(ctx context.Context, identityID []byte, kind CeremonyKind, cctx CeremonyContext, ttl time.Duration) (*Challenge, error)

	// Consume atomically fetches and deletes the stored challenge for
	// (identity, kind). Returns ErrChallengeNotFound if absent or expired.
	Consume(ctx context.Context, identityID []byte, kind CeremonyKind) (*Challenge, error)
}

// CredentialRegistry is the durable association of identities to their
// registered credentials. Put and UpdateCounter must be atomic per
// credential id; counter updates are conditioned on the stored value,
// never a blind overwrite.
type CredentialRegistry interface {
	// Put stores a new credential. Returns ErrDuplicateCredential if the
	// credential id already exists, regardless of owner or key material.
	Put(ctx context.Context, cred *Credential) error

	// GetByIdentity retrieves all credentials registered to an identity.
	// An empty slice is not an error; it means no passkeys are registered.
	GetByIdentity(ctx context.Context, identityID []byte) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its id, independent of
	// which identity the client claims.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// UpdateCounter advances the stored signature counter. Returns
	// ErrCounterRegression when newCounter would not advance the stored
	// value; the (0, 0) case is a successful no-op for authenticators
	// that do not count.
	UpdateCounter(ctx context.Context, credID []byte, newCounter uint32) error
}

// Verifier validates client ceremony responses. Pure: it holds no state and
// depends only on its inputs.
type Verifier interface {
	// VerifyRegistration checks a credential creation response against the
	// issued challenge and its ceremony context, and extracts the new
	// credential. Any failure is one of the taxonomy sentinels.
	VerifyRegistration(challenge *Challenge, response *protocol.ParsedCredentialCreationData) (*RegistrationResult, error)

	// VerifyAuthentication checks an assertion response against the issued
	// challenge, its ceremony context, and the stored credential. On
	// success it returns the authenticator-reported counter value.
	// A counter that fails to advance yields ErrClonedAuthenticator even
	// when the signature verified.
	VerifyAuthentication(challenge *Challenge, cred *Credential, response *protocol.ParsedCredentialAssertionData) (uint32, error)
}

// SessionIssuer mints a bearer credential for a verified identity. How the
// token is verified elsewhere is outside this package.
type SessionIssuer interface {
	// Issue returns a signed bearer token bound to the identity.
	Issue(ctx context.Context, identity *Identity) (string, error)
}
