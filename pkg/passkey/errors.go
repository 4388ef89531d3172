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
	"errors"
	"fmt"
)

// The error taxonomy is a closed set. Every ceremony failure maps to exactly
// one of these sentinels; callers distinguish them with errors.Is. All kinds
// are terminal for the ceremony attempt.
var (
	// ErrInvalidIdentity is returned when the identity reference is
	// missing, malformed, or unknown.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrNoCredentials is returned when authentication is started for an
	// identity with no registered credentials. No challenge is issued.
	ErrNoCredentials = errors.New("no credentials registered")

	// ErrDuplicateCredential is returned when registering a credential id
	// that already exists, or when policy forbids a second credential.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrChallengeNotFound is returned when the ceremony's challenge is
	// absent, already consumed, or expired.
	ErrChallengeNotFound = errors.New("challenge expired or missing")

	// ErrCredentialNotFound is returned when the asserted credential does
	// not resolve for the requesting identity. Deliberately does not
	// distinguish "unknown id" from "owned by another identity".
	ErrCredentialNotFound = errors.New("credential not found for identity")

	// ErrOriginMismatch is returned when the client-reported origin is not
	// among the expected origins.
	ErrOriginMismatch = errors.New("origin mismatch")

	// ErrRelyingPartyMismatch is returned when the relying-party id hash
	// in the authenticator data does not match the expected RPID.
	ErrRelyingPartyMismatch = errors.New("relying party id mismatch")

	// ErrChallengeMismatch is returned when the client-reported challenge
	// differs from the issued challenge.
	ErrChallengeMismatch = errors.New("challenge mismatch")

	// ErrMalformedAssertion is returned when the client response is
	// structurally invalid or missing required data.
	ErrMalformedAssertion = errors.New("malformed authenticator response")

	// ErrSignatureInvalid is returned when the assertion signature does
	// not verify against the stored public key.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrUserVerificationRequired is returned when the required user
	// presence/verification flags are absent.
	ErrUserVerificationRequired = errors.New("user verification required but absent")

	// ErrClonedAuthenticator is returned when the reported signature
	// counter did not advance past the stored value. The signature may
	// have verified; the ceremony aborts anyway.
	ErrClonedAuthenticator = errors.New("possible cloned authenticator detected")

	// ErrCounterRegression is returned by the registry when a counter
	// update would not advance the stored value.
	ErrCounterRegression = errors.New("signature counter regression")

	// ErrSessionIssuance is returned when the session issuer fails to
	// mint a token for a verified identity.
	ErrSessionIssuance = errors.New("session token issuance failed")
)

// Error wraps a taxonomy sentinel with the operation that raised it.
type Error struct {
	Op  string // operation that failed
	Err error  // underlying error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrap annotates err with the operation name if it is not nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// sentinels lists the full taxonomy for kind resolution.
var sentinels = []error{
	ErrInvalidIdentity,
	ErrNoCredentials,
	ErrDuplicateCredential,
	ErrChallengeNotFound,
	ErrCredentialNotFound,
	ErrOriginMismatch,
	ErrRelyingPartyMismatch,
	ErrChallengeMismatch,
	ErrMalformedAssertion,
	ErrSignatureInvalid,
	ErrUserVerificationRequired,
	ErrClonedAuthenticator,
	ErrCounterRegression,
	ErrSessionIssuance,
}

// Kind returns the taxonomy sentinel message matching err, or "unknown".
// Useful as a bounded label value for logs and metrics.
func Kind(err error) string {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "unknown"
}

// Op returns the operation recorded on err, or an empty string.
func Op(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsSecuritySignificant reports whether the error kind signals a potential
// attack rather than a caller-side mistake. These kinds are reported to the
// audit log and must be surfaced to unauthenticated callers only as a
// generic verification failure.
func IsSecuritySignificant(err error) bool {
	switch {
	case errors.Is(err, ErrOriginMismatch),
		errors.Is(err, ErrRelyingPartyMismatch),
		errors.Is(err, ErrChallengeMismatch),
		errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrUserVerificationRequired),
		errors.Is(err, ErrClonedAuthenticator),
		errors.Is(err, ErrCounterRegression),
		errors.Is(err, ErrCredentialNotFound):
		return true
	}
	return false
}
