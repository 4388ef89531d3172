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

package http

// HeaderUserID carries the base64url identity id between begin and finish.
const HeaderUserID = "X-User-Id"

// BeginRegistrationRequest is the request body for starting registration.
type BeginRegistrationRequest struct {
	// Email is the account's email address (required).
	Email string `json:"email"`

	// DisplayName is the human-readable name (optional, defaults to email).
	DisplayName string `json:"display_name,omitempty"`
}

// RegistrationResponse is the response after successful registration.
type RegistrationResponse struct {
	// UserID is the base64url identity id.
	UserID string `json:"user_id"`

	// CredentialID is the base64url id of the new credential.
	CredentialID string `json:"credential_id"`

	// Token is the session token minted for the new identity, empty when
	// no session issuer is configured.
	Token string `json:"token,omitempty"`
}

// BeginLoginRequest is the request body for starting authentication. One of
// UserID or Email identifies the account.
type BeginLoginRequest struct {
	// UserID is the base64url identity id.
	UserID string `json:"user_id,omitempty"`

	// Email is the account's email address, an alternative to UserID.
	Email string `json:"email,omitempty"`
}

// AuthResponse is the response after successful authentication.
type AuthResponse struct {
	// Token is the session token minted for the verified identity.
	Token string `json:"token"`

	// UserID is the base64url identity id.
	UserID string `json:"user_id"`
}

// RegistrationStatusResponse reports whether an account has credentials.
type RegistrationStatusResponse struct {
	Registered bool `json:"registered"`
}

// CredentialSummary describes one registered credential.
type CredentialSummary struct {
	// CredentialID is the base64url credential id.
	CredentialID string `json:"credential_id"`

	// AttestationType is the attestation format conveyed at registration.
	AttestationType string `json:"attestation_type"`

	// BackupEligible indicates the credential can be synced.
	BackupEligible bool `json:"backup_eligible"`

	// CreatedAt is the registration time in RFC 3339 form.
	CreatedAt string `json:"created_at"`

	// LastUsedAt is the last successful authentication in RFC 3339 form,
	// empty if never used.
	LastUsedAt string `json:"last_used_at,omitempty"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the machine-readable error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeIdentityNotFound    = "identity_not_found"
	ErrorCodeNoCredentials       = "no_credentials"
	ErrorCodeDuplicateCredential = "duplicate_credential"
	ErrorCodeChallengeExpired    = "challenge_expired"
	ErrorCodeVerificationFailed  = "verification_failed"
	ErrorCodeInternalError       = "internal_error"
)
