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

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for the passkey ceremonies. The handlers
// can be mounted on any router.
type Handler struct {
	service *passkey.Service
	logger  *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *passkey.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "email": "user@example.com",
//	    "display_name": "User Name" // optional
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
// Header: X-User-Id (identity id for FinishRegistration)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "email is required")
		return
	}

	start := time.Now()
	options, identity, err := h.service.StartRegistration(r.Context(), req.Email, req.DisplayName)
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseBegin, err == nil, time.Since(start))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderUserID, base64.RawURLEncoding.EncodeToString(identity.ID))
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-User-Id (from BeginRegistration)
// Request body: attestation response from the authenticator
// Response: RegistrationResponse with the new credential id
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	identityID, ok := h.identityFromHeader(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	start := time.Now()
	cred, token, err := h.service.FinishRegistration(r.Context(), identityID, response)
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.PhaseFinish, err == nil, time.Since(start))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	metrics.CredentialsTotal.Inc()
	if token != "" {
		metrics.RecordSessionIssued()
	}

	h.writeJSON(w, http.StatusOK, RegistrationResponse{
		UserID:       base64.RawURLEncoding.EncodeToString(identityID),
		CredentialID: base64.RawURLEncoding.EncodeToString(cred.ID),
		Token:        token,
	})
}

// RegistrationStatus handles GET /registration/status
//
// Header or query param: user_id; query param email as an alternative.
// Response: {"registered": true|false}
//
// Unknown accounts report not-registered rather than an error, so the
// endpoint can drive a register-or-login UI decision.
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.Header.Get(HeaderUserID)
	if userIDStr == "" {
		userIDStr = r.URL.Query().Get("user_id")
	}

	var identityID []byte
	switch {
	case userIDStr != "":
		var err error
		identityID, err = base64.RawURLEncoding.DecodeString(userIDStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
			return
		}
	case r.URL.Query().Get("email") != "":
		identity, err := h.service.Identity(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: false})
			return
		}
		identityID = identity.ID
	default:
		h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: false})
		return
	}

	registered, err := h.service.Registered(r.Context(), identityID)
	if err != nil {
		if errors.Is(err, passkey.ErrInvalidIdentity) {
			h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: false})
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: registered})
}

// BeginLogin handles POST /login/begin
//
// Request body:
//
//	{
//	    "user_id": "base64url-user-id", // or
//	    "email": "user@example.com"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions
// Header: X-User-Id (identity id for FinishLogin)
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	var identityID []byte
	switch {
	case req.UserID != "":
		var err error
		identityID, err = base64.RawURLEncoding.DecodeString(req.UserID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
			return
		}
	case req.Email != "":
		identity, err := h.service.Identity(r.Context(), req.Email)
		if err != nil {
			h.handleServiceError(w, err)
			return
		}
		identityID = identity.ID
	default:
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user_id or email is required")
		return
	}

	start := time.Now()
	options, err := h.service.StartAuthentication(r.Context(), identityID)
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseBegin, err == nil, time.Since(start))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderUserID, base64.RawURLEncoding.EncodeToString(identityID))
	h.writeJSON(w, http.StatusOK, options)
}

// FinishLogin handles POST /login/finish
//
// Header: X-User-Id (from BeginLogin)
// Request body: assertion response from the authenticator
// Response: AuthResponse with the session token
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	identityID, ok := h.identityFromHeader(w, r)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	start := time.Now()
	token, err := h.service.FinishAuthentication(r.Context(), identityID, response)
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseFinish, err == nil, time.Since(start))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if token != "" {
		metrics.RecordSessionIssued()
	}

	h.writeJSON(w, http.StatusOK, AuthResponse{
		Token:  token,
		UserID: base64.RawURLEncoding.EncodeToString(identityID),
	})
}

// ListCredentials handles GET /credentials
//
// Header: X-User-Id
// Response: array of CredentialSummary
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	identityID, ok := h.identityFromHeader(w, r)
	if !ok {
		return
	}

	creds, err := h.service.Credentials(r.Context(), identityID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	summaries := make([]CredentialSummary, len(creds))
	for i, cred := range creds {
		summaries[i] = CredentialSummary{
			CredentialID:    base64.RawURLEncoding.EncodeToString(cred.ID),
			AttestationType: cred.AttestationType,
			BackupEligible:  cred.Flags.BackupEligible,
			CreatedAt:       cred.CreatedAt.Format(time.RFC3339),
		}
		if !cred.LastUsedAt.IsZero() {
			summaries[i].LastUsedAt = cred.LastUsedAt.Format(time.RFC3339)
		}
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// identityFromHeader decodes the required X-User-Id header. On failure it
// writes the error response and returns false.
func (h *Handler) identityFromHeader(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	userIDStr := r.Header.Get(HeaderUserID)
	if userIDStr == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "user ID header is required")
		return nil, false
	}

	identityID, err := base64.RawURLEncoding.DecodeString(userIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid user ID encoding")
		return nil, false
	}
	return identityID, true
}

// handleServiceError maps ceremony errors to HTTP responses. Every
// security-significant kind collapses into one generic 401 so the response
// cannot reveal which verification check failed or whether a credential
// exists under another account.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsSecuritySignificant(err):
		metrics.RecordSecurityEvent(passkey.Op(err), passkey.Kind(err))
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, passkey.ErrInvalidIdentity):
		h.writeError(w, http.StatusNotFound, ErrorCodeIdentityNotFound, "identity not found")
	case errors.Is(err, passkey.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "no registered credentials")
	case errors.Is(err, passkey.ErrDuplicateCredential):
		h.writeError(w, http.StatusConflict, ErrorCodeDuplicateCredential, "credential already registered")
	case errors.Is(err, passkey.ErrChallengeNotFound):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeExpired, "challenge expired or missing")
	case errors.Is(err, passkey.ErrMalformedAssertion):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid authenticator response")
	default:
		h.logger.Error("unhandled service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
