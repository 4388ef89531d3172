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

// Package passkey implements the relying-party side of WebAuthn passkey
// ceremonies: registration of authenticator credentials and subsequent
// possession proofs, without a shared secret ever crossing the wire.
//
// The package is organized around four collaborators:
//
//   - ChallengeStore holds one-time, per-identity random challenges with
//     expiry. A challenge is single-use: consuming it removes it, so a
//     replayed assertion always fails.
//   - CredentialRegistry durably associates an identity with its registered
//     credentials (id, COSE public key, signature counter, transports).
//   - Verifier validates client responses against the issued challenge and
//     ceremony context (origin, relying-party id, user-verification policy)
//     and performs signature and counter checks.
//   - SessionIssuer mints a bearer token for a verified identity.
//
// Service orchestrates the two ceremonies. Each ceremony is bounded by a
// single challenge: Start issues it and returns the client options, Finish
// consumes it, verifies the response, and on success returns a session
// token. Every failure is terminal for the attempt and leaves no partial
// state; callers retry from Start.
//
// Basic usage:
//
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config:     &passkey.Config{RPID: "example.com", RPDisplayName: "Example", RPOrigins: []string{"https://example.com"}},
//	    Identities: passkey.NewMemoryIdentityStore(),
//	    Challenges: passkey.NewMemoryChallengeStore(),
//	    Registry:   passkey.NewMemoryCredentialRegistry(),
//	})
//
// The in-memory stores are suitable for single-instance deployments and
// tests. Multi-instance deployments must back ChallengeStore with a shared
// store that preserves the atomic consume guarantee.
package passkey
