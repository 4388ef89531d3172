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

// Package http exposes the passkey ceremony service over HTTP. Handlers are
// framework-agnostic http.HandlerFuncs with a chi mount helper.
//
// The begin endpoints return the WebAuthn options document as the response
// body and identify the ceremony's account in the X-User-Id header, which
// the finish endpoints require back. Verification failures are reported to
// unauthenticated callers as a single generic 401 regardless of which check
// failed; the detail goes to the server log only.
package http
