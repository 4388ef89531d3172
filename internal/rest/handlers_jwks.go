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

package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-jose/go-jose/v4"
)

// handleJWKS publishes the session token verification key so downstream
// services can validate minted tokens without sharing the signing key.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	keySet := jose.JSONWebKeySet{}
	if s.issuer != nil {
		keySet.Keys = append(keySet.Keys, jose.JSONWebKey{
			Key:       s.issuer.PublicKey(),
			KeyID:     s.issuer.KeyID(),
			Algorithm: s.issuer.Algorithm(),
			Use:       "sig",
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(keySet)
}
