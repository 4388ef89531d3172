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
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/correlation"
)

// CorrelationMiddleware extracts or generates a correlation ID for each
// request, stores it in the request context, and echoes it in the
// response so clients can carry it into the finish half of a ceremony.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(correlation.CorrelationIDHeader)
		if correlationID == "" {
			correlationID = r.Header.Get(correlation.RequestIDHeader)
		}
		if correlationID == "" {
			correlationID = correlation.NewID()
		}

		ctx := correlation.WithCorrelationID(r.Context(), correlationID)
		w.Header().Set(correlation.CorrelationIDHeader, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
