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
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestMountChi(t *testing.T) {
	h := newTestHandler(t)
	r := chi.NewRouter()
	MountChi(r, h)

	// Routed POST reaches the handler (bad body, but not a 404/405).
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/registration/begin", bytes.NewBufferString("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong method is rejected by the router.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration/begin", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMountStdlib(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	MountStdlib(mux, "/api/v1/passkey", h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/passkey/registration/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()
	assert.Len(t, routes, 6)
	for _, route := range routes {
		assert.NotEmpty(t, route.Method)
		assert.NotEmpty(t, route.Path)
		assert.NotNil(t, route.Handler)
	}
}
