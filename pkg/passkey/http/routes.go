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
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the passkey routes on a chi router.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc)
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/begin", h.BeginRegistration)
	r.Post("/registration/finish", h.FinishRegistration)
	r.Get("/registration/status", h.RegistrationStatus)
	r.Post("/login/begin", h.BeginLogin)
	r.Post("/login/finish", h.FinishLogin)
	r.Get("/credentials", h.ListCredentials)
}

// MountStdlib mounts the passkey routes on a stdlib mux using Go 1.22+
// method patterns. The prefix must not end with a slash.
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc("POST "+prefix+"/registration/begin", h.BeginRegistration)
	mux.HandleFunc("POST "+prefix+"/registration/finish", h.FinishRegistration)
	mux.HandleFunc("GET "+prefix+"/registration/status", h.RegistrationStatus)
	mux.HandleFunc("POST "+prefix+"/login/begin", h.BeginLogin)
	mux.HandleFunc("POST "+prefix+"/login/finish", h.FinishLogin)
	mux.HandleFunc("GET "+prefix+"/credentials", h.ListCredentials)
}

// RouteEntry is a single route with its method, path and handler, for
// frameworks without a direct mount helper.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the route table for manual mounting.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodPost, Path: "/registration/begin", Handler: h.BeginRegistration},
		{Method: http.MethodPost, Path: "/registration/finish", Handler: h.FinishRegistration},
		{Method: http.MethodGet, Path: "/registration/status", Handler: h.RegistrationStatus},
		{Method: http.MethodPost, Path: "/login/begin", Handler: h.BeginLogin},
		{Method: http.MethodPost, Path: "/login/finish", Handler: h.FinishLogin},
		{Method: http.MethodGet, Path: "/credentials", Handler: h.ListCredentials},
	}
}
