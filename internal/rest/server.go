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

// Package rest assembles the HTTP server: routing, middleware, health and
// JWKS endpoints around the passkey ceremony handlers.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the passkey HTTP server
type Server struct {
	config  *config.Config
	service *passkey.Service
	issuer  *passkey.JWTIssuer
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	http    *http.Server
}

// ServerParams holds the dependencies for building a Server
type ServerParams struct {
	Config  *config.Config
	Service *passkey.Service
	// Issuer is optional. When set, its public key is published at the
	// JWKS endpoint.
	Issuer *passkey.JWTIssuer
	Logger *slog.Logger
}

// NewServer builds the HTTP server with its full middleware chain
func NewServer(params ServerParams) (*Server, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  params.Config,
		service: params.Service,
		issuer:  params.Issuer,
		limiter: ratelimit.NewLimiter(&params.Config.RateLimit),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(CorrelationMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(SecurityHeadersMiddleware(params.Config.Server.AllowedOrigins))
	r.Use(ratelimit.Middleware(s.limiter))

	r.Get("/health", s.handleHealth)
	r.Get("/.well-known/jwks.json", s.handleJWKS)
	if params.Config.Metrics.Enabled {
		r.Handle(params.Config.Metrics.Path, promhttp.Handler())
	}

	handler := passkeyhttp.NewHandler(params.Service).WithLogger(logger)
	r.Route("/api/v1/passkey", func(r chi.Router) {
		passkeyhttp.MountChi(r, handler)
	})

	addr := net.JoinHostPort(params.Config.Server.Host, fmt.Sprintf("%d", params.Config.Server.Port))
	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  params.Config.Server.ReadTimeout,
		WriteTimeout: params.Config.Server.WriteTimeout,
	}

	return s, nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler returns the assembled HTTP handler, for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start begins serving. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	s.limiter.Stop()

	timeout := s.config.Server.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
