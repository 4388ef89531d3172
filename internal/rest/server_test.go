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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/correlation"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Passkey.RPID = "example.com"
	cfg.Passkey.RPDisplayName = "Example Corp"
	cfg.Passkey.RPOrigins = []string{"https://example.com"}
	cfg.Server.AllowedOrigins = cfg.Passkey.RPOrigins
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	signingKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuer, err := passkey.NewJWTIssuer(&passkey.JWTIssuerConfig{
		PrivateKey: signingKey,
		KeyID:      "test-key",
	})
	require.NoError(t, err)

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:     &cfg.Passkey,
		Identities: passkey.NewMemoryIdentityStore(),
		Challenges: passkey.NewMemoryChallengeStore(),
		Registry:   passkey.NewMemoryCredentialRegistry(),
		Sessions:   issuer,
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerParams{
		Config:  cfg,
		Service: svc,
		Issuer:  issuer,
	})
	require.NoError(t, err)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestJWKSEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var keySet jose.JSONWebKeySet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keySet))
	require.Len(t, keySet.Keys, 1)
	assert.Equal(t, "test-key", keySet.Keys[0].KeyID)
	assert.Equal(t, "ES256", keySet.Keys[0].Algorithm)
	assert.Equal(t, "sig", keySet.Keys[0].Use)
}

func TestPasskeyRoutesMounted(t *testing.T) {
	srv := newTestServer(t, testConfig())

	// Empty body is a 400 from the handler, proving the route is wired.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/passkey/registration/begin", nil)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"email":"mounted@example.com","display_name":"Mounted"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/passkey/registration/begin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationHeaderEchoed(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(correlation.CorrelationIDHeader, "trace-me")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-me", rec.Header().Get(correlation.CorrelationIDHeader))

	// Without the header a new ID is generated.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(correlation.CorrelationIDHeader))
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Unlisted origins get no CORS grant.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightRequest(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/passkey/registration/begin", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))
}

func TestRateLimitApplied(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMinute = 60
	cfg.RateLimit.Burst = 2
	srv := newTestServer(t, cfg)

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.1.2.3:1000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "passkey_")
}

func TestNewServer_MissingParams(t *testing.T) {
	_, err := NewServer(ServerParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewServer(ServerParams{Config: testConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service is required")
}
