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

package passkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity() *Identity {
	return &Identity{
		ID:          []byte("user-1"),
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}
}

func TestJWTIssuer_ES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTIssuer(&JWTIssuerConfig{PrivateKey: key})
	require.NoError(t, err)
	assert.Equal(t, "ES256", issuer.Algorithm())

	token, err := issuer.Issue(context.Background(), testIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte("user-1")), claims["sub"])
	assert.Equal(t, "alice@example.com", claims["email"])
	assert.Equal(t, "Alice", claims["name"])
	assert.Equal(t, "go-passkey", claims["iss"])
}

func TestJWTIssuer_EdDSA(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTIssuer(&JWTIssuerConfig{PrivateKey: key})
	require.NoError(t, err)
	assert.Equal(t, "EdDSA", issuer.Algorithm())

	token, err := issuer.Issue(context.Background(), testIdentity())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.NoError(t, err)
}

func TestJWTIssuer_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer, err := NewJWTIssuer(&JWTIssuerConfig{PrivateKey: key})
	require.NoError(t, err)
	assert.Equal(t, "RS256", issuer.Algorithm())

	token, err := issuer.Issue(context.Background(), testIdentity())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.NoError(t, err)
}

func TestJWTIssuer_InvalidConfig(t *testing.T) {
	_, err := NewJWTIssuer(nil)
	assert.Error(t, err)

	_, err = NewJWTIssuer(&JWTIssuerConfig{})
	assert.Error(t, err)

	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, err = NewJWTIssuer(&JWTIssuerConfig{PrivateKey: p384})
	assert.ErrorContains(t, err, "unsupported ECDSA curve")
}

func TestJWTIssuer_VerifyRejectsForeignToken(t *testing.T) {
	key1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer1, err := NewJWTIssuer(&JWTIssuerConfig{PrivateKey: key1})
	require.NoError(t, err)
	issuer2, err := NewJWTIssuer(&JWTIssuerConfig{PrivateKey: key2})
	require.NoError(t, err)

	token, err := issuer1.Issue(context.Background(), testIdentity())
	require.NoError(t, err)

	_, err = issuer2.Verify(token)
	assert.Error(t, err)
}

func TestJWTIssuer_ExpiredToken(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTIssuer(&JWTIssuerConfig{
		PrivateKey: key,
		ExpiresIn:  -time.Minute,
	})
	require.NoError(t, err)

	token, err := issuer.Issue(context.Background(), testIdentity())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestJWTIssuer_KeyID(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTIssuer(&JWTIssuerConfig{
		PrivateKey: key,
		KeyID:      "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "key-1", issuer.KeyID())

	token, err := issuer.Issue(context.Background(), testIdentity())
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)
}
