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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTIssuer mints JWT session tokens for verified identities. It implements
// SessionIssuer. The signing method follows the key type: ECDSA P-256 signs
// ES256, Ed25519 signs EdDSA, RSA signs RS256.
type JWTIssuer struct {
	// privateKey signs tokens.
	privateKey crypto.PrivateKey
	// publicKey verifies tokens.
	publicKey crypto.PublicKey
	// method is the signing method matching the key type.
	method jwt.SigningMethod
	// issuer is the iss claim.
	issuer string
	// audience is the aud claim.
	audience []string
	// expiresIn is the token lifetime.
	expiresIn time.Duration
	// keyID populates the kid header when set.
	keyID string
}

// JWTIssuerConfig configures a JWTIssuer.
type JWTIssuerConfig struct {
	// PrivateKey signs tokens (required). ECDSA P-256, Ed25519 and RSA
	// keys are supported.
	PrivateKey crypto.PrivateKey
	// Issuer is the iss claim (default: "go-passkey").
	Issuer string
	// Audience is the aud claim (default: ["go-passkey"]).
	Audience []string
	// ExpiresIn is the token lifetime (default: 1 hour).
	ExpiresIn time.Duration
	// KeyID populates the kid header (optional).
	KeyID string
}

// NewJWTIssuer creates a JWT session issuer for the given signing key.
func NewJWTIssuer(config *JWTIssuerConfig) (*JWTIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	var method jwt.SigningMethod
	var publicKey crypto.PublicKey
	switch key := config.PrivateKey.(type) {
	case *ecdsa.PrivateKey:
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("unsupported ECDSA curve: %s", key.Curve.Params().Name)
		}
		method = jwt.SigningMethodES256
		publicKey = key.Public()
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
		publicKey = key.Public()
	case *rsa.PrivateKey:
		method = jwt.SigningMethodRS256
		publicKey = key.Public()
	default:
		return nil, fmt.Errorf("unsupported signing key type: %T", config.PrivateKey)
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	return &JWTIssuer{
		privateKey: config.PrivateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		expiresIn:  expiresIn,
		keyID:      config.KeyID,
	}, nil
}

// Issue creates a signed session token for the identity. The subject claim
// is the base64url identity id, matching the user handle the client sees.
func (g *JWTIssuer) Issue(ctx context.Context, identity *Identity) (string, error) {
	if identity == nil || len(identity.ID) == 0 {
		return "", fmt.Errorf("identity is required")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   g.issuer,
		"aud":   g.audience,
		"sub":   base64.RawURLEncoding.EncodeToString(identity.ID),
		"iat":   now.Unix(),
		"exp":   now.Add(g.expiresIn).Unix(),
		"nbf":   now.Unix(),
		"email": identity.Email,
		"name":  identity.Label(),
	}

	token := jwt.NewWithClaims(g.method, claims)
	if g.keyID != "" {
		token.Header["kid"] = g.keyID
	}

	return token.SignedString(g.privateKey)
}

// Verify parses and validates a session token and returns its claims.
func (g *JWTIssuer) Verify(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != g.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return g.publicKey, nil
		},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience[0]),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// PublicKey returns the verification key, for JWKS publication.
func (g *JWTIssuer) PublicKey() crypto.PublicKey {
	return g.publicKey
}

// KeyID returns the configured key identifier.
func (g *JWTIssuer) KeyID() string {
	return g.keyID
}

// Algorithm returns the JWS algorithm name used for signing.
func (g *JWTIssuer) Algorithm() string {
	return g.method.Alg()
}
