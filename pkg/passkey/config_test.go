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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing rpid", func(c *Config) { c.RPID = "" }, "RPID is required"},
		{"missing display name", func(c *Config) { c.RPDisplayName = "" }, "RPDisplayName is required"},
		{"missing origins", func(c *Config) { c.RPOrigins = nil }, "RPOrigin"},
		{"challenge size too small", func(c *Config) { c.ChallengeSize = 8 }, "at least 16"},
		{"bad user verification", func(c *Config) { c.UserVerification = "always" }, "invalid user verification"},
		{"bad attestation", func(c *Config) { c.AttestationPreference = "full" }, "invalid attestation"},
		{"bad resident key", func(c *Config) { c.ResidentKeyRequirement = "yes" }, "invalid resident key"},
		{"bad attachment", func(c *Config) { c.AuthenticatorAttachment = "usb" }, "invalid authenticator attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := validTestConfig()
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, cfg.ChallengeTTL, cfg.Timeout)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "none", cfg.AttestationPreference)
	assert.Equal(t, "preferred", cfg.ResidentKeyRequirement)
	assert.Equal(t, 32, cfg.ChallengeSize)

	// Explicit values survive.
	cfg = validTestConfig()
	cfg.ChallengeTTL = 30 * time.Second
	cfg.UserVerification = "required"
	cfg.SetDefaults()
	assert.Equal(t, 30*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, "required", cfg.UserVerification)
}

func TestConfig_ProtocolMappings(t *testing.T) {
	cfg := validTestConfig()
	cfg.SetDefaults()

	assert.Equal(t, protocol.VerificationPreferred, cfg.userVerification())
	assert.Equal(t, protocol.PreferNoAttestation, cfg.attestation())
	assert.Equal(t, protocol.ResidentKeyRequirementPreferred, cfg.residentKey())

	cfg.UserVerification = "required"
	cfg.AttestationPreference = "direct"
	cfg.ResidentKeyRequirement = "required"
	cfg.AuthenticatorAttachment = "platform"

	assert.Equal(t, protocol.VerificationRequired, cfg.userVerification())
	assert.Equal(t, protocol.PreferDirectAttestation, cfg.attestation())

	sel := cfg.authenticatorSelection()
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, sel.ResidentKey)
	require.NotNil(t, sel.RequireResidentKey)
	assert.True(t, *sel.RequireResidentKey)
	assert.Equal(t, protocol.Platform, sel.AuthenticatorAttachment)
}

func TestConfig_CeremonyContext(t *testing.T) {
	cfg := validTestConfig()
	cfg.SetDefaults()

	cctx := cfg.ceremonyContext(CeremonyAuthentication)
	assert.Equal(t, cfg.RPID, cctx.RPID)
	assert.Equal(t, cfg.RPOrigins, cctx.Origins)
	assert.Equal(t, CeremonyAuthentication, cctx.Kind)

	// The context holds a copy of the origins, not the shared slice.
	cctx.Origins[0] = "https://mutated.example"
	assert.Equal(t, testOrigin, cfg.RPOrigins[0])
}
