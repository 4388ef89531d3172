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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"gopkg.in/yaml.v3"
)

// Config configures the ceremony engine.
type Config struct {
	// RPID is the relying-party identifier, typically the domain name.
	// Example: "example.com"
	RPID string `yaml:"id" json:"id"`

	// RPDisplayName is the human-readable name of the relying party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	// RPOrigins are the allowed origins for ceremony responses.
	// Example: []string{"https://example.com"}
	RPOrigins []string `yaml:"origins" json:"origins"`

	// ChallengeTTL is how long an issued challenge stays live.
	// Default: 60 seconds, a typical user-interaction window.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// Timeout is the ceremony timeout surfaced to the client, in the
	// returned options. The challenge store is the expiry authority;
	// this value is advisory. Default: ChallengeTTL.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// UserVerification is the user verification policy.
	// Options: "required", "preferred", "discouraged". Default: "preferred".
	UserVerification string `yaml:"user_verification" json:"user_verification"`

	// AttestationPreference is the attestation conveyance preference.
	// Options: "none", "indirect", "direct", "enterprise". Default: "none".
	AttestationPreference string `yaml:"attestation" json:"attestation"`

	// ResidentKeyRequirement controls resident key (discoverable
	// credential) creation. Options: "required", "preferred",
	// "discouraged". Default: "preferred".
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key"`

	// AuthenticatorAttachment limits the allowed authenticator types.
	// Options: "platform", "cross-platform", "" (any). Default: any.
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment"`

	// SingleCredentialPerIdentity, when true, rejects registration for an
	// identity that already has a credential.
	SingleCredentialPerIdentity bool `yaml:"single_credential" json:"single_credential"`

	// ChallengeSize is the challenge length in bytes. Minimum 16,
	// default 32.
	ChallengeSize int `yaml:"challenge_size" json:"challenge_size"`
}

// UnmarshalYAML decodes the configuration, accepting Go duration strings
// ("60s", "5m") for the TTL and timeout fields. Fields absent from the
// document keep their current values.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig struct {
		RPID                        string   `yaml:"id"`
		RPDisplayName               string   `yaml:"display_name"`
		RPOrigins                   []string `yaml:"origins"`
		ChallengeTTL                string   `yaml:"challenge_ttl"`
		Timeout                     string   `yaml:"timeout"`
		UserVerification            string   `yaml:"user_verification"`
		AttestationPreference       string   `yaml:"attestation"`
		ResidentKeyRequirement      string   `yaml:"resident_key"`
		AuthenticatorAttachment     string   `yaml:"authenticator_attachment"`
		SingleCredentialPerIdentity bool     `yaml:"single_credential"`
		ChallengeSize               int      `yaml:"challenge_size"`
	}
	raw := rawConfig{
		RPID:                        c.RPID,
		RPDisplayName:               c.RPDisplayName,
		RPOrigins:                   c.RPOrigins,
		UserVerification:            c.UserVerification,
		AttestationPreference:       c.AttestationPreference,
		ResidentKeyRequirement:      c.ResidentKeyRequirement,
		AuthenticatorAttachment:     c.AuthenticatorAttachment,
		SingleCredentialPerIdentity: c.SingleCredentialPerIdentity,
		ChallengeSize:               c.ChallengeSize,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.RPID = raw.RPID
	c.RPDisplayName = raw.RPDisplayName
	c.RPOrigins = raw.RPOrigins
	c.UserVerification = raw.UserVerification
	c.AttestationPreference = raw.AttestationPreference
	c.ResidentKeyRequirement = raw.ResidentKeyRequirement
	c.AuthenticatorAttachment = raw.AuthenticatorAttachment
	c.SingleCredentialPerIdentity = raw.SingleCredentialPerIdentity
	c.ChallengeSize = raw.ChallengeSize

	if raw.ChallengeTTL != "" {
		d, err := time.ParseDuration(raw.ChallengeTTL)
		if err != nil {
			return fmt.Errorf("invalid challenge_ttl: %w", err)
		}
		c.ChallengeTTL = d
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	if c.ChallengeSize != 0 && c.ChallengeSize < 16 {
		return fmt.Errorf("challenge size must be at least 16 bytes")
	}

	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	switch c.ResidentKeyRequirement {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}

	switch c.AuthenticatorAttachment {
	case "", "platform", "cross-platform":
	default:
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}

	return nil
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 60 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = c.ChallengeTTL
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
	if c.ChallengeSize == 0 {
		c.ChallengeSize = 32
	}
}

// userVerification returns the configured policy as a protocol value.
func (c *Config) userVerification() protocol.UserVerificationRequirement {
	switch c.UserVerification {
	case "required":
		return protocol.VerificationRequired
	case "discouraged":
		return protocol.VerificationDiscouraged
	default:
		return protocol.VerificationPreferred
	}
}

// residentKey returns the configured requirement as a protocol value.
func (c *Config) residentKey() protocol.ResidentKeyRequirement {
	switch c.ResidentKeyRequirement {
	case "required":
		return protocol.ResidentKeyRequirementRequired
	case "discouraged":
		return protocol.ResidentKeyRequirementDiscouraged
	default:
		return protocol.ResidentKeyRequirementPreferred
	}
}

// attestation returns the configured preference as a protocol value.
func (c *Config) attestation() protocol.ConveyancePreference {
	switch c.AttestationPreference {
	case "indirect":
		return protocol.PreferIndirectAttestation
	case "direct":
		return protocol.PreferDirectAttestation
	case "enterprise":
		return protocol.PreferEnterpriseAttestation
	default:
		return protocol.PreferNoAttestation
	}
}

// authenticatorSelection builds the selection criteria for registration
// options from the configured policy.
func (c *Config) authenticatorSelection() protocol.AuthenticatorSelection {
	sel := protocol.AuthenticatorSelection{
		ResidentKey:      c.residentKey(),
		UserVerification: c.userVerification(),
	}
	if sel.ResidentKey == protocol.ResidentKeyRequirementRequired {
		sel.RequireResidentKey = protocol.ResidentKeyRequired()
	} else {
		sel.RequireResidentKey = protocol.ResidentKeyNotRequired()
	}
	switch c.AuthenticatorAttachment {
	case "platform":
		sel.AuthenticatorAttachment = protocol.Platform
	case "cross-platform":
		sel.AuthenticatorAttachment = protocol.CrossPlatform
	}
	return sel
}

// ceremonyContext derives the verification context fixed at ceremony start.
func (c *Config) ceremonyContext(kind CeremonyKind) CeremonyContext {
	origins := make([]string, len(c.RPOrigins))
	copy(origins, c.RPOrigins)
	return CeremonyContext{
		RPID:             c.RPID,
		Origins:          origins,
		Kind:             kind,
		UserVerification: c.userVerification(),
	}
}
