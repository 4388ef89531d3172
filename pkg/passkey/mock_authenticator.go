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
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Authenticator flag bits.
const (
	flagUserPresent    = 0x01
	flagUserVerified   = 0x04
	flagBackupEligible = 0x08
	flagBackupState    = 0x10
	flagAttestedData   = 0x40
)

// MockAuthenticator simulates a WebAuthn authenticator. It holds a P-256 key
// pair and produces creation and assertion responses that pass the protocol
// verifier, which makes it the tool for exercising both the happy paths and
// the tampered-input failure paths without browser machinery.
type MockAuthenticator struct {
	// AAGUID is the authenticator model identifier (16 bytes).
	AAGUID []byte

	// CredentialID is the credential identifier it reports.
	CredentialID []byte

	// SignCount is the signature counter. Zero until the first assertion
	// unless set explicitly.
	SignCount uint32

	// UserPresent controls the UP flag.
	UserPresent bool

	// UserVerified controls the UV flag.
	UserVerified bool

	// BackupEligible controls the BE flag.
	BackupEligible bool

	// BackupState controls the BS flag.
	BackupState bool

	// Counting controls whether the authenticator maintains a signature
	// counter. When false the counter is reported as zero forever, like
	// many platform authenticators.
	Counting bool

	privateKey *ecdsa.PrivateKey
	rpIDHash   []byte
}

// MockAuthenticatorOption configures a MockAuthenticator.
type MockAuthenticatorOption func(*MockAuthenticator)

// WithMockCredentialID sets the credential id the authenticator reports.
func WithMockCredentialID(id []byte) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.CredentialID = id
	}
}

// WithMockSignCount sets the starting signature counter.
func WithMockSignCount(count uint32) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.SignCount = count
	}
}

// WithMockUserPresent controls the UP flag.
func WithMockUserPresent(up bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserPresent = up
	}
}

// WithMockUserVerified controls the UV flag.
func WithMockUserVerified(uv bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.UserVerified = uv
	}
}

// WithMockCounting controls whether the authenticator counts signatures.
func WithMockCounting(counting bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.Counting = counting
	}
}

// WithMockBackupFlags controls the BE/BS flags.
func WithMockBackupFlags(eligible, state bool) MockAuthenticatorOption {
	return func(m *MockAuthenticator) {
		m.BackupEligible = eligible
		m.BackupState = state
	}
}

// NewMockAuthenticator creates a mock authenticator bound to the given RPID.
func NewMockAuthenticator(rpID string, opts ...MockAuthenticatorOption) (*MockAuthenticator, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	aaguid := make([]byte, 16)
	if _, err := rand.Read(aaguid); err != nil {
		return nil, err
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, err
	}

	rpIDHash := sha256.Sum256([]byte(rpID))

	m := &MockAuthenticator{
		AAGUID:       aaguid,
		CredentialID: credID,
		UserPresent:  true,
		UserVerified: true,
		Counting:     true,
		privateKey:   privateKey,
		rpIDHash:     rpIDHash[:],
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// PublicKeyCOSE returns the public key as a COSE EC2 key, the form stored in
// the registry and parsed by the verifier.
func (m *MockAuthenticator) PublicKeyCOSE() ([]byte, error) {
	pubKey := m.privateKey.Public().(*ecdsa.PublicKey)

	coseKey := map[int]interface{}{
		1:  2,                          // kty: EC2
		3:  int(webauthncose.AlgES256), // alg: ES256
		-1: 1,                          // crv: P-256
		-2: pubKey.X.FillBytes(make([]byte, 32)),
		-3: pubKey.Y.FillBytes(make([]byte, 32)),
	}

	return webauthncbor.Marshal(coseKey)
}

// CreateRegistrationResponse produces a parsed credential creation response
// for the given challenge and origin, as a browser would deliver after
// navigator.credentials.create.
func (m *MockAuthenticator) CreateRegistrationResponse(challenge []byte, origin string) (*protocol.ParsedCredentialCreationData, error) {
	rawAuthData, err := m.authenticatorData(true)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.clientDataJSON(challenge, origin, string(protocol.CreateCeremony))

	attObj := map[string]interface{}{
		"authData": rawAuthData,
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
	}
	attObjBytes, err := webauthncbor.Marshal(attObj)
	if err != nil {
		return nil, err
	}

	pubKey, err := m.PublicKeyCOSE()
	if err != nil {
		return nil, err
	}

	credIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialCreationData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      protocol.CreateCeremony,
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AttestationObject: protocol.AttestationObject{
				Format:       "none",
				AttStatement: map[string]interface{}{},
				RawAuthData:  rawAuthData,
				AuthData: protocol.AuthenticatorData{
					RPIDHash: m.rpIDHash,
					Flags:    m.flags(true),
					Counter:  m.SignCount,
					AttData: protocol.AttestedCredentialData{
						AAGUID:              m.AAGUID,
						CredentialID:        m.CredentialID,
						CredentialPublicKey: pubKey,
					},
				},
			},
			Transports: []protocol.AuthenticatorTransport{protocol.Internal},
		},
		Raw: protocol.CredentialCreationResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AttestationResponse: protocol.AuthenticatorAttestationResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AttestationObject: attObjBytes,
				Transports:        []string{"internal"},
			},
		},
	}, nil
}

// CreateAssertionResponse produces a parsed assertion response for the given
// challenge and origin, incrementing the signature counter first the way a
// counting authenticator does.
func (m *MockAuthenticator) CreateAssertionResponse(challenge, userHandle []byte, origin string) (*protocol.ParsedCredentialAssertionData, error) {
	if m.Counting {
		m.SignCount++
	}

	rawAuthData, err := m.authenticatorData(false)
	if err != nil {
		return nil, err
	}

	clientDataJSON := m.clientDataJSON(challenge, origin, string(protocol.AssertCeremony))
	clientDataHash := sha256.Sum256(clientDataJSON)

	signed := append([]byte{}, rawAuthData...)
	signed = append(signed, clientDataHash[:]...)
	signature, err := m.sign(signed)
	if err != nil {
		return nil, err
	}

	credIDBase64 := base64.RawURLEncoding.EncodeToString(m.CredentialID)

	return &protocol.ParsedCredentialAssertionData{
		ParsedPublicKeyCredential: protocol.ParsedPublicKeyCredential{
			ParsedCredential: protocol.ParsedCredential{
				ID:   credIDBase64,
				Type: "public-key",
			},
			RawID:                  m.CredentialID,
			ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
		},
		Response: protocol.ParsedAssertionResponse{
			CollectedClientData: protocol.CollectedClientData{
				Type:      protocol.AssertCeremony,
				Challenge: base64.RawURLEncoding.EncodeToString(challenge),
				Origin:    origin,
			},
			AuthenticatorData: protocol.AuthenticatorData{
				RPIDHash: m.rpIDHash,
				Flags:    m.flags(false),
				Counter:  m.SignCount,
			},
			Signature:  signature,
			UserHandle: userHandle,
		},
		Raw: protocol.CredentialAssertionResponse{
			PublicKeyCredential: protocol.PublicKeyCredential{
				Credential: protocol.Credential{
					ID:   credIDBase64,
					Type: "public-key",
				},
				RawID:                  m.CredentialID,
				ClientExtensionResults: protocol.AuthenticationExtensionsClientOutputs{},
			},
			AssertionResponse: protocol.AuthenticatorAssertionResponse{
				AuthenticatorResponse: protocol.AuthenticatorResponse{
					ClientDataJSON: clientDataJSON,
				},
				AuthenticatorData: rawAuthData,
				Signature:         signature,
				UserHandle:        userHandle,
			},
		},
	}, nil
}

// flags builds the flags byte. Attested credential data is only present on
// registration responses.
func (m *MockAuthenticator) flags(attested bool) protocol.AuthenticatorFlags {
	var f byte
	if m.UserPresent {
		f |= flagUserPresent
	}
	if m.UserVerified {
		f |= flagUserVerified
	}
	if m.BackupEligible {
		f |= flagBackupEligible
	}
	if m.BackupState {
		f |= flagBackupState
	}
	if attested {
		f |= flagAttestedData
	}
	return protocol.AuthenticatorFlags(f)
}

// authenticatorData serializes the authenticator data structure:
// rpIdHash (32) || flags (1) || signCount (4) || [attested credential data].
func (m *MockAuthenticator) authenticatorData(attested bool) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(m.rpIDHash)
	buf.WriteByte(byte(m.flags(attested)))

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, m.SignCount)
	buf.Write(count)

	if attested {
		buf.Write(m.AAGUID)

		credIDLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credIDLen, uint16(len(m.CredentialID)))
		buf.Write(credIDLen)
		buf.Write(m.CredentialID)

		pubKey, err := m.PublicKeyCOSE()
		if err != nil {
			return nil, err
		}
		buf.Write(pubKey)
	}

	return buf.Bytes(), nil
}

// clientDataJSON builds the collected client data document.
func (m *MockAuthenticator) clientDataJSON(challenge []byte, origin, ceremonyType string) []byte {
	doc := struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremonyType,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	}

	jsonBytes, _ := json.Marshal(doc)
	return jsonBytes
}

// sign produces an ASN.1 DER ECDSA signature over data, the wire form
// WebAuthn requires.
func (m *MockAuthenticator) sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, m.privateKey, hash[:])
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(struct {
		R, S *big.Int
	}{R: r, S: s})
}
