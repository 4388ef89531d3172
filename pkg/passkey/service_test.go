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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		RPID:          testRPID,
		RPDisplayName: "Example",
		RPOrigins:     []string{testOrigin},
	}
}

type mockSessionIssuer struct {
	token string
	err   error
}

func (m *mockSessionIssuer) Issue(ctx context.Context, identity *Identity) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.token, nil
}

func newTestService(t *testing.T, opts ...func(*ServiceParams)) *Service {
	t.Helper()

	params := ServiceParams{
		Config:     validTestConfig(),
		Identities: NewMemoryIdentityStore(),
		Challenges: NewMemoryChallengeStore(),
		Registry:   NewMemoryCredentialRegistry(),
		Sessions:   &mockSessionIssuer{token: "session-token"},
	}
	for _, opt := range opts {
		opt(&params)
	}

	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

// register runs a full registration ceremony with the mock authenticator and
// returns the identity and stored credential.
func register(t *testing.T, svc *Service, auth *MockAuthenticator, email string) (*Identity, *Credential) {
	t.Helper()
	ctx := context.Background()

	options, identity, err := svc.StartRegistration(ctx, email, "Test User")
	require.NoError(t, err)

	response, err := auth.CreateRegistrationResponse(options.Response.Challenge, testOrigin)
	require.NoError(t, err)

	cred, _, err := svc.FinishRegistration(ctx, identity.ID, response)
	require.NoError(t, err)
	return identity, cred
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "nil config",
			params:  ServiceParams{},
			wantErr: "config is required",
		},
		{
			name: "nil identity store",
			params: ServiceParams{
				Config: validTestConfig(),
			},
			wantErr: "identity store is required",
		},
		{
			name: "nil challenge store",
			params: ServiceParams{
				Config:     validTestConfig(),
				Identities: NewMemoryIdentityStore(),
			},
			wantErr: "challenge store is required",
		},
		{
			name: "nil registry",
			params: ServiceParams{
				Config:     validTestConfig(),
				Identities: NewMemoryIdentityStore(),
				Challenges: NewMemoryChallengeStore(),
			},
			wantErr: "credential registry is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:     &Config{},
				Identities: NewMemoryIdentityStore(),
				Challenges: NewMemoryChallengeStore(),
				Registry:   NewMemoryCredentialRegistry(),
			},
			wantErr: "RPID is required",
		},
		{
			name: "valid params",
			params: ServiceParams{
				Config:     validTestConfig(),
				Identities: NewMemoryIdentityStore(),
				Challenges: NewMemoryChallengeStore(),
				Registry:   NewMemoryCredentialRegistry(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
				assert.NotNil(t, svc.Config())
			}
		})
	}
}

func TestService_RegistrationFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	options, identity, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, testRPID, options.Response.RelyingParty.ID)
	assert.Equal(t, "alice@example.com", options.Response.User.Name)
	assert.Len(t, []byte(options.Response.Challenge), DefaultChallengeSize)
	assert.Empty(t, options.Response.CredentialExcludeList)

	response, err := auth.CreateRegistrationResponse(options.Response.Challenge, testOrigin)
	require.NoError(t, err)

	cred, _, err := svc.FinishRegistration(ctx, identity.ID, response)
	require.NoError(t, err)
	assert.Equal(t, auth.CredentialID, cred.ID)
	assert.Equal(t, identity.ID, cred.IdentityID)

	registered, err := svc.Registered(ctx, identity.ID)
	require.NoError(t, err)
	assert.True(t, registered)

	// The second registration start for the same account reuses the
	// identity and excludes the existing credential.
	options2, identity2, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, identity2.ID)
	require.Len(t, options2.Response.CredentialExcludeList, 1)
	assert.Equal(t, []byte(auth.CredentialID), []byte(options2.Response.CredentialExcludeList[0].CredentialID))
}

func TestService_RegistrationReplay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	options, identity, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	response, err := auth.CreateRegistrationResponse(options.Response.Challenge, testOrigin)
	require.NoError(t, err)

	_, _, err = svc.FinishRegistration(ctx, identity.ID, response)
	require.NoError(t, err)

	// The challenge was consumed; the identical response cannot land twice.
	_, _, err = svc.FinishRegistration(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_RegistrationFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	options, identity, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	// Response bound to the wrong origin fails verification.
	response, err := auth.CreateRegistrationResponse(options.Response.Challenge, "https://evil.example")
	require.NoError(t, err)

	_, _, err = svc.FinishRegistration(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrOriginMismatch)

	registered, err := svc.Registered(ctx, identity.ID)
	require.NoError(t, err)
	assert.False(t, registered)

	// The failed attempt also burned the challenge.
	response2, err := auth.CreateRegistrationResponse(options.Response.Challenge, testOrigin)
	require.NoError(t, err)
	_, _, err = svc.FinishRegistration(ctx, identity.ID, response2)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_ReissueInvalidatesPriorChallenge(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	first, identity, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	_, _, err = svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	response, err := auth.CreateRegistrationResponse(first.Response.Challenge, testOrigin)
	require.NoError(t, err)

	_, _, err = svc.FinishRegistration(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestService_SingleCredentialPolicy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, func(p *ServiceParams) {
		p.Config.SingleCredentialPerIdentity = true
	})
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)

	register(t, svc, auth, "alice@example.com")

	_, _, err = svc.StartRegistration(ctx, "alice@example.com", "Alice")
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestService_AuthenticationFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, cred := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, testRPID, options.Response.RelyingPartyID)
	require.Len(t, options.Response.AllowedCredentials, 1)
	assert.Equal(t, []byte(cred.ID), []byte(options.Response.AllowedCredentials[0].CredentialID))

	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	token, err := svc.FinishAuthentication(ctx, identity.ID, response)
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)

	stored, err := svc.Credentials(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, uint32(1), stored[0].SignCount)
	assert.False(t, stored[0].LastUsedAt.IsZero())
}

func TestService_AuthenticationReplay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, _ := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)

	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	require.NoError(t, err)

	// Captured assertion replayed verbatim: the challenge is gone.
	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_AuthenticationNoCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, identity, err := svc.StartRegistration(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	_, err = svc.StartAuthentication(ctx, identity.ID)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestService_AuthenticationUnknownIdentity(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.StartAuthentication(context.Background(), []byte("ghost"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestService_CrossIdentityCredential(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	aliceAuth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	register(t, svc, aliceAuth, "alice@example.com")

	bobAuth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	bob, _ := register(t, svc, bobAuth, "bob@example.com")

	options, err := svc.StartAuthentication(ctx, bob.ID)
	require.NoError(t, err)

	// Bob asserts with Alice's authenticator. The error must be identical
	// to the unknown-credential case.
	response, err := aliceAuth.CreateAssertionResponse(options.Response.Challenge, bob.ID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, bob.ID, response)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	options, err = svc.StartAuthentication(ctx, bob.ID)
	require.NoError(t, err)

	ghostAuth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	response, err = ghostAuth.CreateAssertionResponse(options.Response.Challenge, bob.ID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, bob.ID, response)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestService_ExpiredChallenge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	svc := newTestService(t, func(p *ServiceParams) {
		p.Challenges = NewMemoryChallengeStore(WithClock(func() time.Time { return *clock }))
	})
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, _ := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)

	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestService_CloneDetectionAborts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, _ := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)
	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)
	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	require.NoError(t, err)

	// A clone stuck at an older counter value signs correctly but cannot
	// advance the counter.
	auth.SignCount = 0
	options, err = svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)
	response, err = auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrClonedAuthenticator)

	stored, err := svc.Credentials(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, uint32(1), stored[0].SignCount)
}

func TestService_SessionIssuerFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, func(p *ServiceParams) {
		p.Sessions = &mockSessionIssuer{err: assert.AnError}
	})
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, _ := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)
	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	_, err = svc.FinishAuthentication(ctx, identity.ID, response)
	assert.ErrorIs(t, err, ErrSessionIssuance)
}

func TestService_NoSessionIssuer(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, func(p *ServiceParams) {
		p.Sessions = nil
	})
	auth, err := NewMockAuthenticator(testRPID)
	require.NoError(t, err)
	identity, _ := register(t, svc, auth, "alice@example.com")

	options, err := svc.StartAuthentication(ctx, identity.ID)
	require.NoError(t, err)
	response, err := auth.CreateAssertionResponse(options.Response.Challenge, identity.ID, testOrigin)
	require.NoError(t, err)

	token, err := svc.FinishAuthentication(ctx, identity.ID, response)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestService_RegisteredUnknownIdentity(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Registered(context.Background(), []byte("ghost"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
