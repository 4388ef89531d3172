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
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// MemoryIdentityStore is an in-memory IdentityStore. Production deployments
// implement IdentityStore against their real identity provider; this store
// backs single-instance setups and tests.
type MemoryIdentityStore struct {
	mu      sync.RWMutex
	byID    map[string]*Identity
	byEmail map[string]*Identity
}

// NewMemoryIdentityStore creates a new in-memory identity store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		byID:    make(map[string]*Identity),
		byEmail: make(map[string]*Identity),
	}
}

// GetByID retrieves an identity by its stable identifier.
func (s *MemoryIdentityStore) GetByID(ctx context.Context, id []byte) (*Identity, error) {
	if len(id) == 0 {
		return nil, ErrInvalidIdentity
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byID[hex.EncodeToString(id)]
	if !ok {
		return nil, ErrInvalidIdentity
	}
	ii := *identity
	return &ii, nil
}

// GetByEmail retrieves an identity by its email address.
func (s *MemoryIdentityStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	if email == "" {
		return nil, ErrInvalidIdentity
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byEmail[email]
	if !ok {
		return nil, ErrInvalidIdentity
	}
	ii := *identity
	return &ii, nil
}

// Create provisions a new identity with a random UUID user handle. If the
// email is already provisioned the existing identity is returned, so
// repeated registration starts for the same account are idempotent.
func (s *MemoryIdentityStore) Create(ctx context.Context, email, displayName string) (*Identity, error) {
	if email == "" {
		return nil, ErrInvalidIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byEmail[email]; ok {
		ii := *existing
		return &ii, nil
	}

	handle := uuid.New()
	id := make([]byte, len(handle))
	copy(id, handle[:])

	identity := &Identity{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
	}

	s.byID[hex.EncodeToString(id)] = identity
	s.byEmail[email] = identity

	ii := *identity
	return &ii, nil
}

// Count returns the number of identities.
func (s *MemoryIdentityStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
