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
	"time"
)

// MemoryCredentialRegistry is an in-memory CredentialRegistry. All mutations
// for a credential id happen under one mutex, so counter updates are a true
// conditional check-and-set rather than a read-then-write.
type MemoryCredentialRegistry struct {
	mu         sync.RWMutex
	byID       map[string]*Credential
	byIdentity map[string][]*Credential

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewMemoryCredentialRegistry creates a new in-memory credential registry.
func NewMemoryCredentialRegistry() *MemoryCredentialRegistry {
	return &MemoryCredentialRegistry{
		byID:       make(map[string]*Credential),
		byIdentity: make(map[string][]*Credential),
		now:        time.Now,
	}
}

// Put stores a new credential. A credential id maps to exactly one identity
// and one public key for its lifetime: any existing entry under the same id,
// whether owned by another identity, carrying different key material, or an
// exact duplicate, is rejected rather than overwritten.
func (r *MemoryCredentialRegistry) Put(ctx context.Context, cred *Credential) error {
	if cred == nil || len(cred.ID) == 0 {
		return wrap("put credential", ErrMalformedAssertion)
	}

	credKey := hex.EncodeToString(cred.ID)
	identityKey := hex.EncodeToString(cred.IdentityID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[credKey]; ok {
		return ErrDuplicateCredential
	}

	stored := *cred
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now().UTC()
	}

	r.byID[credKey] = &stored
	r.byIdentity[identityKey] = append(r.byIdentity[identityKey], &stored)

	return nil
}

// GetByIdentity retrieves all credentials registered to an identity. An
// empty result is not an error.
func (r *MemoryCredentialRegistry) GetByIdentity(ctx context.Context, identityID []byte) ([]*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := r.byIdentity[hex.EncodeToString(identityID)]
	result := make([]*Credential, len(creds))
	for i, c := range creds {
		cc := *c
		result[i] = &cc
	}
	return result, nil
}

// GetByCredentialID retrieves a credential by its id.
func (r *MemoryCredentialRegistry) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cc := *cred
	return &cc, nil
}

// UpdateCounter advances the signature counter for a credential. The update
// is conditioned on the stored value under the registry lock: a concurrent
// update that already advanced the counter past newCounter makes this call
// fail with ErrCounterRegression instead of silently losing the larger
// value. (0, 0) is a successful no-op, since authenticators without a
// counter report zero forever; LastUsedAt is stamped either way.
func (r *MemoryCredentialRegistry) UpdateCounter(ctx context.Context, credID []byte, newCounter uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[hex.EncodeToString(credID)]
	if !ok {
		return ErrCredentialNotFound
	}

	if newCounter != 0 || cred.SignCount != 0 {
		if newCounter <= cred.SignCount {
			return ErrCounterRegression
		}
		cred.SignCount = newCounter
	}
	cred.LastUsedAt = r.now().UTC()

	return nil
}

// Delete removes a credential. Revocation is an administrative operation
// outside the ceremony engine; it exists on the memory implementation only.
func (r *MemoryCredentialRegistry) Delete(ctx context.Context, credID []byte) error {
	credKey := hex.EncodeToString(credID)

	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[credKey]
	if !ok {
		return ErrCredentialNotFound
	}
	delete(r.byID, credKey)

	identityKey := hex.EncodeToString(cred.IdentityID)
	creds := r.byIdentity[identityKey]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == credKey {
			r.byIdentity[identityKey] = append(creds[:i], creds[i+1:]...)
			break
		}
	}

	return nil
}

// Count returns the total number of credentials.
func (r *MemoryCredentialRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Clear removes all credentials.
func (r *MemoryCredentialRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Credential)
	r.byIdentity = make(map[string][]*Credential)
}
