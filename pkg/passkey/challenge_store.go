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
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultChallengeTTL is the challenge lifetime used when the caller does
// not supply one.
const DefaultChallengeTTL = 60 * time.Second

// DefaultChallengeSize is the challenge length in bytes.
const DefaultChallengeSize = 32

// MemoryChallengeStore is a process-wide in-memory ChallengeStore. Entries
// are keyed by (identity, kind) and individually TTL'd; consuming or
// reissuing evicts, so the map never grows beyond the set of in-flight
// ceremonies. Suitable for single-instance deployments; multi-instance
// deployments need a shared store with the same atomic consume guarantee.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	size       int

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// MemoryChallengeStoreOption configures a MemoryChallengeStore.
type MemoryChallengeStoreOption func(*MemoryChallengeStore)

// WithChallengeSize sets the generated challenge length in bytes.
func WithChallengeSize(n int) MemoryChallengeStoreOption {
	return func(s *MemoryChallengeStore) {
		s.size = n
	}
}

// WithClock replaces the store's clock. Used by tests to exercise expiry
// boundaries.
func WithClock(now func() time.Time) MemoryChallengeStoreOption {
	return func(s *MemoryChallengeStore) {
		s.now = now
	}
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore(opts ...MemoryChallengeStoreOption) *MemoryChallengeStore {
	s := &MemoryChallengeStore{
		challenges: make(map[string]*Challenge),
		size:       DefaultChallengeSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// challengeKey builds the (identity, kind) map key. Identity bytes are hex
// encoded so arbitrary byte strings cannot collide with the separator.
func challengeKey(identityID []byte, kind CeremonyKind) string {
	return hex.EncodeToString(identityID) + "/" + string(kind)
}

// Issue generates a fresh random challenge for (identity, kind). Any prior
// live challenge for the same pair is overwritten, making the earlier
// ceremony attempt unrecoverable; only the latest challenge is retrievable.
func (s *MemoryChallengeStore) Issue(ctx context.Context, identityID []byte, kind CeremonyKind, cctx CeremonyContext, ttl time.Duration) (*Challenge, error) {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}

	value := make([]byte, s.size)
	if _, err := rand.Read(value); err != nil {
		return nil, wrap("issue challenge", err)
	}

	identity := make([]byte, len(identityID))
	copy(identity, identityID)

	ch := &Challenge{
		Value:      value,
		IdentityID: identity,
		Kind:       kind,
		Context:    cctx,
		ExpiresAt:  s.now().Add(ttl),
	}

	s.mu.Lock()
	s.challenges[challengeKey(identityID, kind)] = ch
	s.mu.Unlock()

	return ch, nil
}

// Consume atomically fetches and deletes the challenge for (identity, kind).
// Expired entries are treated as absent; two concurrent consumers for the
// same key cannot both observe a live challenge.
func (s *MemoryChallengeStore) Consume(ctx context.Context, identityID []byte, kind CeremonyKind) (*Challenge, error) {
	key := challengeKey(identityID, kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.challenges, key)

	if ch.Expired(s.now()) {
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

// Count returns the number of live entries, expired or not.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Clear removes all entries.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges = make(map[string]*Challenge)
}

// Cleanup removes expired entries and returns the count removed. Correctness
// never depends on this; it is storage hygiene for abandoned ceremonies.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, ch := range s.challenges {
		if ch.Expired(now) {
			delete(s.challenges, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine starts a background goroutine that periodically reaps
// expired challenges. Call the returned cancel function to stop it.
func (s *MemoryChallengeStore) StartCleanupRoutine(ctx context.Context, interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()

	return cancel
}
