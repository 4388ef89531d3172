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

// Package ratelimit provides per-client rate limiting for the passkey
// server. Ceremony endpoints are a brute-force surface, so each client IP
// gets its own token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds rate limiting configuration
type Config struct {
	// Enabled determines if rate limiting is active
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RequestsPerMinute is the sustained request rate allowed per client
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// Burst is the maximum burst size allowed per client
	Burst int `yaml:"burst" json:"burst"`

	// CleanupInterval is how often idle client entries are purged
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`

	// MaxIdle is how long a client entry may sit unused before purging
	MaxIdle time.Duration `yaml:"max_idle" json:"max_idle"`
}

// UnmarshalYAML decodes the configuration, accepting Go duration strings
// ("5m", "90s") for the interval fields. Fields absent from the document
// keep their current values.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig struct {
		Enabled           bool   `yaml:"enabled"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		Burst             int    `yaml:"burst"`
		CleanupInterval   string `yaml:"cleanup_interval"`
		MaxIdle           string `yaml:"max_idle"`
	}
	raw := rawConfig{
		Enabled:           c.Enabled,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.Burst,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.Enabled = raw.Enabled
	c.RequestsPerMinute = raw.RequestsPerMinute
	c.Burst = raw.Burst

	if raw.CleanupInterval != "" {
		d, err := time.ParseDuration(raw.CleanupInterval)
		if err != nil {
			return fmt.Errorf("invalid cleanup_interval: %w", err)
		}
		c.CleanupInterval = d
	}
	if raw.MaxIdle != "" {
		d, err := time.ParseDuration(raw.MaxIdle)
		if err != nil {
			return fmt.Errorf("invalid max_idle: %w", err)
		}
		c.MaxIdle = d
	}
	return nil
}

// DefaultConfig returns a sensible default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		MaxIdle:           10 * time.Minute,
	}
}

// clientLimiter tracks a rate limiter and its last use time
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter provides per-client rate limiting
type Limiter struct {
	mu       sync.RWMutex
	clients  map[string]*clientLimiter
	config   *Config
	perSec   rate.Limit
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
// If config is nil, DefaultConfig is used.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		clients: make(map[string]*clientLimiter),
		config:  config,
		perSec:  rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		stopCh:  make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupWorker()
	}
	return l
}

// Allow reports whether the client may proceed with a request now.
// Always true when rate limiting is disabled.
func (l *Limiter) Allow(clientID string) bool {
	if !l.config.Enabled {
		return true
	}
	return l.limiterFor(clientID).Allow()
}

// Wait blocks until the client may proceed or the context is done.
func (l *Limiter) Wait(ctx context.Context, clientID string) error {
	if !l.config.Enabled {
		return nil
	}
	return l.limiterFor(clientID).Wait(ctx)
}

// limiterFor returns the limiter for a client, creating one if needed.
func (l *Limiter) limiterFor(clientID string) *rate.Limiter {
	l.mu.RLock()
	entry, ok := l.clients[clientID]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		entry.lastSeen = time.Now()
		l.mu.Unlock()
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check under the write lock.
	if entry, ok := l.clients[clientID]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}
	entry = &clientLimiter{
		limiter:  rate.NewLimiter(l.perSec, l.config.Burst),
		lastSeen: time.Now(),
	}
	l.clients[clientID] = entry
	return entry.limiter
}

// cleanupWorker periodically removes idle client entries
func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes entries not seen within MaxIdle
func (l *Limiter) cleanup() {
	cutoff := time.Now().Add(-l.config.MaxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, id)
		}
	}
}

// Stop shuts down the cleanup worker
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// Stats returns the number of tracked clients
func (l *Limiter) Stats() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// Middleware returns an HTTP middleware that rate limits by client IP.
// Rejected requests get a 429 with a Retry-After hint.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if !limiter.Allow(clientIP) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request, honoring
// X-Forwarded-For and X-Real-IP before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	// Strip the port from RemoteAddr.
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		return addr[:idx]
	}
	return addr
}
