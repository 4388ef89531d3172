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

// Package metrics provides Prometheus instrumentation for the passkey
// server: ceremony counters and latencies, security event counters, and
// HTTP request metrics.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelCeremony   = "ceremony"
	LabelPhase      = "phase"
	LabelStatus     = "status"
	LabelErrorKind  = "error_kind"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Ceremony phases
	PhaseBegin  = "begin"
	PhaseFinish = "finish"
)

var (
	// CeremoniesTotal tracks ceremony phase outcomes by ceremony, phase
	// and status.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of ceremony phases by ceremony, phase, and status",
		},
		[]string{LabelCeremony, LabelPhase, LabelStatus},
	)

	// CeremonyDuration tracks ceremony phase latency in seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of ceremony phases in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelCeremony, LabelPhase},
	)

	// SecurityEventsTotal counts verification failures that indicate a
	// potential attack rather than a client mistake, labeled by the error
	// kind that tripped.
	SecurityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "security_events_total",
			Help:      "Total number of security-significant verification failures by error kind",
		},
		[]string{LabelCeremony, LabelErrorKind},
	)

	// CredentialsTotal tracks the number of registered credentials.
	CredentialsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "credentials_total",
			Help:      "Total number of registered credentials",
		},
	)

	// ChallengesLive tracks the number of in-flight challenges.
	ChallengesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "challenges_live",
			Help:      "Number of live challenges awaiting ceremony completion",
		},
	)

	// SessionsIssuedTotal counts successfully minted session tokens.
	SessionsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_issued_total",
			Help:      "Total number of session tokens issued",
		},
	)

	// HTTPRequestsTotal tracks HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// SetEnabled toggles metrics collection at runtime.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return enabled.Load()
}

// RecordCeremony records the outcome of one ceremony phase.
//
// Example:
//
//	start := time.Now()
//	_, err := svc.FinishAuthentication(ctx, id, response)
//	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.PhaseFinish, err == nil, time.Since(start))
func RecordCeremony(ceremony, phase string, success bool, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	CeremoniesTotal.WithLabelValues(ceremony, phase, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony, phase).Observe(duration.Seconds())
}

// RecordSecurityEvent counts a security-significant verification failure.
func RecordSecurityEvent(ceremony, errorKind string) {
	if !enabled.Load() {
		return
	}
	SecurityEventsTotal.WithLabelValues(ceremony, errorKind).Inc()
}

// RecordSessionIssued counts a minted session token.
func RecordSessionIssued() {
	if !enabled.Load() {
		return
	}
	SessionsIssuedTotal.Inc()
}

// RecordHTTPRequest records an HTTP request outcome.
func RecordHTTPRequest(method, statusCode string, duration time.Duration) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// StartResourceCollector starts a goroutine that refreshes runtime gauges
// at the given interval until the stop channel closes.
func StartResourceCollector(interval time.Duration, stop <-chan struct{}) {
	start := time.Now()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				Goroutines.Set(float64(runtime.NumGoroutine()))
				MemoryAllocBytes.Set(float64(m.Alloc))
				ServerUptime.Set(time.Since(start).Seconds())
			}
		}
	}()
}
