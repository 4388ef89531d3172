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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCeremony(t *testing.T) {
	SetEnabled(true)
	before := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, PhaseFinish, StatusSuccess))

	RecordCeremony(CeremonyRegistration, PhaseFinish, true, 5*time.Millisecond)

	after := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, PhaseFinish, StatusSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordCeremony_ErrorStatus(t *testing.T) {
	SetEnabled(true)
	before := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, PhaseFinish, StatusError))

	RecordCeremony(CeremonyAuthentication, PhaseFinish, false, time.Millisecond)

	after := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, PhaseFinish, StatusError))
	assert.Equal(t, before+1, after)
}

func TestRecordSecurityEvent(t *testing.T) {
	SetEnabled(true)
	before := testutil.ToFloat64(SecurityEventsTotal.WithLabelValues(CeremonyAuthentication, "cloned authenticator"))

	RecordSecurityEvent(CeremonyAuthentication, "cloned authenticator")

	after := testutil.ToFloat64(SecurityEventsTotal.WithLabelValues(CeremonyAuthentication, "cloned authenticator"))
	assert.Equal(t, before+1, after)
}

func TestDisabledSkipsRecording(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	before := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, PhaseBegin, StatusSuccess))
	RecordCeremony(CeremonyRegistration, PhaseBegin, true, time.Millisecond)
	after := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, PhaseBegin, StatusSuccess))
	assert.Equal(t, before, after)

	assert.False(t, IsEnabled())
}

func TestRecordHTTPRequest(t *testing.T) {
	SetEnabled(true)
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "200"))

	RecordHTTPRequest("POST", "200", 2*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "200"))
	assert.Equal(t, before+1, after)
}
