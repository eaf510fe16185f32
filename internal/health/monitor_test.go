package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	name   string
	status Status
	panics bool
	calls  atomic.Int32
}

func (f *fakeProber) Name() string { return f.name }

func (f *fakeProber) Probe(ctx context.Context) Status {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	return f.status
}

func TestValidateAllProbesEverySource(t *testing.T) {
	a := &fakeProber{name: "otx", status: Status{State: StateOK}}
	b := &fakeProber{name: "virustotal", status: Status{State: StateInvalid, Message: "bad key"}}
	m := NewMonitor(a, b)

	got := m.ValidateAll(context.Background(), false)

	require.Len(t, got, 2)
	assert.Equal(t, StateOK, got["otx"].State)
	assert.Equal(t, StateInvalid, got["virustotal"].State)
	assert.Equal(t, int32(1), a.calls.Load())
}

func TestValidateAllServesCachedResults(t *testing.T) {
	p := &fakeProber{name: "otx", status: Status{State: StateOK}}
	m := NewMonitorTTL(time.Hour, p)

	m.ValidateAll(context.Background(), true)
	m.ValidateAll(context.Background(), true)
	m.ValidateAll(context.Background(), true)

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestValidateAllBypassesCacheOnRequest(t *testing.T) {
	p := &fakeProber{name: "otx", status: Status{State: StateOK}}
	m := NewMonitorTTL(time.Hour, p)

	m.ValidateAll(context.Background(), true)
	m.ValidateAll(context.Background(), false)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestValidateAllExpiredCacheReprobes(t *testing.T) {
	p := &fakeProber{name: "otx", status: Status{State: StateOK}}
	m := NewMonitorTTL(time.Nanosecond, p)

	m.ValidateAll(context.Background(), true)
	time.Sleep(time.Millisecond)
	m.ValidateAll(context.Background(), true)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestValidateAllSurvivesPanickingProber(t *testing.T) {
	good := &fakeProber{name: "otx", status: Status{State: StateOK}}
	bad := &fakeProber{name: "abuseipdb", panics: true}
	m := NewMonitor(good, bad)

	got := m.ValidateAll(context.Background(), false)

	require.Len(t, got, 2)
	assert.Equal(t, StateOK, got["otx"].State)
	assert.Equal(t, StateError, got["abuseipdb"].State)
	assert.Contains(t, got["abuseipdb"].Message, "abuseipdb")
}

func TestValidateAllReturnsCopies(t *testing.T) {
	p := &fakeProber{name: "otx", status: Status{State: StateOK}}
	m := NewMonitorTTL(time.Hour, p)

	first := m.ValidateAll(context.Background(), true)
	first["otx"] = Status{State: StateError}

	second := m.ValidateAll(context.Background(), true)
	assert.Equal(t, StateOK, second["otx"].State)
}

func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses map[string]Status
		want     string
	}{
		{
			"all configured ok",
			map[string]Status{
				"a": {State: StateOK},
				"b": {State: StateOK},
			},
			OverallHealthy,
		},
		{
			"unconfigured sources do not count",
			map[string]Status{
				"a": {State: StateOK},
				"b": {State: StateNotConfigured},
			},
			OverallHealthy,
		},
		{
			"half ok is degraded",
			map[string]Status{
				"a": {State: StateOK},
				"b": {State: StateError},
			},
			OverallDegraded,
		},
		{
			"minority ok is unhealthy",
			map[string]Status{
				"a": {State: StateOK},
				"b": {State: StateError},
				"c": {State: StateTimeout},
			},
			OverallUnhealthy,
		},
		{
			"nothing configured is degraded",
			map[string]Status{
				"a": {State: StateNotConfigured},
			},
			OverallDegraded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverallStatus(tc.statuses))
		})
	}
}
