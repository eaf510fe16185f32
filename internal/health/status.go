package health

import "time"

// State classifies the outcome of a source probe. Configuration
// absence is a first-class state, never an error.
type State string

const (
	StateOK            State = "ok"
	StateInvalid       State = "invalid"
	StateNotConfigured State = "not_configured"
	StateRateLimited   State = "rate_limited"
	StateTimeout       State = "timeout"
	StateError         State = "error"
)

// Status is the result of probing one external source.
type Status struct {
	State     State     `json:"status"`
	Message   string    `json:"message"`
	Quota     string    `json:"quota,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Overall status values derived from a full probe map.
const (
	OverallHealthy   = "healthy"
	OverallDegraded  = "degraded"
	OverallUnhealthy = "unhealthy"
)

// OverallStatus reduces a probe map to one word: healthy iff every
// configured source reports ok, degraded if at least half do, else
// unhealthy. Unconfigured sources are not counted against health.
func OverallStatus(statuses map[string]Status) string {
	ok := 0
	configured := 0
	for _, s := range statuses {
		if s.State == StateNotConfigured {
			continue
		}
		configured++
		if s.State == StateOK {
			ok++
		}
	}
	switch {
	case configured > 0 && ok == configured:
		return OverallHealthy
	case float64(ok) >= float64(configured)/2:
		return OverallDegraded
	default:
		return OverallUnhealthy
	}
}
