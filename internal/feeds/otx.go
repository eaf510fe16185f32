package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"secint/internal/health"
)

// Pulse is one named indicator bundle from the pulse feed.
type Pulse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	AuthorName string           `json:"author_name"`
	TLP        string           `json:"tlp"`
	Tags       []string         `json:"tags"`
	Indicators []PulseIndicator `json:"indicators"`
}

// PulseIndicator is a single raw indicator inside a pulse, still in
// the provider's own type vocabulary.
type PulseIndicator struct {
	Indicator   string `json:"indicator"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// OTXClient talks to the AlienVault OTX pulse feed.
type OTXClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewOTXClient(apiKey string) *OTXClient {
	return &OTXClient{
		apiKey:  apiKey,
		baseURL: otxBaseURL,
		http:    newHTTPClient(30 * time.Second),
	}
}

func (c *OTXClient) Name() string { return "otx" }

func (c *OTXClient) IsConfigured() bool { return c.apiKey != "" }

// FetchPulses returns up to limit subscribed pulses, or nil when the
// provider is unconfigured or unreachable.
func (c *OTXClient) FetchPulses(ctx context.Context, limit int) []Pulse {
	if !c.IsConfigured() {
		slog.Warn("otx api key not configured")
		return nil
	}

	url := fmt.Sprintf("%s/pulses/subscribed?limit=%d&page=1", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("X-OTX-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("otx fetch failed", "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("otx api error", "status", resp.StatusCode)
		return nil
	}

	var payload struct {
		Results []Pulse `json:"results"`
	}
	if err := decodeJSON(resp.Body, &payload); err != nil {
		slog.Error("otx decode failed", "err", err)
		return nil
	}
	pulses := payload.Results
	if len(pulses) > limit {
		pulses = pulses[:limit]
	}
	slog.Info("fetched threat pulses", "source", c.Name(), "count", len(pulses))
	return pulses
}

// Probe validates the configured credential against the account
// endpoint.
func (c *OTXClient) Probe(ctx context.Context) health.Status {
	now := time.Now().UTC()
	if !c.IsConfigured() {
		return health.Status{State: health.StateNotConfigured, Message: "OTX API key not configured", CheckedAt: now}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/me", nil)
	if err != nil {
		return health.Status{State: health.StateError, Message: err.Error(), CheckedAt: now}
	}
	req.Header.Set("X-OTX-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return health.Status{State: health.StateTimeout, Message: "OTX API request timed out", CheckedAt: now}
		}
		return health.Status{State: health.StateError, Message: fmt.Sprintf("OTX API check failed: %v", err), CheckedAt: now}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var user struct {
			Username string `json:"username"`
		}
		_ = decodeJSON(resp.Body, &user)
		return health.Status{
			State:     health.StateOK,
			Message:   fmt.Sprintf("OTX API key is valid (user %s)", user.Username),
			Quota:     "unlimited",
			CheckedAt: now,
		}
	case http.StatusForbidden:
		return health.Status{State: health.StateInvalid, Message: "OTX API key is invalid or expired", CheckedAt: now}
	default:
		return health.Status{State: health.StateError, Message: fmt.Sprintf("OTX API returned status %d", resp.StatusCode), CheckedAt: now}
	}
}
