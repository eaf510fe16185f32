package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"secint/internal/health"
)

// IPReputation is the reputation provider's verdict for one address.
// AbuseConfidenceScore runs 0-100.
type IPReputation struct {
	AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
	TotalReports         int    `json:"totalReports"`
	CountryCode          string `json:"countryCode"`
	ISP                  string `json:"isp"`
	Domain               string `json:"domain"`
	IsWhitelisted        bool   `json:"isWhitelisted"`
}

// AbuseIPDBClient looks up IP abuse reports.
type AbuseIPDBClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewAbuseIPDBClient(apiKey string) *AbuseIPDBClient {
	return &AbuseIPDBClient{
		apiKey:  apiKey,
		baseURL: abuseIPDBBaseURL,
		http:    newHTTPClient(10 * time.Second),
	}
}

func (c *AbuseIPDBClient) Name() string { return "abuseipdb" }

func (c *AbuseIPDBClient) IsConfigured() bool { return c.apiKey != "" }

// CheckIP returns the reputation record for ip, or nil when the
// provider is unconfigured, rate limited or unreachable.
func (c *AbuseIPDBClient) CheckIP(ctx context.Context, ip string) *IPReputation {
	if !c.IsConfigured() {
		slog.Warn("abuseipdb api key not configured")
		return nil
	}

	resp, err := c.check(ctx, ip)
	if err != nil {
		slog.Error("abuseipdb check failed", "ip", ip, "err", err)
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload struct {
			Data IPReputation `json:"data"`
		}
		if err := decodeJSON(resp.Body, &payload); err != nil {
			slog.Error("abuseipdb decode failed", "err", err)
			return nil
		}
		return &payload.Data
	case http.StatusTooManyRequests:
		slog.Warn("abuseipdb rate limit reached")
		return nil
	default:
		slog.Error("abuseipdb api error", "status", resp.StatusCode)
		return nil
	}
}

func (c *AbuseIPDBClient) check(ctx context.Context, ip string) (*http.Response, error) {
	url := fmt.Sprintf("%s/check?ipAddress=%s&maxAgeInDays=90", c.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// Probe validates the credential with a lookup of a well-known address
// and reads the remaining daily quota from the rate limit headers.
func (c *AbuseIPDBClient) Probe(ctx context.Context) health.Status {
	now := time.Now().UTC()
	if !c.IsConfigured() {
		return health.Status{State: health.StateNotConfigured, Message: "AbuseIPDB API key not configured", CheckedAt: now}
	}

	resp, err := c.check(ctx, "8.8.8.8")
	if err != nil {
		if isTimeout(err) {
			return health.Status{State: health.StateTimeout, Message: "AbuseIPDB API request timed out", CheckedAt: now}
		}
		return health.Status{State: health.StateError, Message: fmt.Sprintf("AbuseIPDB API check failed: %v", err), CheckedAt: now}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		remaining := resp.Header.Get("X-RateLimit-Remaining")
		limit := resp.Header.Get("X-RateLimit-Limit")
		return health.Status{
			State:     health.StateOK,
			Message:   "AbuseIPDB API key is valid",
			Quota:     fmt.Sprintf("%s/%s daily requests", remaining, limit),
			CheckedAt: now,
		}
	case http.StatusUnauthorized:
		return health.Status{State: health.StateInvalid, Message: "AbuseIPDB API key is invalid", CheckedAt: now}
	case http.StatusTooManyRequests:
		return health.Status{State: health.StateRateLimited, Message: "AbuseIPDB rate limit exceeded", CheckedAt: now}
	default:
		return health.Status{State: health.StateError, Message: fmt.Sprintf("AbuseIPDB API returned status %d", resp.StatusCode), CheckedAt: now}
	}
}
