package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"secint/internal/health"
)

// AnalysisStats is the engine verdict breakdown for a scanned object.
type AnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

// Detected counts engines that flagged the object.
func (s AnalysisStats) Detected() int { return s.Malicious + s.Suspicious }

// Total counts all engines that produced a verdict.
func (s AnalysisStats) Total() int {
	return s.Malicious + s.Suspicious + s.Harmless + s.Undetected
}

// FileReport is the malware-analysis provider's record for a file
// hash.
type FileReport struct {
	Stats           AnalysisStats
	Reputation      int
	FileType        string
	FileSize        int64
	FirstSubmission int64
	ThreatLabel     string
}

// IPReport is the same provider's record for an IP address.
type IPReport struct {
	Stats      AnalysisStats
	Reputation int
	Country    string
	ASOwner    string
}

type vtAttributes struct {
	LastAnalysisStats   AnalysisStats `json:"last_analysis_stats"`
	Reputation          int           `json:"reputation"`
	Country             string        `json:"country"`
	ASOwner             string        `json:"as_owner"`
	TypeDescription     string        `json:"type_description"`
	Size                int64         `json:"size"`
	FirstSubmissionDate int64         `json:"first_submission_date"`
	PopularThreatClass  struct {
		SuggestedThreatLabel string `json:"suggested_threat_label"`
	} `json:"popular_threat_classification"`
}

type vtObject struct {
	Data struct {
		Attributes vtAttributes `json:"attributes"`
	} `json:"data"`
}

// VirusTotalClient looks up file hashes and IP addresses against the
// multi-engine analysis provider.
type VirusTotalClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewVirusTotalClient(apiKey string) *VirusTotalClient {
	return &VirusTotalClient{
		apiKey:  apiKey,
		baseURL: virusTotalBaseURL,
		http:    newHTTPClient(10 * time.Second),
	}
}

func (c *VirusTotalClient) Name() string { return "virustotal" }

func (c *VirusTotalClient) IsConfigured() bool { return c.apiKey != "" }

// CheckFile returns the analysis record for a file hash, or nil when
// unconfigured, unknown to the provider, rate limited or unreachable.
func (c *VirusTotalClient) CheckFile(ctx context.Context, hash string) *FileReport {
	if !c.IsConfigured() {
		slog.Warn("virustotal api key not configured")
		return nil
	}
	attrs := c.fetch(ctx, "/files/"+hash)
	if attrs == nil {
		return nil
	}
	return &FileReport{
		Stats:           attrs.LastAnalysisStats,
		Reputation:      attrs.Reputation,
		FileType:        attrs.TypeDescription,
		FileSize:        attrs.Size,
		FirstSubmission: attrs.FirstSubmissionDate,
		ThreatLabel:     attrs.PopularThreatClass.SuggestedThreatLabel,
	}
}

// CheckIP returns the analysis record for an IP address, or nil.
func (c *VirusTotalClient) CheckIP(ctx context.Context, ip string) *IPReport {
	if !c.IsConfigured() {
		return nil
	}
	attrs := c.fetch(ctx, "/ip_addresses/"+ip)
	if attrs == nil {
		return nil
	}
	return &IPReport{
		Stats:      attrs.LastAnalysisStats,
		Reputation: attrs.Reputation,
		Country:    attrs.Country,
		ASOwner:    attrs.ASOwner,
	}
}

func (c *VirusTotalClient) fetch(ctx context.Context, path string) *vtAttributes {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("virustotal fetch failed", "path", path, "err", err)
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var obj vtObject
		if err := decodeJSON(resp.Body, &obj); err != nil {
			slog.Error("virustotal decode failed", "err", err)
			return nil
		}
		return &obj.Data.Attributes
	case http.StatusNotFound:
		slog.Debug("object not found in virustotal", "path", path)
		return nil
	case http.StatusTooManyRequests:
		slog.Warn("virustotal rate limit reached")
		return nil
	default:
		slog.Error("virustotal api error", "status", resp.StatusCode)
		return nil
	}
}

// Probe validates the credential with a lookup of a well-known
// address. A 403 means the endpoint is restricted for the key's tier
// but the key itself works.
func (c *VirusTotalClient) Probe(ctx context.Context) health.Status {
	now := time.Now().UTC()
	if !c.IsConfigured() {
		return health.Status{State: health.StateNotConfigured, Message: "VirusTotal API key not configured", CheckedAt: now}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ip_addresses/8.8.8.8", nil)
	if err != nil {
		return health.Status{State: health.StateError, Message: err.Error(), CheckedAt: now}
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return health.Status{State: health.StateTimeout, Message: "VirusTotal API request timed out", CheckedAt: now}
		}
		return health.Status{State: health.StateError, Message: fmt.Sprintf("VirusTotal API check failed: %v", err), CheckedAt: now}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return health.Status{State: health.StateOK, Message: "VirusTotal API key is valid", Quota: "standard tier", CheckedAt: now}
	case http.StatusForbidden:
		return health.Status{State: health.StateOK, Message: "VirusTotal API key is valid (endpoint restricted)", Quota: "standard free tier", CheckedAt: now}
	case http.StatusUnauthorized:
		return health.Status{State: health.StateInvalid, Message: "VirusTotal API key is invalid", CheckedAt: now}
	case http.StatusTooManyRequests:
		return health.Status{State: health.StateRateLimited, Message: "VirusTotal rate limit exceeded", CheckedAt: now}
	default:
		return health.Status{State: health.StateError, Message: fmt.Sprintf("VirusTotal API returned status %d", resp.StatusCode), CheckedAt: now}
	}
}
