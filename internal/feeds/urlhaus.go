package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"secint/internal/health"
)

// MalwareURL is one entry from the recent malware URL feed.
type MalwareURL struct {
	URL       string   `json:"url"`
	URLStatus string   `json:"url_status"`
	Threat    string   `json:"threat"`
	Tags      []string `json:"tags"`
	DateAdded string   `json:"date_added"`
}

// Payload is one entry from the recent malware payload feed.
type Payload struct {
	SHA256Hash string `json:"sha256_hash"`
	MD5Hash    string `json:"md5_hash"`
	Signature  string `json:"signature"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size,string"`
}

// URLhausClient talks to the abuse.ch URLhaus feed. The API is public;
// an auth key only lifts rate limits.
type URLhausClient struct {
	authKey string
	baseURL string
	http    *http.Client
}

func NewURLhausClient(authKey string) *URLhausClient {
	return &URLhausClient{
		authKey: authKey,
		baseURL: urlhausBaseURL,
		http:    newHTTPClient(30 * time.Second),
	}
}

func (c *URLhausClient) Name() string { return "urlhaus" }

// IsConfigured is always true: the feed works without a key.
func (c *URLhausClient) IsConfigured() bool { return true }

// FetchRecentURLs returns up to limit recent malware URLs. The local
// cap applies even if upstream returns more.
func (c *URLhausClient) FetchRecentURLs(ctx context.Context, limit int) []MalwareURL {
	var payload struct {
		QueryStatus string       `json:"query_status"`
		URLs        []MalwareURL `json:"urls"`
	}
	if !c.get(ctx, "/urls/recent/", &payload) {
		return nil
	}
	if payload.QueryStatus != "ok" {
		slog.Error("urlhaus query failed", "query_status", payload.QueryStatus)
		return nil
	}
	urls := payload.URLs
	if len(urls) > limit {
		urls = urls[:limit]
	}
	slog.Info("fetched malware urls", "source", c.Name(), "count", len(urls))
	return urls
}

// FetchRecentPayloads returns up to limit recent malware payload
// hashes.
func (c *URLhausClient) FetchRecentPayloads(ctx context.Context, limit int) []Payload {
	var payload struct {
		QueryStatus string    `json:"query_status"`
		Payloads    []Payload `json:"payloads"`
	}
	if !c.get(ctx, "/payloads/recent/", &payload) {
		return nil
	}
	if payload.QueryStatus != "ok" {
		slog.Error("urlhaus payloads query failed", "query_status", payload.QueryStatus)
		return nil
	}
	payloads := payload.Payloads
	if len(payloads) > limit {
		payloads = payloads[:limit]
	}
	slog.Info("fetched malware payloads", "source", c.Name(), "count", len(payloads))
	return payloads
}

func (c *URLhausClient) get(ctx context.Context, path string, v any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	if c.authKey != "" {
		req.Header.Set("Auth-Key", c.authKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("urlhaus fetch failed", "path", path, "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("urlhaus api error", "path", path, "status", resp.StatusCode)
		return false
	}
	if err := decodeJSON(resp.Body, v); err != nil {
		slog.Error("urlhaus decode failed", "path", path, "err", err)
		return false
	}
	return true
}

// Probe checks feed reachability; a 401 means the optional auth key is
// bad.
func (c *URLhausClient) Probe(ctx context.Context) health.Status {
	now := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/urls/recent/", nil)
	if err != nil {
		return health.Status{State: health.StateError, Message: err.Error(), CheckedAt: now}
	}
	if c.authKey != "" {
		req.Header.Set("Auth-Key", c.authKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return health.Status{State: health.StateTimeout, Message: "URLhaus API request timed out", CheckedAt: now}
		}
		return health.Status{State: health.StateError, Message: fmt.Sprintf("URLhaus API check failed: %v", err), CheckedAt: now}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload struct {
			QueryStatus string `json:"query_status"`
		}
		if err := decodeJSON(resp.Body, &payload); err == nil && payload.QueryStatus == "ok" {
			quota := "rate-limited (public)"
			if c.authKey != "" {
				quota = "unlimited with auth key"
			}
			return health.Status{State: health.StateOK, Message: "URLhaus API accessible", Quota: quota, CheckedAt: now}
		}
		return health.Status{State: health.StateError, Message: fmt.Sprintf("URLhaus API query failed: %s", payload.QueryStatus), CheckedAt: now}
	case http.StatusUnauthorized:
		return health.Status{State: health.StateInvalid, Message: "URLhaus auth key is invalid or unauthorized", CheckedAt: now}
	default:
		return health.Status{State: health.StateError, Message: fmt.Sprintf("URLhaus API returned status %d", resp.StatusCode), CheckedAt: now}
	}
}
