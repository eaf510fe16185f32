// Package feeds contains one client per external threat intelligence
// provider. Every client follows the same contract: a missing
// credential or any transport failure degrades to "no data" (a nil
// result), never to an error the caller has to handle. Each network
// call is bounded by the provider client's timeout.
package feeds

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default provider endpoints.
const (
	otxBaseURL        = "https://otx.alienvault.com/api/v1"
	abuseIPDBBaseURL  = "https://api.abuseipdb.com/api/v2"
	urlhausBaseURL    = "https://urlhaus-api.abuse.ch/v1"
	virusTotalBaseURL = "https://www.virustotal.com/api/v3"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// isTimeout reports whether a transport error was a deadline rather
// than a hard failure, so probes can distinguish the two.
func isTimeout(err error) bool {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Timeout()
	}
	return false
}

func decodeJSON(body io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(body, 64<<20)).Decode(v)
}
