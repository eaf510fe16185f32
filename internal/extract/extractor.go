package extract

import (
	"regexp"
	"sort"
	"strings"

	"secint/internal/ioc"
)

// Extraction patterns per indicator type. All are matched
// case-insensitively; validators canonicalize afterwards.
var patternSpecs = map[ioc.Type]string{
	ioc.TypeIPv4:   `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`,
	ioc.TypeDomain: `\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}\b`,
	ioc.TypeURL:    `https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`,
	ioc.TypeMD5:    `\b[a-fA-F0-9]{32}\b`,
	ioc.TypeSHA1:   `\b[a-fA-F0-9]{40}\b`,
	ioc.TypeSHA256: `\b[a-fA-F0-9]{64}\b`,
	ioc.TypeCVE:    `CVE-\d{4}-\d{4,7}`,
	ioc.TypeEmail:  `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
}

// Address blocks that never appear as real-world attack infrastructure:
// loopback, RFC1918, link-local, multicast, broadcast and the all-zeros
// block. Matching addresses are dropped at validation.
var privateIPPrefixes = []string{
	`^127\.`,
	`^10\.`,
	`^172\.(1[6-9]|2[0-9]|3[0-1])\.`,
	`^192\.168\.`,
	`^0\.`,
	`^169\.254\.`,
	`^224\.`,
	`^255\.`,
}

// Well-known benign domains that regularly show up in threat reports
// as references rather than indicators.
var benignDomains = map[string]bool{
	"localhost":         true,
	"example.com":       true,
	"example.org":       true,
	"example.net":       true,
	"test.com":          true,
	"domain.com":        true,
	"google.com":        true,
	"microsoft.com":     true,
	"w3.org":            true,
	"ietf.org":          true,
	"github.com":        true,
	"stackoverflow.com": true,
}

var hashLengths = map[ioc.Type]int{
	ioc.TypeMD5:    32,
	ioc.TypeSHA1:   40,
	ioc.TypeSHA256: 64,
}

// Extractor detects and validates indicators of compromise in raw text.
// Patterns are compiled once at construction.
type Extractor struct {
	patterns  map[ioc.Type]*regexp.Regexp
	privateIP []*regexp.Regexp
}

func New() *Extractor {
	e := &Extractor{patterns: make(map[ioc.Type]*regexp.Regexp, len(patternSpecs))}
	for t, expr := range patternSpecs {
		e.patterns[t] = regexp.MustCompile(`(?i)` + expr)
	}
	for _, expr := range privateIPPrefixes {
		e.privateIP = append(e.privateIP, regexp.MustCompile(expr))
	}
	return e
}

// ExtractAll runs every pattern over text and returns validated,
// deduplicated matches per type, lexicographically sorted. Empty input
// yields an empty map.
func (e *Extractor) ExtractAll(text string) map[ioc.Type][]string {
	results := make(map[ioc.Type][]string)
	if text == "" {
		return results
	}
	for _, t := range ioc.Types {
		if values := e.extract(text, t); len(values) > 0 {
			results[t] = values
		}
	}
	return results
}

// ExtractByType scopes extraction to a single indicator type.
func (e *Extractor) ExtractByType(text string, t ioc.Type) []string {
	if text == "" {
		return nil
	}
	if _, ok := e.patterns[t]; !ok {
		return nil
	}
	return e.extract(text, t)
}

// Count reports per-type cardinalities without exposing the values,
// for cheap triage.
func (e *Extractor) Count(text string) map[ioc.Type]int {
	counts := make(map[ioc.Type]int)
	for t, values := range e.ExtractAll(text) {
		counts[t] = len(values)
	}
	return counts
}

func (e *Extractor) extract(text string, t ioc.Type) []string {
	matches := e.patterns[t].FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var values []string
	for _, m := range matches {
		v, ok := e.validate(t, m)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// validate applies the type-specific acceptance rules and returns the
// canonical form of the value.
func (e *Extractor) validate(t ioc.Type, value string) (string, bool) {
	switch t {
	case ioc.TypeIPv4:
		return value, e.validIP(value)
	case ioc.TypeDomain:
		return e.validDomain(value)
	case ioc.TypeURL:
		return value, e.validURL(value)
	case ioc.TypeMD5, ioc.TypeSHA1, ioc.TypeSHA256:
		return e.validHash(t, value)
	default:
		// CVE and email are accepted as matched.
		return value, true
	}
}

func (e *Extractor) validIP(ip string) bool {
	for _, p := range e.privateIP {
		if p.MatchString(ip) {
			return false
		}
	}
	// Guard against pathological matches: every octet must be 0-255.
	for _, part := range strings.Split(ip, ".") {
		n := 0
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}

func (e *Extractor) validDomain(domain string) (string, bool) {
	lower := strings.ToLower(domain)
	if benignDomains[lower] {
		return "", false
	}
	if len(strings.Split(lower, ".")) < 2 {
		return "", false
	}
	if isDigits(strings.ReplaceAll(lower, ".", "")) {
		return "", false
	}
	return lower, true
}

func (e *Extractor) validURL(url string) bool {
	lower := strings.ToLower(url)
	for domain := range benignDomains {
		if strings.Contains(lower, domain) {
			return false
		}
	}
	return len(url) > 10 && strings.Contains(url, ".")
}

func (e *Extractor) validHash(t ioc.Type, h string) (string, bool) {
	if len(h) != hashLengths[t] {
		return "", false
	}
	for _, c := range h {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return "", false
		}
	}
	return strings.ToLower(h), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
