package ioc

import "time"

// Type identifies the kind of observable an indicator describes.
type Type string

const (
	TypeIPv4   Type = "ipv4"
	TypeDomain Type = "domain"
	TypeURL    Type = "url"
	TypeMD5    Type = "md5"
	TypeSHA1   Type = "sha1"
	TypeSHA256 Type = "sha256"
	TypeCVE    Type = "cve"
	TypeEmail  Type = "email"
)

// Types lists every supported indicator type in a fixed order.
var Types = []Type{TypeIPv4, TypeDomain, TypeURL, TypeMD5, TypeSHA1, TypeSHA256, TypeCVE, TypeEmail}

// Category is the coarse SIEM bucket derived from an indicator type.
type Category string

const (
	CategoryFileHash Category = "filehash"
	CategoryIP       Category = "ip"
	CategoryDomain   Category = "domain"
	CategoryURL      Category = "url"
	CategoryCVE      Category = "cve"
	CategoryEmail    Category = "email"
	CategoryOther    Category = "other"
)

var categoryByType = map[Type]Category{
	TypeMD5:    CategoryFileHash,
	TypeSHA1:   CategoryFileHash,
	TypeSHA256: CategoryFileHash,
	TypeIPv4:   CategoryIP,
	TypeDomain: CategoryDomain,
	TypeURL:    CategoryURL,
	TypeCVE:    CategoryCVE,
	TypeEmail:  CategoryEmail,
}

// CategoryOf maps an indicator type onto its category. Unknown types
// fall through to CategoryOther.
func CategoryOf(t Type) Category {
	if c, ok := categoryByType[t]; ok {
		return c
	}
	return CategoryOther
}

// Indicator is a single observable as produced by extraction or feed
// ingestion. Value and Type together form the natural key.
type Indicator struct {
	Value       string   `json:"value"`
	Type        Type     `json:"type"`
	Source      string   `json:"source"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Free-text threat context carried by the feed, if any.
	Context    string `json:"context,omitempty"`
	ThreatType string `json:"threat_type,omitempty"`

	// Pulse-level metadata (OTX style feeds).
	PulseID     string `json:"pulse_id,omitempty"`
	PulseName   string `json:"pulse_name,omitempty"`
	PulseAuthor string `json:"pulse_author,omitempty"`
	PulseTLP    string `json:"pulse_tlp,omitempty"`

	// Payload metadata (malware feeds).
	MalwareFamily string `json:"malware_family,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	RelatedURL    string `json:"related_url,omitempty"`

	// URLStatus is the feed's liveness flag for URL indicators
	// ("online" means the malware URL is currently serving).
	URLStatus string `json:"url_status,omitempty"`

	ThreatActor string `json:"threat_actor,omitempty"`

	// FirstSeen is the feed-reported sighting time; zero when the feed
	// did not report one.
	FirstSeen time.Time `json:"first_seen"`
}
