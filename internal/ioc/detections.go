package ioc

import (
	"fmt"
	"strconv"
	"strings"
)

// Detections is the canonical detected/total representation of an
// antivirus verdict count.
type Detections struct {
	Detected int `json:"detected"`
	Total    int `json:"total"`
}

// ParseDetections canonicalizes a "detected/total" string. Malformed
// or negative input normalizes to 0/0 rather than failing: upstream
// feeds are not trusted to format this consistently.
func ParseDetections(s string) Detections {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return Detections{}
	}
	detected, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || detected < 0 {
		return Detections{}
	}
	total, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || total < 0 {
		return Detections{}
	}
	return Detections{Detected: detected, Total: total}
}

// MakeDetections canonicalizes a detected/total pair, normalizing
// negative counts to 0/0.
func MakeDetections(detected, total int) Detections {
	if detected < 0 || total < 0 {
		return Detections{}
	}
	return Detections{Detected: detected, Total: total}
}

// Rate returns detected/total, or 0.0 when total is zero.
func (d Detections) Rate() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Detected) / float64(d.Total)
}

func (d Detections) String() string {
	return fmt.Sprintf("%d/%d", d.Detected, d.Total)
}
