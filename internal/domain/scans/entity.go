package scans

import (
	"fmt"
	"strings"
)

// ScanResult is one immutable record of a completed remote analysis.
// ID is zero until the record has been persisted.
type ScanResult struct {
	ID                       int64    `json:"id"`
	Prediction               string   `json:"prediction"`
	Severity                 string   `json:"severity"`
	About                    string   `json:"about"`
	Disclaimer               string   `json:"disclaimer"`
	CommonSymptoms           []string `json:"common_symptoms"`
	TreatmentRecommendations []string `json:"treatment_recommendations"`
}

// Persisted reports whether the store has assigned an id.
func (r ScanResult) Persisted() bool { return r.ID > 0 }

// WithID returns a copy carrying the given id. Only the store calls this.
func (r ScanResult) WithID(id int64) ScanResult {
	out := r.Clone()
	out.ID = id
	return out
}

// Clone deep-copies the list fields so the copy shares no backing arrays.
// Nil lists come back as empty lists.
func (r ScanResult) Clone() ScanResult {
	r.CommonSymptoms = cloneList(r.CommonSymptoms)
	r.TreatmentRecommendations = cloneList(r.TreatmentRecommendations)
	return r
}

// Summary returns "prediction (severity)" for log lines and listings.
func (r ScanResult) Summary() string {
	p := r.Prediction
	if p == "" {
		p = "unknown"
	}
	if r.Severity == "" {
		return p
	}
	return fmt.Sprintf("%s (%s)", p, r.Severity)
}

// SeverityLevel is the coarse classification of the free-form severity string.
type SeverityLevel string

const (
	SeverityMild     SeverityLevel = "mild"
	SeverityModerate SeverityLevel = "moderate"
	SeveritySevere   SeverityLevel = "severe"
	SeverityUnknown  SeverityLevel = "unknown"
)

// Level classifies Severity case-insensitively. The stored string is left as is.
func (r ScanResult) Level() SeverityLevel {
	switch strings.ToLower(strings.TrimSpace(r.Severity)) {
	case "mild":
		return SeverityMild
	case "moderate":
		return SeverityModerate
	case "severe":
		return SeveritySevere
	default:
		return SeverityUnknown
	}
}

func cloneList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
