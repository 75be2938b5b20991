package types

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

type Severity string

const (
	SeverityUnknown  Severity = "UNKNOWN"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

const (
	MediumThreshold   = 4.0
	HighThreshold     = 7.0
	CriticalThreshold = 9.0
)

// ClassLabels maps a classifier class index to its label. The order is the
// one fixed when the severity label encoder was fit at training time
// (alphabetical), and every consumer must decode through this table.
var ClassLabels = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityLow,
	SeverityMedium,
	SeverityUnknown,
}

// Rank returns an integer rank for comparison (Unknown=0, Critical=4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively.
// Accepts "moderate" as "medium".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	case "unknown", "none", "":
		return SeverityUnknown, nil
	default:
		return SeverityUnknown, xerrors.Errorf("invalid severity: %s", s)
	}
}

// SeverityFromScore discretizes a CVSS base score. Lower bounds are
// inclusive, upper bounds exclusive. A missing, NaN or non-positive score
// is UNKNOWN.
func SeverityFromScore(score *float64) Severity {
	if score == nil || math.IsNaN(*score) || *score <= 0 {
		return SeverityUnknown
	}
	switch s := *score; {
	case s < MediumThreshold:
		return SeverityLow
	case s < HighThreshold:
		return SeverityMedium
	case s < CriticalThreshold:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// ParseScore converts a raw score cell. Anything that is not a finite
// number yields nil instead of an error.
func ParseScore(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ValidScore reports whether a score respects the CVSS range [0.0, 10.0].
func ValidScore(score float64) bool {
	return score >= 0 && score <= 10
}

// LabelForClass decodes a class index with the given label table, falling
// back to UNKNOWN for indexes outside of it.
func LabelForClass(labels []Severity, class int) Severity {
	if class < 0 || class >= len(labels) {
		return SeverityUnknown
	}
	return labels[class]
}
