package model

import "strings"

// Confidence is an ordered qualitative trust level: low < medium < high.
// Combining confidences only ever moves toward low.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// ParseConfidence reads a confidence case-insensitively. Unrecognized values
// map to low so that bad data never raises trust.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Min returns the lower of two confidences.
func (c Confidence) Min(other Confidence) Confidence {
	if other.rank() < c.rank() {
		return other
	}
	return c
}

// Worst folds any number of confidences with "minimum wins". An empty fold is high.
func Worst(cs ...Confidence) Confidence {
	out := ConfidenceHigh
	for _, c := range cs {
		out = out.Min(c)
	}
	return out
}

// Score maps a confidence onto [0,1] for averaging row-level statistics.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.6
	default:
		return 0.3
	}
}

// Upper returns the upper-case label used in narrative DTOs.
func (c Confidence) Upper() string {
	return strings.ToUpper(string(c))
}
