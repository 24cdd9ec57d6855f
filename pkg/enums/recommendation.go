package enums

import "fmt"

// Recommendation is the verdict produced by the repair-or-replace advisor.
type Recommendation string

const (
	RecommendationRepair  Recommendation = "repair"
	RecommendationReplace Recommendation = "replace"
	RecommendationMonitor Recommendation = "monitor"
)

var validRecommendations = []Recommendation{
	RecommendationRepair,
	RecommendationReplace,
	RecommendationMonitor,
}

// String implements fmt.Stringer.
func (r Recommendation) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Recommendation.
func (r Recommendation) IsValid() bool {
	for _, candidate := range validRecommendations {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecommendation converts raw input into a Recommendation.
func ParseRecommendation(value string) (Recommendation, error) {
	for _, candidate := range validRecommendations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recommendation %q", value)
}
