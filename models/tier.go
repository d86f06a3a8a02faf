package models

import "strings"

// tier name patterns checked in order; first hit wins.
var (
	experimentalMarkers = []string{"preview", "exp", "beta", "alpha", "snapshot", "test"}
	efficientMarkers    = []string{"mini", "nano", "micro", "lite", "light", "small", "tiny", "haiku", "flash", "turbo", "instant", "8b", "7b", "3b", "1b"}
	legacyMarkers       = []string{"legacy", "deprecated", "gpt-3.5", "davinci", "curie", "babbage", "ada", "claude-2", "claude-instant", "palm"}
)

// DetectTier guesses a model's tier from its id when the provider listing
// does not carry one.
func DetectTier(id string) Tier {
	lower := strings.ToLower(id)
	for _, m := range experimentalMarkers {
		if strings.Contains(lower, m) {
			return TierExperimental
		}
	}
	for _, m := range legacyMarkers {
		if strings.Contains(lower, m) {
			return TierLegacy
		}
	}
	for _, m := range efficientMarkers {
		if strings.Contains(lower, m) {
			return TierEfficient
		}
	}
	return TierFlagship
}
