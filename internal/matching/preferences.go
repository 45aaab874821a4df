package matching

import (
	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// Reason identifies the first check that blocked a pairing.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonGender   Reason = "gender"
	ReasonAge      Reason = "age"
	ReasonDistance Reason = "distance"
	ReasonDrinking Reason = "drinking"
	ReasonSmoking  Reason = "smoking"
	ReasonReligion Reason = "religion"
	ReasonChildren Reason = "children"
)

// interestedInGender maps a declared interest category to the gender it
// accepts. "everyone" (and an undeclared preference) is a wildcard.
var interestedInGender = map[string]string{
	"men":   "man",
	"women": "woman",
}

// SatisfiesPreferences reports whether candidate satisfies owner's stated
// constraints. Checks run cheapest-first and the first failure short-circuits
// with its reason: gender category, age range, distance, then any declared
// lifestyle filters. An unset preference always passes.
func SatisfiesPreferences(candidate, owner *profile.Profile) (bool, Reason) {
	prefs := owner.Preferences

	if want, ok := interestedInGender[prefs.InterestedIn]; ok && candidate.Gender != want {
		return false, ReasonGender
	}

	if prefs.MinAge > 0 && candidate.Age < prefs.MinAge {
		return false, ReasonAge
	}
	if prefs.MaxAge > 0 && candidate.Age > prefs.MaxAge {
		return false, ReasonAge
	}

	if prefs.MaxDistanceMiles > 0 {
		// Missing coordinates resolve to the sentinel and fail here rather
		// than silently passing.
		if owner.DistanceMilesTo(candidate) > prefs.MaxDistanceMiles {
			return false, ReasonDistance
		}
	}

	if prefs.Drinking != "" && candidate.Drinking != prefs.Drinking {
		return false, ReasonDrinking
	}
	if prefs.Smoking != "" && candidate.Smoking != prefs.Smoking {
		return false, ReasonSmoking
	}
	if prefs.Religion != "" && candidate.Religion != prefs.Religion {
		return false, ReasonReligion
	}
	if prefs.Children != "" && candidate.Children != prefs.Children {
		return false, ReasonChildren
	}

	return true, ReasonNone
}

// MutuallyEligible applies SatisfiesPreferences in both directions. A pair is
// presentable only when each side satisfies the other's constraints.
func MutuallyEligible(a, b *profile.Profile) (bool, Reason) {
	if ok, reason := SatisfiesPreferences(b, a); !ok {
		return false, reason
	}
	return SatisfiesPreferences(a, b)
}
