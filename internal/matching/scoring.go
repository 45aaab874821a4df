package matching

import (
	"github.com/harmonyloop/sparkd-backend/internal/geo"
	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// Scoring weights. The score starts at a neutral base and moves with shared
// interests, lifestyle alignment, stated intent and proximity.
const (
	scoreBase = 50

	maxInterestBonus = 20
	lifestyleBonus   = 4
	intentBonus      = 10

	nearDistanceMiles = 5
	midDistanceMiles  = 25
	farDistanceMiles  = 100

	nearBonus  = 10
	midBonus   = 5
	farPenalty = 10
)

// Score rates the compatibility of two profiles on a 0-100 scale. Pure and
// deterministic: the same two profiles always score the same, with no I/O.
func Score(a, b *profile.Profile) int {
	score := scoreBase

	score += interestBonus(a.Interests, b.Interests)

	for _, pair := range [][2]string{
		{a.Drinking, b.Drinking},
		{a.Smoking, b.Smoking},
		{a.Exercise, b.Exercise},
		{a.Children, b.Children},
		{a.Religion, b.Religion},
	} {
		if pair[0] != "" && pair[0] == pair[1] {
			score += lifestyleBonus
		}
	}

	if a.Intent != "" && a.Intent == b.Intent {
		score += intentBonus
	}

	score += distanceAdjustment(a.DistanceMilesTo(b))

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// interestBonus scales with the overlap relative to the smaller interest
// set, so a niche profile is not punished for having few interests.
func interestBonus(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, interest := range a {
		set[interest] = true
	}

	overlap := 0
	for _, interest := range b {
		if set[interest] {
			overlap++
		}
	}

	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}

	return overlap * maxInterestBonus / smaller
}

// distanceAdjustment applies tiered proximity bonuses independent of the
// hard distance check in the preference matcher.
func distanceAdjustment(miles float64) int {
	switch {
	case miles >= geo.UnknownDistanceMiles:
		return 0
	case miles < nearDistanceMiles:
		return nearBonus
	case miles < midDistanceMiles:
		return midBonus
	case miles > farDistanceMiles:
		return -farPenalty
	default:
		return 0
	}
}
