package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

func prefProfile(gender string, age int, mutate func(*profile.Profile)) *profile.Profile {
	lat, lng := 37.7749, -122.4194
	p := &profile.Profile{
		UserID:    "u-" + gender,
		Gender:    gender,
		Age:       age,
		Latitude:  &lat,
		Longitude: &lng,
		Visible:   true,
		Preferences: profile.Preferences{
			InterestedIn: "everyone",
		},
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func TestSatisfiesPreferences(t *testing.T) {
	t.Parallel()

	losAngeles := func(p *profile.Profile) {
		lat, lng := 34.0522, -118.2437
		p.Latitude = &lat
		p.Longitude = &lng
	}

	tests := []struct {
		name      string
		owner     *profile.Profile
		candidate *profile.Profile
		want      bool
		reason    Reason
	}{
		{
			name: "wrong gender category",
			owner: prefProfile("man", 30, func(p *profile.Profile) {
				p.Preferences.InterestedIn = "women"
			}),
			candidate: prefProfile("man", 30, nil),
			want:      false,
			reason:    ReasonGender,
		},
		{
			name: "everyone accepts any gender",
			owner: prefProfile("man", 30, func(p *profile.Profile) {
				p.Preferences.InterestedIn = "everyone"
			}),
			candidate: prefProfile("man", 30, nil),
			want:      true,
			reason:    ReasonNone,
		},
		{
			name: "below minimum age",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.MinAge = 25
			}),
			candidate: prefProfile("man", 24, nil),
			want:      false,
			reason:    ReasonAge,
		},
		{
			name: "age boundaries are inclusive",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.MinAge = 25
				p.Preferences.MaxAge = 35
			}),
			candidate: prefProfile("man", 35, nil),
			want:      true,
			reason:    ReasonNone,
		},
		{
			name: "above maximum age",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.MaxAge = 35
			}),
			candidate: prefProfile("man", 36, nil),
			want:      false,
			reason:    ReasonAge,
		},
		{
			name: "too far away",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.MaxDistanceMiles = 50
			}),
			candidate: prefProfile("man", 30, losAngeles),
			want:      false,
			reason:    ReasonDistance,
		},
		{
			name: "missing coordinates fail a distance preference",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.MaxDistanceMiles = 50
			}),
			candidate: prefProfile("man", 30, func(p *profile.Profile) {
				p.Latitude = nil
				p.Longitude = nil
			}),
			want:   false,
			reason: ReasonDistance,
		},
		{
			name:  "missing coordinates pass when no distance preference is set",
			owner: prefProfile("woman", 30, nil),
			candidate: prefProfile("man", 30, func(p *profile.Profile) {
				p.Latitude = nil
				p.Longitude = nil
			}),
			want:   true,
			reason: ReasonNone,
		},
		{
			name: "declared lifestyle filter rejects",
			owner: prefProfile("woman", 30, func(p *profile.Profile) {
				p.Preferences.Drinking = "never"
			}),
			candidate: prefProfile("man", 30, func(p *profile.Profile) {
				p.Drinking = "often"
			}),
			want:   false,
			reason: ReasonDrinking,
		},
		{
			name:  "unset lifestyle filter always passes",
			owner: prefProfile("woman", 30, nil),
			candidate: prefProfile("man", 30, func(p *profile.Profile) {
				p.Drinking = "often"
				p.Smoking = "often"
			}),
			want:   true,
			reason: ReasonNone,
		},
		{
			name: "gender check short-circuits before age",
			owner: prefProfile("man", 30, func(p *profile.Profile) {
				p.Preferences.InterestedIn = "women"
				p.Preferences.MinAge = 25
			}),
			candidate: prefProfile("man", 18, nil),
			want:      false,
			reason:    ReasonGender,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, reason := SatisfiesPreferences(tc.candidate, tc.owner)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestDistancePreferenceBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	owner := prefProfile("woman", 30, nil)
	candidate := prefProfile("man", 30, func(p *profile.Profile) {
		lat, lng := 37.3382, -121.8863 // San Jose, ~40 miles off
		p.Latitude = &lat
		p.Longitude = &lng
	})

	exact := owner.DistanceMilesTo(candidate)
	require.Greater(t, exact, 1.0)

	// A candidate at exactly the limit is within range.
	owner.Preferences.MaxDistanceMiles = exact
	ok, reason := SatisfiesPreferences(candidate, owner)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	// One mile inside the pair's true distance is out of range.
	owner.Preferences.MaxDistanceMiles = exact - 1
	ok, reason = SatisfiesPreferences(candidate, owner)
	assert.False(t, ok)
	assert.Equal(t, ReasonDistance, reason)
}

func TestMutuallyEligibleRequiresBothDirections(t *testing.T) {
	t.Parallel()

	a := prefProfile("man", 30, func(p *profile.Profile) {
		p.UserID = "alice-seeker"
		p.Preferences.InterestedIn = "everyone"
	})
	b := prefProfile("woman", 30, func(p *profile.Profile) {
		p.UserID = "bob-rejecter"
		p.Preferences.InterestedIn = "women"
	})

	// a accepts b, but b only wants women.
	ok, reason := MutuallyEligible(a, b)
	assert.False(t, ok)
	assert.Equal(t, ReasonGender, reason)

	b.Preferences.InterestedIn = "men"
	ok, reason = MutuallyEligible(a, b)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}
