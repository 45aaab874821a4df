package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

func scoreProfile(mutate func(*profile.Profile)) *profile.Profile {
	p := &profile.Profile{UserID: "u", Gender: "man", Age: 30}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func atCoords(lat, lng float64) func(*profile.Profile) {
	return func(p *profile.Profile) {
		p.Latitude = &lat
		p.Longitude = &lng
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	sanFrancisco := atCoords(37.7749, -122.4194)
	oakland := atCoords(37.8044, -122.2712)    // ~8 miles out
	losAngeles := atCoords(34.0522, -118.2437) // ~347 miles out

	tests := []struct {
		name string
		a, b *profile.Profile
		want int
	}{
		{
			name: "bare profiles score the neutral base",
			a:    scoreProfile(nil),
			b:    scoreProfile(nil),
			want: 50,
		},
		{
			name: "full interest overlap",
			a:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"hiking", "jazz"} }),
			b:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"jazz", "hiking"} }),
			want: 70,
		},
		{
			name: "overlap is relative to the smaller interest set",
			a:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"hiking"} }),
			b:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"hiking", "jazz", "film"} }),
			want: 70,
		},
		{
			name: "partial overlap of equal sets",
			a:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"hiking", "chess"} }),
			b:    scoreProfile(func(p *profile.Profile) { p.Interests = []string{"hiking", "jazz"} }),
			want: 60,
		},
		{
			name: "each matching lifestyle attribute adds its bonus",
			a: scoreProfile(func(p *profile.Profile) {
				p.Drinking = "socially"
				p.Exercise = "daily"
			}),
			b: scoreProfile(func(p *profile.Profile) {
				p.Drinking = "socially"
				p.Exercise = "daily"
			}),
			want: 58,
		},
		{
			name: "undeclared lifestyle attributes never match each other",
			a:    scoreProfile(func(p *profile.Profile) { p.Drinking = "" }),
			b:    scoreProfile(func(p *profile.Profile) { p.Drinking = "" }),
			want: 50,
		},
		{
			name: "shared intent",
			a:    scoreProfile(func(p *profile.Profile) { p.Intent = "long_term" }),
			b:    scoreProfile(func(p *profile.Profile) { p.Intent = "long_term" }),
			want: 60,
		},
		{
			name: "same neighborhood earns the proximity bonus",
			a:    scoreProfile(sanFrancisco),
			b:    scoreProfile(sanFrancisco),
			want: 60,
		},
		{
			name: "nearby city earns the smaller bonus",
			a:    scoreProfile(sanFrancisco),
			b:    scoreProfile(oakland),
			want: 55,
		},
		{
			name: "far apart is penalized",
			a:    scoreProfile(sanFrancisco),
			b:    scoreProfile(losAngeles),
			want: 40,
		},
		{
			name: "unknown distance is neutral",
			a:    scoreProfile(nil),
			b:    scoreProfile(sanFrancisco),
			want: 50,
		},
		{
			name: "score clamps at 100",
			a: scoreProfile(func(p *profile.Profile) {
				atCoords(37.7749, -122.4194)(p)
				p.Interests = []string{"hiking", "jazz"}
				p.Drinking = "socially"
				p.Smoking = "never"
				p.Exercise = "daily"
				p.Children = "someday"
				p.Religion = "none"
				p.Intent = "long_term"
			}),
			b: scoreProfile(func(p *profile.Profile) {
				atCoords(37.7749, -122.4194)(p)
				p.Interests = []string{"hiking", "jazz"}
				p.Drinking = "socially"
				p.Smoking = "never"
				p.Exercise = "daily"
				p.Children = "someday"
				p.Religion = "none"
				p.Intent = "long_term"
			}),
			want: 100,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Score(tc.a, tc.b)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, Score(tc.a, tc.b), "score must be deterministic")
			assert.Equal(t, got, Score(tc.b, tc.a), "score must be symmetric")
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}
