package profile

import (
	"time"

	"github.com/harmonyloop/sparkd-backend/internal/geo"
)

// Profile is the matching engine's read view of a user. It is owned and
// mutated by the profile-management collaborator; the matching engine only
// reads it, except for the visibility flag which the lifecycle manager flips
// exactly once when a mutual match is created.
type Profile struct {
	UserID      string   `json:"user_id" db:"user_id"`
	DisplayName string   `json:"display_name" db:"display_name"`
	Gender      string   `json:"gender" db:"gender"`
	Age         int      `json:"age" db:"age"`
	Latitude    *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" db:"longitude"`

	// LocationCode is derived from the coordinates at write time and indexed
	// for prefix retrieval.
	LocationCode string `json:"location_code" db:"location_code"`

	// Lifestyle attributes. Empty string means undeclared.
	Drinking string `json:"drinking,omitempty" db:"drinking"`
	Smoking  string `json:"smoking,omitempty" db:"smoking"`
	Religion string `json:"religion,omitempty" db:"religion"`
	Children string `json:"children,omitempty" db:"children"`
	Exercise string `json:"exercise,omitempty" db:"exercise"`

	// Intent is the stated relationship intent ("casual", "long_term", ...).
	Intent string `json:"intent,omitempty" db:"intent"`

	Interests []string `json:"interests" db:"-"`

	Visible    bool      `json:"visible" db:"visible"`
	LastActive time.Time `json:"last_active" db:"last_active"`

	Preferences Preferences `json:"preferences"`
}

// Preferences declares who a user wants to be matched with. Read-only from
// the matching engine's perspective.
type Preferences struct {
	// InterestedIn is a gender category: "men", "women" or "everyone".
	InterestedIn string `json:"interested_in" db:"interested_in"`

	MinAge           int     `json:"min_age" db:"pref_min_age"`
	MaxAge           int     `json:"max_age" db:"pref_max_age"`
	MaxDistanceMiles float64 `json:"max_distance_miles" db:"pref_max_distance"`

	// Optional lifestyle filters. Empty string means no constraint.
	Drinking string `json:"drinking,omitempty" db:"pref_drinking"`
	Smoking  string `json:"smoking,omitempty" db:"pref_smoking"`
	Religion string `json:"religion,omitempty" db:"pref_religion"`
	Children string `json:"children,omitempty" db:"pref_children"`
}

// HasCoordinates reports whether the profile carries a usable location.
func (p *Profile) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// DistanceMilesTo returns the great-circle distance to another profile, or
// the unknown-distance sentinel when either side lacks coordinates so that a
// distance preference fails rather than silently passing.
func (p *Profile) DistanceMilesTo(other *Profile) float64 {
	if !p.HasCoordinates() || !other.HasCoordinates() {
		return geo.UnknownDistanceMiles
	}
	return geo.DistanceMiles(*p.Latitude, *p.Longitude, *other.Latitude, *other.Longitude)
}
