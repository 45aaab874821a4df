package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no profile exists for a user id.
var ErrNotFound = errors.New("profile not found")

// CandidateFilter narrows candidate pages to the attributes that are cheap
// to filter server-side. Anything subtler is the preference matcher's job.
type CandidateFilter struct {
	ExcludeUserID string
	Gender        string // "" matches any gender
	ActiveSince   time.Time
	Offset        int
	Limit         int
}

// Store is the narrow profile-store interface the matching engine consumes.
// Everything else about profiles (registration, edits, photos) belongs to the
// profile-management collaborator and is out of scope here.
type Store interface {
	// GetProfile reads one profile. Returns ErrNotFound when missing.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// FindByLocationCodes returns a page of visible profiles whose location
	// code starts with any of the given prefixes, ordered by recent activity.
	FindByLocationCodes(ctx context.Context, prefixes []string, f CandidateFilter) ([]*Profile, error)

	// ScanVisible is the widened fallback when the indexed path is sparse:
	// a page over all visible profiles, same filters and ordering.
	ScanVisible(ctx context.Context, f CandidateFilter) ([]*Profile, error)

	// SetVisibility flips the visibility flag. Only the match lifecycle
	// manager may call this.
	SetVisibility(ctx context.Context, userID string, visible bool) error
}
