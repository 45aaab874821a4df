package matching

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harmonyloop/sparkd-backend/internal/geo"
	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// RetrieverConfig bounds a single retrieval attempt.
type RetrieverConfig struct {
	CodePrecision   int
	SparseThreshold int           // below this the indexed path widens to a scan
	MaxCandidates   int           // hard cap per retrieval
	PageSize        int           // rows fetched per storage round-trip
	ActiveWithin    time.Duration // ignore profiles inactive longer than this
}

// Retriever pulls a bounded, paginated set of plausible candidates using the
// location-code index plus the cheap server-side filters. Read-only; an empty
// result is "no match now", not an error.
type Retriever struct {
	store profile.Store
	cfg   RetrieverConfig
}

// NewRetriever creates a Retriever over a profile store.
func NewRetriever(store profile.Store, cfg RetrieverConfig) *Retriever {
	if cfg.CodePrecision <= 0 {
		cfg.CodePrecision = geo.DefaultCodePrecision
	}
	return &Retriever{store: store, cfg: cfg}
}

// RetrievalPage is one bounded slice of plausible candidates.
type RetrievalPage struct {
	Profiles []*profile.Profile

	// Scanned counts rows pulled from storage, including duplicates dropped
	// during the widened pass. Feeds the scan-volume metric.
	Scanned int

	// Widened marks the known degradation path: the location-code prefix was
	// too sparse (or the requester has no coordinates) and the retrieval fell
	// back to a full visible scan.
	Widened bool

	// NextToken resumes the retrieval where this page stopped. Empty when
	// the candidate pool is exhausted.
	NextToken string
}

// cursor is the opaque continuation state.
type cursor struct {
	Offset  int  `json:"o"`
	Widened bool `json:"w"`
}

func encodeCursor(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (cursor, error) {
	var c cursor
	if token == "" {
		return c, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return c, ErrInvalidCursor
	}
	if err := json.Unmarshal(raw, &c); err != nil || c.Offset < 0 {
		return c, ErrInvalidCursor
	}

	return c, nil
}

// Retrieve returns the next page of candidates for the requester, resuming
// from token when given. The page stops at MaxCandidates to bound worst-case
// latency regardless of population size; the same cap also budgets the
// widened fallback scan.
func (r *Retriever) Retrieve(ctx context.Context, requester *profile.Profile, token string) (*RetrievalPage, error) {
	cur, err := decodeCursor(token)
	if err != nil {
		return nil, err
	}

	var cells []string
	if requester.HasCoordinates() {
		cells = geo.SearchCells(*requester.Latitude, *requester.Longitude, r.cfg.CodePrecision)
	} else {
		// No coordinates means no indexed path; start widened.
		cur.Widened = true
	}

	wantGender := interestedInGender[requester.Preferences.InterestedIn]

	filter := profile.CandidateFilter{
		ExcludeUserID: requester.UserID,
		Gender:        wantGender,
		ActiveSince:   time.Now().Add(-r.cfg.ActiveWithin),
	}

	page := &RetrievalPage{Widened: cur.Widened}
	dedup := make(map[string]bool)

	for len(page.Profiles) < r.cfg.MaxCandidates {
		filter.Offset = cur.Offset
		filter.Limit = r.cfg.PageSize
		if remaining := r.cfg.MaxCandidates - len(page.Profiles); remaining < filter.Limit {
			filter.Limit = remaining
		}

		var batch []*profile.Profile
		if cur.Widened {
			batch, err = r.store.ScanVisible(ctx, filter)
		} else {
			batch, err = r.store.FindByLocationCodes(ctx, cells, filter)
		}
		if err != nil {
			return nil, fmt.Errorf("retrieve candidates: %w", err)
		}

		page.Scanned += len(batch)
		cur.Offset += len(batch)

		for _, p := range batch {
			if !dedup[p.UserID] {
				dedup[p.UserID] = true
				page.Profiles = append(page.Profiles, p)
			}
		}

		if len(batch) < filter.Limit {
			// This path is exhausted.
			if !cur.Widened && len(page.Profiles) < r.cfg.SparseThreshold {
				cur.Widened = true
				cur.Offset = 0
				page.Widened = true
				continue
			}
			return page, nil
		}
	}

	page.NextToken = encodeCursor(cur)
	return page, nil
}
