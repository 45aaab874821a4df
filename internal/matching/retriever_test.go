package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonyloop/sparkd-backend/internal/geo"
	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

func seedProfile(id, gender string, lat, lng float64, lastActive time.Time) *profile.Profile {
	return &profile.Profile{
		UserID:       id,
		Gender:       gender,
		Age:          30,
		Latitude:     &lat,
		Longitude:    &lng,
		LocationCode: geo.EncodeCode(lat, lng, geo.DefaultCodePrecision),
		Visible:      true,
		LastActive:   lastActive,
		Preferences:  profile.Preferences{InterestedIn: "everyone"},
	}
}

func testRetriever(store profile.Store, sparse, max, pageSize int) *Retriever {
	return NewRetriever(store, RetrieverConfig{
		CodePrecision:   geo.DefaultCodePrecision,
		SparseThreshold: sparse,
		MaxCandidates:   max,
		PageSize:        pageSize,
		ActiveWithin:    30 * 24 * time.Hour,
	})
}

func TestRetrieveIndexedPath(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	now := time.Now()

	requester := seedProfile("requester", "woman", 37.7749, -122.4194, now)
	store.Put(requester)
	store.Put(seedProfile("nearby-1", "man", 37.7800, -122.4100, now))
	store.Put(seedProfile("nearby-2", "man", 37.7700, -122.4300, now))
	store.Put(seedProfile("faraway", "man", 34.0522, -118.2437, now))

	r := testRetriever(store, 1, 50, 20)
	page, err := r.Retrieve(context.Background(), requester, "")
	require.NoError(t, err)

	assert.False(t, page.Widened)
	assert.Len(t, page.Profiles, 2)
	assert.Empty(t, page.NextToken)
	for _, p := range page.Profiles {
		assert.NotEqual(t, "requester", p.UserID, "requester must never see itself")
		assert.NotEqual(t, "faraway", p.UserID)
	}
}

func TestRetrieveWidensWhenSparse(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	now := time.Now()

	requester := seedProfile("requester", "woman", 37.7749, -122.4194, now)
	store.Put(requester)
	store.Put(seedProfile("nearby-1", "man", 37.7800, -122.4100, now))
	store.Put(seedProfile("nearby-2", "man", 37.7700, -122.4300, now))
	for i := 0; i < 6; i++ {
		store.Put(seedProfile(fmt.Sprintf("remote-%d", i), "man", 34.0522, -118.2437, now))
	}

	r := testRetriever(store, 5, 50, 20)
	page, err := r.Retrieve(context.Background(), requester, "")
	require.NoError(t, err)

	assert.True(t, page.Widened, "a sparse cell must fall back to the full scan")
	assert.Len(t, page.Profiles, 8, "widened scan keeps nearby candidates exactly once")

	ids := make(map[string]bool)
	for _, p := range page.Profiles {
		assert.False(t, ids[p.UserID], "duplicate candidate %s", p.UserID)
		ids[p.UserID] = true
	}
	assert.True(t, ids["nearby-1"])
	assert.True(t, ids["remote-0"])
}

func TestRetrieveWidensWithoutCoordinates(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	now := time.Now()
	store.Put(seedProfile("somebody", "man", 34.0522, -118.2437, now))

	requester := seedProfile("requester", "woman", 0, 0, now)
	requester.Latitude = nil
	requester.Longitude = nil
	requester.LocationCode = ""

	r := testRetriever(store, 5, 50, 20)
	page, err := r.Retrieve(context.Background(), requester, "")
	require.NoError(t, err)

	assert.True(t, page.Widened)
	assert.Len(t, page.Profiles, 1)
}

func TestRetrieveCapAndContinuation(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	now := time.Now()

	requester := seedProfile("requester", "woman", 37.7749, -122.4194, now)
	store.Put(requester)
	for i := 0; i < 25; i++ {
		store.Put(seedProfile(fmt.Sprintf("cand-%02d", i), "man", 37.7800, -122.4100, now))
	}

	r := testRetriever(store, 1, 10, 4)

	first, err := r.Retrieve(context.Background(), requester, "")
	require.NoError(t, err)
	assert.Len(t, first.Profiles, 10, "page is capped")
	require.NotEmpty(t, first.NextToken)

	second, err := r.Retrieve(context.Background(), requester, first.NextToken)
	require.NoError(t, err)
	assert.Len(t, second.Profiles, 10)

	seen := make(map[string]bool)
	for _, p := range append(first.Profiles, second.Profiles...) {
		assert.False(t, seen[p.UserID], "pages must not overlap: %s", p.UserID)
		seen[p.UserID] = true
	}
}

func TestRetrieveRejectsBadToken(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore()
	requester := seedProfile("requester", "woman", 37.7749, -122.4194, time.Now())
	r := testRetriever(store, 1, 10, 4)

	_, err := r.Retrieve(context.Background(), requester, "%%%not-a-token%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = r.Retrieve(context.Background(), requester, encodeCursor(cursor{Offset: -3}))
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
