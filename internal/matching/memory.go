package matching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// memoryRepository is the in-memory Repository used by tests and the memory
// store driver. A single mutex plays the role of the database's conditional
// writes: every transition happens under it, so the pair stays the unit of
// mutual exclusion.
type memoryRepository struct {
	mu       sync.Mutex
	records  map[pairKey]*MatchRecord
	mutual   map[pairKey]bool
	history  []HistoryEntry
	blocks   map[pairKey]bool
	profiles *profile.MemoryStore
}

type pairKey struct {
	a, b string
}

func directionalKey(requesterID, candidateID string) pairKey {
	return pairKey{a: requesterID, b: candidateID}
}

func canonicalKey(userA, userB string) pairKey {
	u1, u2 := canonicalPair(userA, userB)
	return pairKey{a: u1, b: u2}
}

// NewMemoryRepository creates a Repository over the in-memory profile store.
// The shared store is what lets CompleteMutual flip visibility atomically
// with the mutual write, mirroring the Postgres transaction.
func NewMemoryRepository(profiles *profile.MemoryStore) Repository {
	return &memoryRepository{
		records:  make(map[pairKey]*MatchRecord),
		mutual:   make(map[pairKey]bool),
		blocks:   make(map[pairKey]bool),
		profiles: profiles,
	}
}

// Block registers a directional block. Test/bootstrap helper; the write path
// belongs to the safety collaborator.
func (r *memoryRepository) Block(blockerID, blockedID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[directionalKey(blockerID, blockedID)] = true
}

func (r *memoryRepository) GetRecord(_ context.Context, requesterID, candidateID string) (*MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[directionalKey(requesterID, candidateID)]
	if !ok {
		return nil, ErrRecordNotFound
	}

	cp := *rec
	return &cp, nil
}

func (r *memoryRepository) GetUnresolvedPresentation(_ context.Context, requesterID string) (*MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *MatchRecord
	for key, rec := range r.records {
		if key.a != requesterID || rec.State != StatePresented {
			continue
		}
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rec
		}
	}

	if oldest == nil {
		return nil, ErrRecordNotFound
	}

	cp := *oldest
	return &cp, nil
}

func (r *memoryRepository) CreatePresentation(_ context.Context, requesterID, candidateID string, score int) (*MatchRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := directionalKey(requesterID, candidateID)
	if existing, ok := r.records[key]; ok {
		cp := *existing
		return &cp, false, nil
	}

	// One open presentation per requester: a concurrent caller gets the
	// already-open record back instead of a second slot.
	for k, rec := range r.records {
		if k.a == requesterID && rec.State == StatePresented {
			cp := *rec
			return &cp, false, nil
		}
	}

	now := time.Now()
	rec := &MatchRecord{
		RequesterID: requesterID,
		CandidateID: candidateID,
		State:       StatePresented,
		Score:       score,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.records[key] = rec

	cp := *rec
	return &cp, true, nil
}

func (r *memoryRepository) MarkAccepted(ctx context.Context, requesterID, candidateID string) (*MatchRecord, bool, error) {
	return r.transition(requesterID, candidateID, StateAccepted)
}

func (r *memoryRepository) MarkPassed(ctx context.Context, requesterID, candidateID string) (*MatchRecord, bool, error) {
	return r.transition(requesterID, candidateID, StatePassed)
}

func (r *memoryRepository) transition(requesterID, candidateID string, to MatchState) (*MatchRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[directionalKey(requesterID, candidateID)]
	if !ok {
		return nil, false, ErrRecordNotFound
	}

	if rec.State != StatePresented {
		cp := *rec
		return &cp, false, nil
	}

	rec.State = to
	rec.UpdatedAt = time.Now()

	cp := *rec
	return &cp, true, nil
}

func (r *memoryRepository) CompleteMutual(_ context.Context, userA, userB string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := canonicalKey(userA, userB)
	if r.mutual[key] {
		return false, nil
	}
	r.mutual[key] = true

	for _, dir := range []pairKey{directionalKey(userA, userB), directionalKey(userB, userA)} {
		if rec, ok := r.records[dir]; ok && rec.State == StateAccepted {
			rec.State = StateMutual
			rec.UpdatedAt = time.Now()
		}
	}

	r.profiles.SetVisibility(context.Background(), userA, false)
	r.profiles.SetVisibility(context.Background(), userB, false)

	return true, nil
}

func (r *memoryRepository) IsMutual(_ context.Context, userA, userB string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutual[canonicalKey(userA, userB)], nil
}

func (r *memoryRepository) PairExcluded(_ context.Context, userA, userB string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dir := range []pairKey{directionalKey(userA, userB), directionalKey(userB, userA)} {
		if rec, ok := r.records[dir]; ok && rec.State == StatePassed {
			return true, nil
		}
	}

	return r.mutual[canonicalKey(userA, userB)], nil
}

func (r *memoryRepository) SeenCandidateIDs(_ context.Context, requesterID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, entry := range r.history {
		if entry.RequesterID == requesterID {
			seen[entry.CandidateID] = true
		}
	}

	return seen, nil
}

func (r *memoryRepository) AppendHistory(_ context.Context, entry *HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	r.history = append(r.history, *entry)
	return nil
}

func (r *memoryRepository) IsBlockedEither(_ context.Context, userA, userB string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.blocks[directionalKey(userA, userB)] || r.blocks[directionalKey(userB, userA)], nil
}

func (r *memoryRepository) ExpirePresentations(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if rec.State == StatePresented && rec.CreatedAt.Before(before) {
			rec.State = StateExpired
			rec.UpdatedAt = time.Now()
			n++
		}
	}

	return n, nil
}
