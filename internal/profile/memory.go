package profile

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is the in-memory Store used by tests and the memory store
// driver. Selected by configuration, never by runtime capability probing.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Put inserts or replaces a profile. Test/bootstrap helper; the production
// write path belongs to the profile-management collaborator.
func (s *MemoryStore) Put(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *p
	return &cp, nil
}

func (s *MemoryStore) FindByLocationCodes(_ context.Context, prefixes []string, f CandidateFilter) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.page(f, func(p *Profile) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(p.LocationCode, prefix) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) ScanVisible(_ context.Context, f CandidateFilter) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.page(f, func(*Profile) bool { return true }), nil
}

func (s *MemoryStore) SetVisibility(_ context.Context, userID string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}

	p.Visible = visible
	return nil
}

// page applies the shared filters, the extra predicate, the stable ordering
// (recent activity first, then user id) and offset/limit pagination.
func (s *MemoryStore) page(f CandidateFilter, keep func(*Profile) bool) []*Profile {
	var out []*Profile

	for _, p := range s.profiles {
		if !p.Visible || p.UserID == f.ExcludeUserID {
			continue
		}
		if f.Gender != "" && p.Gender != f.Gender {
			continue
		}
		if !f.ActiveSince.IsZero() && p.LastActive.Before(f.ActiveSince) {
			continue
		}
		if !keep(p) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].LastActive.After(out[j].LastActive)
		}
		return out[i].UserID < out[j].UserID
	})

	if f.Offset >= len(out) {
		return nil
	}
	out = out[f.Offset:]

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}

	return out
}
