package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// Service is the outbound surface of the matching core.
type Service interface {
	// FindNextMatch finds, ranks and presents exactly one compatible
	// candidate. Returns (nil, nil) when no match is available right now;
	// that is a normal outcome, not a failure.
	FindNextMatch(ctx context.Context, requesterID string) (*Candidate, error)

	// AcceptMatch accepts the presented candidate. When the reverse direction
	// has also accepted, the pair becomes mutual exactly once and both
	// profiles are hidden.
	AcceptMatch(ctx context.Context, requesterID, candidateID string) (*AcceptResult, error)

	// PassMatch declines the presented candidate, permanently excluding the
	// pair from future presentation on either side.
	PassMatch(ctx context.Context, requesterID, candidateID string) (MatchState, error)

	// ScoreBatch scores the requester against each candidate. Unknown
	// candidates are skipped, never failing the batch.
	ScoreBatch(ctx context.Context, requesterID string, candidateIDs []string) ([]ScoreEntry, error)

	// ExpireStalePresentations releases presentation slots older than the
	// configured TTL so an abandoned presentation cannot deadlock a user.
	ExpireStalePresentations(ctx context.Context) (int64, error)
}

type service struct {
	repo            Repository
	profiles        profile.Store
	cache           Cache // nil disables caching
	retriever       *Retriever
	sink            *Sink
	presentationTTL time.Duration
}

// NewService wires the matching core together.
func NewService(repo Repository, profiles profile.Store, cache Cache, retriever *Retriever, sink *Sink, presentationTTL time.Duration) Service {
	return &service{
		repo:            repo,
		profiles:        profiles,
		cache:           cache,
		retriever:       retriever,
		sink:            sink,
		presentationTTL: presentationTTL,
	}
}

func (s *service) FindNextMatch(ctx context.Context, requesterID string) (*Candidate, error) {
	start := time.Now()

	cand, scanned, widened, err := s.findNext(ctx, requesterID)

	outcome := OutcomeNoMatch
	switch {
	case err != nil:
		outcome = OutcomeError
	case cand != nil:
		outcome = OutcomeMatched
	}
	s.sink.ObserveAttempt(time.Since(start), scanned, outcome, widened)

	return cand, err
}

func (s *service) findNext(ctx context.Context, requesterID string) (*Candidate, int, bool, error) {
	// Presentation is a lifecycle write, so the requester is read fresh.
	requester, err := s.freshProfile(ctx, requesterID)
	if err != nil {
		return nil, 0, false, err
	}

	// A hidden requester is already in a mutual match; nothing to present.
	if !requester.Visible {
		return nil, 0, false, nil
	}

	// One active match per user: an unresolved presentation is re-served
	// rather than handing out a second candidate. A failed read of that
	// candidate is an error, never a reason to present someone else; the
	// TTL sweep releases the slot if the profile stays gone.
	if open, err := s.repo.GetUnresolvedPresentation(ctx, requesterID); err == nil {
		candProfile, perr := s.freshProfile(ctx, open.CandidateID)
		if perr != nil {
			return nil, 0, false, perr
		}
		return &Candidate{
			Profile:       candProfile,
			DistanceMiles: requester.DistanceMilesTo(candProfile),
			Score:         open.Score,
		}, 0, false, nil
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, 0, false, err
	}

	seen, err := s.repo.SeenCandidateIDs(ctx, requesterID)
	if err != nil {
		return nil, 0, false, err
	}

	// One bounded retrieval; the retriever internally pages up to its cap.
	page, err := s.retriever.Retrieve(ctx, requester, "")
	if err != nil {
		return nil, 0, false, err
	}

	best, bestScore, err := s.pickBest(ctx, requester, page.Profiles, seen)
	if err != nil {
		return nil, page.Scanned, page.Widened, err
	}
	if best == nil {
		return nil, page.Scanned, page.Widened, nil
	}

	rec, created, err := s.repo.CreatePresentation(ctx, requesterID, best.UserID, bestScore)
	if err != nil {
		return nil, page.Scanned, page.Widened, err
	}
	if !created {
		if rec.State != StatePresented {
			// Lost a race against a concurrent resolution of the same pair.
			return nil, page.Scanned, page.Widened, nil
		}

		// A concurrent call opened a presentation first (possibly for a
		// different candidate); the open record wins, whoever it names.
		candProfile, perr := s.freshProfile(ctx, rec.CandidateID)
		if perr != nil {
			return nil, page.Scanned, page.Widened, perr
		}
		return &Candidate{
			Profile:       candProfile,
			DistanceMiles: requester.DistanceMilesTo(candProfile),
			Score:         rec.Score,
		}, page.Scanned, page.Widened, nil
	}

	if err := s.repo.AppendHistory(ctx, &HistoryEntry{
		RequesterID: requesterID,
		CandidateID: best.UserID,
		Action:      HistoryPresented,
	}); err != nil {
		return nil, page.Scanned, page.Widened, err
	}

	return &Candidate{
		Profile:       best,
		DistanceMiles: requester.DistanceMilesTo(best),
		Score:         bestScore,
	}, page.Scanned, page.Widened, nil
}

// pickBest filters the retrieved pool down to mutually eligible, unseen,
// unblocked candidates and returns the top-scored survivor.
func (s *service) pickBest(ctx context.Context, requester *profile.Profile, pool []*profile.Profile, seen map[string]bool) (*profile.Profile, int, error) {
	var best *profile.Profile
	bestScore := -1

	for _, cand := range pool {
		if seen[cand.UserID] {
			continue
		}

		// Blocks are checked before any preference evaluation.
		blocked, err := s.repo.IsBlockedEither(ctx, requester.UserID, cand.UserID)
		if err != nil {
			return nil, 0, err
		}
		if blocked {
			continue
		}

		excluded, err := s.repo.PairExcluded(ctx, requester.UserID, cand.UserID)
		if err != nil {
			return nil, 0, err
		}
		if excluded {
			continue
		}

		if ok, _ := MutuallyEligible(requester, cand); !ok {
			continue
		}

		score := Score(requester, cand)
		RecordCompatibilityScore(score)
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

func (s *service) AcceptMatch(ctx context.Context, requesterID, candidateID string) (*AcceptResult, error) {
	// Lifecycle transitions always act on fresh reads, never the cache.
	if _, err := s.freshProfile(ctx, requesterID); err != nil {
		return nil, err
	}
	if _, err := s.freshProfile(ctx, candidateID); err != nil {
		return nil, err
	}

	rec, transitioned, err := s.repo.MarkAccepted(ctx, requesterID, candidateID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("accept with no presentation: %w", ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	if !transitioned {
		// Repeated identical calls against a resolved pair report current
		// state; anything else is a wrong-state transition.
		switch rec.State {
		case StateAccepted:
			mutual, err := s.repo.IsMutual(ctx, requesterID, candidateID)
			if err != nil {
				return nil, err
			}
			state := StateAccepted
			if mutual {
				state = StateMutual
			}
			return &AcceptResult{Mutual: mutual, State: state}, nil
		case StateMutual:
			return &AcceptResult{Mutual: true, State: StateMutual}, nil
		default:
			return nil, fmt.Errorf("accept from state %q: %w", rec.State, ErrInvalidState)
		}
	}

	if err := s.repo.AppendHistory(ctx, &HistoryEntry{
		RequesterID: requesterID,
		CandidateID: candidateID,
		Action:      HistoryAccepted,
	}); err != nil {
		return nil, err
	}

	reverse, err := s.repo.GetRecord(ctx, candidateID, requesterID)
	if errors.Is(err, ErrRecordNotFound) {
		return &AcceptResult{Mutual: false, State: StateAccepted}, nil
	}
	if err != nil {
		return nil, err
	}

	if reverse.State != StateAccepted && reverse.State != StateMutual {
		return &AcceptResult{Mutual: false, State: StateAccepted}, nil
	}

	created, err := s.repo.CompleteMutual(ctx, requesterID, candidateID)
	if err != nil {
		return nil, err
	}
	if created {
		RecordMutualMatch()
		s.invalidate(ctx, requesterID)
		s.invalidate(ctx, candidateID)
	}

	return &AcceptResult{Mutual: true, State: StateMutual}, nil
}

func (s *service) PassMatch(ctx context.Context, requesterID, candidateID string) (MatchState, error) {
	if _, err := s.freshProfile(ctx, requesterID); err != nil {
		return "", err
	}
	if _, err := s.freshProfile(ctx, candidateID); err != nil {
		return "", err
	}

	rec, transitioned, err := s.repo.MarkPassed(ctx, requesterID, candidateID)
	if errors.Is(err, ErrRecordNotFound) {
		return "", fmt.Errorf("pass with no presentation: %w", ErrInvalidState)
	}
	if err != nil {
		return "", err
	}

	if !transitioned {
		if rec.State == StatePassed {
			return StatePassed, nil
		}
		return "", fmt.Errorf("pass from state %q: %w", rec.State, ErrInvalidState)
	}

	if err := s.repo.AppendHistory(ctx, &HistoryEntry{
		RequesterID: requesterID,
		CandidateID: candidateID,
		Action:      HistoryPassed,
	}); err != nil {
		return "", err
	}

	return StatePassed, nil
}

func (s *service) ScoreBatch(ctx context.Context, requesterID string, candidateIDs []string) ([]ScoreEntry, error) {
	// Scoring tolerates slightly stale profiles, so the cache serves here.
	requester, err := s.cachedProfile(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	entries := make([]ScoreEntry, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		cand, err := s.cachedProfile(ctx, id)
		if err != nil {
			// One missing candidate never fails the batch.
			if errors.Is(err, ErrProfileNotFound) {
				continue
			}
			return nil, err
		}

		score := Score(requester, cand)
		RecordCompatibilityScore(score)
		entries = append(entries, ScoreEntry{UserID: id, Score: score})
	}

	return entries, nil
}

func (s *service) ExpireStalePresentations(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpirePresentations(ctx, time.Now().Add(-s.presentationTTL))
	if err != nil {
		return 0, err
	}

	if n > 0 {
		RecordExpiredPresentations(n)
	}
	return n, nil
}

// freshProfile reads straight from the store, bypassing the cache.
func (s *service) freshProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrProfileNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// cachedProfile serves from the cache when possible and fills it on a miss.
func (s *service) cachedProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if s.cache == nil {
		return s.freshProfile(ctx, userID)
	}

	if p, err := s.cache.Get(ctx, userID); err == nil {
		return p, nil
	}

	p, err := s.freshProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, p); err != nil {
		log.Printf("profile cache fill failed for %s: %v", userID, err)
	}

	return p, nil
}

func (s *service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		log.Printf("profile cache invalidate failed for %s: %v", userID, err)
	}
}
