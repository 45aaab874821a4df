package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository owns match records, history entries and block reads. The pair is
// the unit of mutual exclusion: every state transition is a conditional write
// keyed on (requester_id, candidate_id) so concurrent callers race safely.
type Repository interface {
	// GetRecord reads one directional record. Returns ErrRecordNotFound.
	GetRecord(ctx context.Context, requesterID, candidateID string) (*MatchRecord, error)

	// GetUnresolvedPresentation returns the requester's open presentation, if
	// any. Enforces one active match per user at presentation time.
	GetUnresolvedPresentation(ctx context.Context, requesterID string) (*MatchRecord, error)

	// CreatePresentation writes the presented record. Idempotent: a second
	// call for the same unresolved pair returns the existing record with
	// created=false instead of duplicating it. At most one presentation per
	// requester may be open; when another is, that record comes back with
	// created=false regardless of the candidate asked for.
	CreatePresentation(ctx context.Context, requesterID, candidateID string, score int) (rec *MatchRecord, created bool, err error)

	// MarkAccepted transitions presented->accepted. When the record is in any
	// other state it is returned unchanged with transitioned=false so the
	// service can distinguish idempotent repeats from invalid transitions.
	MarkAccepted(ctx context.Context, requesterID, candidateID string) (rec *MatchRecord, transitioned bool, err error)

	// MarkPassed transitions presented->passed, same contract as MarkAccepted.
	MarkPassed(ctx context.Context, requesterID, candidateID string) (rec *MatchRecord, transitioned bool, err error)

	// CompleteMutual promotes both accepted directions to mutual, records the
	// pair-keyed mutual row and hides both profiles, as one transaction.
	// Returns created=false when another writer already completed the pair.
	CompleteMutual(ctx context.Context, userA, userB string) (created bool, err error)

	// IsMutual reports whether the canonical pair has a mutual record.
	IsMutual(ctx context.Context, userA, userB string) (bool, error)

	// PairExcluded reports whether the pair may never be presented again:
	// passed on either direction, or already mutual.
	PairExcluded(ctx context.Context, userA, userB string) (bool, error)

	// SeenCandidateIDs returns every candidate ever presented to the
	// requester, from the append-only history.
	SeenCandidateIDs(ctx context.Context, requesterID string) (map[string]bool, error)

	// AppendHistory appends one immutable history entry.
	AppendHistory(ctx context.Context, entry *HistoryEntry) error

	// IsBlockedEither reports whether a block exists in either direction.
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)

	// ExpirePresentations releases presentation slots older than the cutoff.
	ExpirePresentations(ctx context.Context, before time.Time) (int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates the Postgres-backed Repository. It shares the
// database with the profile store so the mutual transition and the visibility
// flip commit in a single transaction.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const recordColumns = `requester_id, candidate_id, state, score, created_at, updated_at`

func (r *postgresRepository) GetRecord(ctx context.Context, requesterID, candidateID string) (*MatchRecord, error) {
	var rec MatchRecord
	query := `SELECT ` + recordColumns + ` FROM match_records WHERE requester_id = $1 AND candidate_id = $2`

	err := r.db.GetContext(ctx, &rec, query, requesterID, candidateID)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match record: %w", err)
	}

	return &rec, nil
}

func (r *postgresRepository) GetUnresolvedPresentation(ctx context.Context, requesterID string) (*MatchRecord, error) {
	var rec MatchRecord
	query := `
		SELECT ` + recordColumns + `
		FROM match_records
		WHERE requester_id = $1 AND state = 'presented'
		ORDER BY created_at
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &rec, query, requesterID)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unresolved presentation: %w", err)
	}

	return &rec, nil
}

func (r *postgresRepository) CreatePresentation(ctx context.Context, requesterID, candidateID string, score int) (*MatchRecord, bool, error) {
	var rec MatchRecord
	query := `
		INSERT INTO match_records (requester_id, candidate_id, state, score)
		VALUES ($1, $2, 'presented', $3)
		ON CONFLICT (requester_id, candidate_id) DO NOTHING
		RETURNING ` + recordColumns

	err := r.db.GetContext(ctx, &rec, query, requesterID, candidateID, score)
	if err == nil {
		return &rec, true, nil
	}

	// The partial unique index on open presentations rejects a second
	// presented row for the requester; hand the open one back instead.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return r.openPresentation(ctx, requesterID)
	}

	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("create presentation: %w", err)
	}

	// Conflict on the pair key: the pair already has a record, return it
	// unchanged.
	existing, err := r.GetRecord(ctx, requesterID, candidateID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

func (r *postgresRepository) openPresentation(ctx context.Context, requesterID string) (*MatchRecord, bool, error) {
	open, err := r.GetUnresolvedPresentation(ctx, requesterID)
	if err != nil {
		return nil, false, err
	}
	return open, false, nil
}

func (r *postgresRepository) MarkAccepted(ctx context.Context, requesterID, candidateID string) (*MatchRecord, bool, error) {
	return r.transition(ctx, requesterID, candidateID, StateAccepted)
}

func (r *postgresRepository) MarkPassed(ctx context.Context, requesterID, candidateID string) (*MatchRecord, bool, error) {
	return r.transition(ctx, requesterID, candidateID, StatePassed)
}

// transition is the conditional write behind accept/pass: only a presented
// record moves, anything else is reported back untouched.
func (r *postgresRepository) transition(ctx context.Context, requesterID, candidateID string, to MatchState) (*MatchRecord, bool, error) {
	var rec MatchRecord
	query := `
		UPDATE match_records
		SET state = $3, updated_at = NOW()
		WHERE requester_id = $1 AND candidate_id = $2 AND state = 'presented'
		RETURNING ` + recordColumns

	err := r.db.GetContext(ctx, &rec, query, requesterID, candidateID, to)
	if err == nil {
		return &rec, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("transition match record: %w", err)
	}

	existing, err := r.GetRecord(ctx, requesterID, candidateID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *postgresRepository) CompleteMutual(ctx context.Context, userA, userB string) (bool, error) {
	user1, user2 := canonicalPair(userA, userB)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin mutual transaction: %w", err)
	}
	defer tx.Rollback()

	// First writer wins on the pair-keyed row; the second observes the
	// conflict and no-ops.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO mutual_matches (user1_id, user2_id)
		VALUES ($1, $2)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
	`, user1, user2)
	if err != nil {
		return false, fmt.Errorf("insert mutual match: %w", err)
	}

	inserted, _ := res.RowsAffected()
	if inserted == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE match_records
		SET state = 'mutual', updated_at = NOW()
		WHERE state = 'accepted'
		      AND ((requester_id = $1 AND candidate_id = $2)
		        OR (requester_id = $2 AND candidate_id = $1))
	`, userA, userB)
	if err != nil {
		return false, fmt.Errorf("promote records to mutual: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles SET visible = FALSE WHERE user_id IN ($1, $2)`, userA, userB)
	if err != nil {
		return false, fmt.Errorf("hide matched profiles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mutual transaction: %w", err)
	}

	return true, nil
}

func (r *postgresRepository) IsMutual(ctx context.Context, userA, userB string) (bool, error) {
	user1, user2 := canonicalPair(userA, userB)

	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM mutual_matches WHERE user1_id = $1 AND user2_id = $2)`,
		user1, user2)
	if err != nil {
		return false, fmt.Errorf("check mutual: %w", err)
	}

	return exists, nil
}

func (r *postgresRepository) PairExcluded(ctx context.Context, userA, userB string) (bool, error) {
	var excluded bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM match_records
			WHERE state = 'passed'
			      AND ((requester_id = $1 AND candidate_id = $2)
			        OR (requester_id = $2 AND candidate_id = $1))
		)
	`

	if err := r.db.GetContext(ctx, &excluded, query, userA, userB); err != nil {
		return false, fmt.Errorf("check pair exclusion: %w", err)
	}
	if excluded {
		return true, nil
	}

	return r.IsMutual(ctx, userA, userB)
}

func (r *postgresRepository) SeenCandidateIDs(ctx context.Context, requesterID string) (map[string]bool, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT candidate_id FROM match_history WHERE requester_id = $1`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list seen candidates: %w", err)
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}

	return seen, nil
}

func (r *postgresRepository) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO match_history (id, requester_id, candidate_id, action)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.RequesterID, entry.CandidateID, entry.Action).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	return nil
}

func (r *postgresRepository) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)
	`

	if err := r.db.GetContext(ctx, &exists, query, userA, userB); err != nil {
		return false, fmt.Errorf("check blocks: %w", err)
	}

	return exists, nil
}

func (r *postgresRepository) ExpirePresentations(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE match_records
		SET state = 'expired', updated_at = NOW()
		WHERE state = 'presented' AND created_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("expire presentations: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// canonicalPair orders two user ids so every pair has one identity.
func canonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
