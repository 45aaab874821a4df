package matching

import (
	"time"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// MatchState is the per-direction lifecycle state of a pair.
type MatchState string

const (
	StatePresented MatchState = "presented"
	StateAccepted  MatchState = "accepted"
	StatePassed    MatchState = "passed"
	StateMutual    MatchState = "mutual"

	// StateExpired releases the requester's active-presentation slot when a
	// presentation goes unanswered past its TTL. The candidate stays in the
	// requester's history and is never re-presented.
	StateExpired MatchState = "expired"
)

// Resolved reports whether the direction has left the presented state.
func (s MatchState) Resolved() bool {
	return s == StateAccepted || s == StatePassed || s == StateMutual
}

// MatchRecord is one direction of a pair: requester's standing decision on
// candidate. Becomes immutable once mutual.
type MatchRecord struct {
	RequesterID string     `json:"requester_id" db:"requester_id"`
	CandidateID string     `json:"candidate_id" db:"candidate_id"`
	State       MatchState `json:"state" db:"state"`
	Score       int        `json:"score" db:"score"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// HistoryEntry is an append-only record of a lifecycle action, used to never
// re-present a candidate the requester has already seen.
type HistoryEntry struct {
	ID          string    `json:"id" db:"id"`
	RequesterID string    `json:"requester_id" db:"requester_id"`
	CandidateID string    `json:"candidate_id" db:"candidate_id"`
	Action      string    `json:"action" db:"action"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	HistoryPresented = "presented"
	HistoryAccepted  = "accepted"
	HistoryPassed    = "passed"
)

// Candidate is the ephemeral, computed view returned by a retrieval: a
// profile plus distance and score relative to one specific requester.
// Never persisted beyond the presentation record.
type Candidate struct {
	Profile       *profile.Profile `json:"profile"`
	DistanceMiles float64          `json:"distance_miles"`
	Score         int              `json:"score"`
}

// AcceptResult reports the pair state after an accept.
type AcceptResult struct {
	Mutual bool       `json:"mutual"`
	State  MatchState `json:"state"`
}

// QueueAction names the lifecycle action a queue message carries.
type QueueAction string

const (
	ActionFindNext   QueueAction = "find-next"
	ActionAccept     QueueAction = "accept"
	ActionPass       QueueAction = "pass"
	ActionBatchScore QueueAction = "batch-score"
)

// QueueMessage is the body of one deferred lifecycle request.
type QueueMessage struct {
	MessageID    string      `json:"message_id"`
	RequesterID  string      `json:"requester_id"`
	Action       QueueAction `json:"action"`
	CandidateID  string      `json:"candidate_id,omitempty"`
	CandidateIDs []string    `json:"candidate_ids,omitempty"`
}
