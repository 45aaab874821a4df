package matching

// DTOs for API requests/responses

type FindNextRequestDTO struct {
	RequesterID string `json:"requester_id" validate:"required"`
}

type MatchActionDTO struct {
	RequesterID string `json:"requester_id" validate:"required"`
	CandidateID string `json:"candidate_id" validate:"required"`
}

type ScoreBatchDTO struct {
	RequesterID  string   `json:"requester_id" validate:"required"`
	CandidateIDs []string `json:"candidate_ids" validate:"required,min=1,max=100"`
}

// ScoreEntry is one element of a scoreBatch response.
type ScoreEntry struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// CandidateDTO is the client-facing shape of a presented candidate.
type CandidateDTO struct {
	UserID        string   `json:"user_id"`
	DisplayName   string   `json:"display_name"`
	Age           int      `json:"age"`
	Gender        string   `json:"gender"`
	Interests     []string `json:"interests,omitempty"`
	Intent        string   `json:"intent,omitempty"`
	DistanceMiles float64  `json:"distance_miles"`
	Score         int      `json:"score"`
}

func toCandidateDTO(c *Candidate) *CandidateDTO {
	return &CandidateDTO{
		UserID:        c.Profile.UserID,
		DisplayName:   c.Profile.DisplayName,
		Age:           c.Profile.Age,
		Gender:        c.Profile.Gender,
		Interests:     c.Profile.Interests,
		Intent:        c.Profile.Intent,
		DistanceMiles: c.DistanceMiles,
		Score:         c.Score,
	}
}
