package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a Store backed by the shared profiles table.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

const profileColumns = `
	user_id, display_name, gender, age, latitude, longitude, location_code,
	drinking, smoking, religion, children, exercise, intent, interests,
	visible, last_active,
	interested_in, pref_min_age, pref_max_age, pref_max_distance,
	pref_drinking, pref_smoking, pref_religion, pref_children
`

func (s *postgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	p, err := scanProfile(s.db.QueryRowxContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

func (s *postgresStore) FindByLocationCodes(ctx context.Context, prefixes []string, f CandidateFilter) ([]*Profile, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}

	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = p + "%"
	}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE visible = TRUE
		      AND user_id <> $1
		      AND ($2 = '' OR gender = $2)
		      AND last_active >= $3
		      AND location_code LIKE ANY($4)
		ORDER BY last_active DESC, user_id
		OFFSET $5 LIMIT $6
	`

	rows, err := s.db.QueryxContext(ctx, query,
		f.ExcludeUserID, f.Gender, f.ActiveSince, pq.Array(patterns), f.Offset, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("find by location codes: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (s *postgresStore) ScanVisible(ctx context.Context, f CandidateFilter) ([]*Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE visible = TRUE
		      AND user_id <> $1
		      AND ($2 = '' OR gender = $2)
		      AND last_active >= $3
		ORDER BY last_active DESC, user_id
		OFFSET $4 LIMIT $5
	`

	rows, err := s.db.QueryxContext(ctx, query,
		f.ExcludeUserID, f.Gender, f.ActiveSince, f.Offset, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("scan visible: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (s *postgresStore) SetVisibility(ctx context.Context, userID string, visible bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET visible = $2 WHERE user_id = $1`, userID, visible)
	if err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var interests pq.StringArray

	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Gender, &p.Age,
		&p.Latitude, &p.Longitude, &p.LocationCode,
		&p.Drinking, &p.Smoking, &p.Religion, &p.Children, &p.Exercise,
		&p.Intent, &interests, &p.Visible, &p.LastActive,
		&p.Preferences.InterestedIn,
		&p.Preferences.MinAge, &p.Preferences.MaxAge, &p.Preferences.MaxDistanceMiles,
		&p.Preferences.Drinking, &p.Preferences.Smoking,
		&p.Preferences.Religion, &p.Preferences.Children,
	)
	if err != nil {
		return nil, err
	}

	p.Interests = []string(interests)
	return &p, nil
}

func collectProfiles(rows *sqlx.Rows) ([]*Profile, error) {
	var profiles []*Profile

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
