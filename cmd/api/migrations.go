// cmd/api/migrations.go
// Schema setup for the match proposal service

package main

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// migrations run in order at startup; every statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id           TEXT PRIMARY KEY,
		display_name      TEXT NOT NULL DEFAULT '',
		gender            TEXT NOT NULL DEFAULT '',
		age               INT NOT NULL DEFAULT 0,
		latitude          DOUBLE PRECISION,
		longitude         DOUBLE PRECISION,
		location_code     TEXT NOT NULL DEFAULT '',
		drinking          TEXT NOT NULL DEFAULT '',
		smoking           TEXT NOT NULL DEFAULT '',
		religion          TEXT NOT NULL DEFAULT '',
		children          TEXT NOT NULL DEFAULT '',
		exercise          TEXT NOT NULL DEFAULT '',
		intent            TEXT NOT NULL DEFAULT '',
		interests         TEXT[] NOT NULL DEFAULT '{}',
		visible           BOOLEAN NOT NULL DEFAULT TRUE,
		last_active       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		interested_in     TEXT NOT NULL DEFAULT '',
		pref_min_age      INT NOT NULL DEFAULT 0,
		pref_max_age      INT NOT NULL DEFAULT 0,
		pref_max_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
		pref_drinking     TEXT NOT NULL DEFAULT '',
		pref_smoking      TEXT NOT NULL DEFAULT '',
		pref_religion     TEXT NOT NULL DEFAULT '',
		pref_children     TEXT NOT NULL DEFAULT ''
	)`,

	// text_pattern_ops so the location-code prefix queries use the index
	`CREATE INDEX IF NOT EXISTS idx_profiles_location_code
		ON profiles (location_code text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_visible_active
		ON profiles (visible, last_active DESC)`,

	`CREATE TABLE IF NOT EXISTS match_records (
		requester_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		state        TEXT NOT NULL,
		score        INT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (requester_id, candidate_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_match_records_state
		ON match_records (requester_id, state)`,

	// one open presentation per requester, enforced by the database rather
	// than by the read-then-write in the service
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_match_records_one_presented
		ON match_records (requester_id) WHERE state = 'presented'`,

	// user1_id < user2_id always; the primary key is what makes mutual
	// creation exactly-once under concurrent accepts
	`CREATE TABLE IF NOT EXISTS mutual_matches (
		user1_id   TEXT NOT NULL,
		user2_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user1_id, user2_id)
	)`,

	`CREATE TABLE IF NOT EXISTS match_history (
		id           UUID PRIMARY KEY,
		requester_id TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		action       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_match_history_requester
		ON match_history (requester_id)`,

	`CREATE TABLE IF NOT EXISTS blocks (
		blocker_id TEXT NOT NULL,
		blocked_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (blocker_id, blocked_id)
	)`,
}

// runMigrations applies the schema at startup
func runMigrations(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("Applied %d schema migrations", len(migrations))
	return nil
}
