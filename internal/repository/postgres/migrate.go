package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schools (
		id VARCHAR(100) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		score BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		CONSTRAINT schools_score_bounds CHECK (score BETWEEN -1000000000000 AND 1000000000000)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(128) PRIMARY KEY,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		last_used_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		request_count BIGINT NOT NULL DEFAULT 0,
		friction_level INTEGER NOT NULL DEFAULT 0 CHECK (friction_level >= 0),
		blocked_until TIMESTAMP WITH TIME ZONE,
		last_friction_reason VARCHAR(64),
		last_captcha_solved_at TIMESTAMP WITH TIME ZONE,
		rate_limited_at TIMESTAMP WITH TIME ZONE,
		captcha_failures INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schools_score ON schools(score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
}

// Migrate creates the tables the service needs if they do not exist yet
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
