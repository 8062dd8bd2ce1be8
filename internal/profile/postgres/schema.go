package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    id                  TEXT         PRIMARY KEY,
    comprehension_break TEXT         NOT NULL,
    learning_preference TEXT         NOT NULL,
    listening_thought   TEXT         NOT NULL DEFAULT '',
    struggle_note       TEXT         NOT NULL DEFAULT '',
    ui_preferences      JSONB        NOT NULL DEFAULT '{}'::jsonb,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_profiles_created_at
    ON profiles (created_at);
`

// Migrate creates the profiles table and its indexes. Every statement is
// idempotent, so Migrate is safe to run on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlProfiles); err != nil {
		return fmt.Errorf("postgres migrate: profiles: %w", err)
	}
	return nil
}
