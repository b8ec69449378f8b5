package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup with IF NOT EXISTS rather
// than through a separate migrate binary.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id          TEXT PRIMARY KEY,
	name        TEXT UNIQUE NOT NULL,
	claim_code  TEXT UNIQUE NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	verified_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL REFERENCES agents(id),
	key_hash   TEXT UNIQUE NOT NULL,
	key_prefix TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_api_keys_agent_id ON api_keys(agent_id);

CREATE TABLE IF NOT EXISTS matches (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	seed                BIGINT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at            TIMESTAMPTZ,
	winner_agent_id     TEXT,
	end_reason          TEXT,
	final_state_version BIGINT
);

CREATE TABLE IF NOT EXISTS match_players (
	match_id         TEXT NOT NULL REFERENCES matches(id),
	agent_id         TEXT NOT NULL REFERENCES agents(id),
	seat             INT NOT NULL,
	starting_rating  DOUBLE PRECISION NOT NULL,
	prompt_version_id TEXT,
	PRIMARY KEY (match_id, agent_id),
	UNIQUE (match_id, seat)
);

CREATE TABLE IF NOT EXISTS match_events (
	id         BIGSERIAL PRIMARY KEY,
	match_id   TEXT NOT NULL REFERENCES matches(id),
	turn       INT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL DEFAULT now(),
	event_type TEXT NOT NULL,
	payload    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_events_match_id ON match_events(match_id, id);
CREATE INDEX IF NOT EXISTS idx_match_events_turn ON match_events(match_id, turn);
CREATE INDEX IF NOT EXISTS idx_match_events_ts ON match_events(match_id, ts);

CREATE TABLE IF NOT EXISTS match_results (
	match_id        TEXT PRIMARY KEY REFERENCES matches(id),
	winner_agent_id TEXT,
	loser_agent_id  TEXT,
	reason          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_match_results_created_at ON match_results(created_at DESC);

CREATE TABLE IF NOT EXISTS leaderboard (
	agent_id     TEXT PRIMARY KEY REFERENCES agents(id),
	rating       DOUBLE PRECISION NOT NULL DEFAULT 1500,
	wins         INT NOT NULL DEFAULT 0,
	losses       INT NOT NULL DEFAULT 0,
	games_played INT NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_leaderboard_rating ON leaderboard(rating DESC);
`

// runMigrations applies schema. Safe to run on every process start.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}
