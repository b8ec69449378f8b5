// Package postgres implements ports.Store against PostgreSQL via pgx's
// connection pool.
package postgres

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fightclaw/internal/ports"
)

// Store is a pgx-backed ports.Store. The zero value is not usable; build
// one with New.
type Store struct {
	pool   *pgxpool.Pool
	pepper string
}

var _ ports.Store = (*Store)(nil)

// New connects to dsn, applies the schema, and returns a ready Store.
// pepper is mixed into every API key hash so a leaked
// database dump alone cannot be used to forge bearer tokens.
func New(ctx context.Context, dsn, pepper string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, pepper: pepper}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) RegisterAgent(ctx context.Context, name string) (ports.Agent, error) {
	id := uuid.Must(uuid.NewV4()).String()
	claimCode := uuid.Must(uuid.NewV4()).String()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (id, name, claim_code) VALUES ($1, $2, $3)`,
		id, name, claimCode,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.Agent{}, ports.ErrNameInUse
		}
		return ports.Agent{}, fmt.Errorf("postgres: insert agent: %w", err)
	}
	return s.GetAgentByID(ctx, id)
}

func (s *Store) VerifyAgent(ctx context.Context, claimCode string) (ports.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, verified_at FROM agents WHERE claim_code = $1`, claimCode)
	var id string
	var verifiedAt *time.Time
	if err := row.Scan(&id, &verifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Agent{}, ports.ErrNotFound
		}
		return ports.Agent{}, fmt.Errorf("postgres: lookup claim code: %w", err)
	}
	if verifiedAt != nil {
		return ports.Agent{}, ports.ErrAlreadyVerified
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE agents SET verified_at = now() WHERE id = $1`, id,
	); err != nil {
		return ports.Agent{}, fmt.Errorf("postgres: mark verified: %w", err)
	}
	return s.GetAgentByID(ctx, id)
}

func (s *Store) GetAgentByID(ctx context.Context, agentID string) (ports.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, claim_code, created_at, verified_at FROM agents WHERE id = $1`, agentID)
	var a ports.Agent
	if err := row.Scan(&a.ID, &a.Name, &a.ClaimCode, &a.CreatedAt, &a.VerifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Agent{}, ports.ErrNotFound
		}
		return ports.Agent{}, fmt.Errorf("postgres: get agent: %w", err)
	}
	return a, nil
}

func (s *Store) IssueAPIKey(ctx context.Context, agentID string) (string, ports.ApiKey, error) {
	plaintext, err := randomKey()
	if err != nil {
		return "", ports.ApiKey{}, fmt.Errorf("postgres: generate key: %w", err)
	}
	id := uuid.Must(uuid.NewV4()).String()
	hash := s.hashKey(plaintext)
	prefix := plaintext[:8]

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, agent_id, key_hash, key_prefix) VALUES ($1, $2, $3, $4)`,
		id, agentID, hash, prefix,
	); err != nil {
		return "", ports.ApiKey{}, fmt.Errorf("postgres: insert api key: %w", err)
	}

	return plaintext, ports.ApiKey{
		ID: id, AgentID: agentID, KeyHash: hash, KeyPrefix: prefix, CreatedAt: time.Now(),
	}, nil
}

func (s *Store) AuthenticateAPIKey(ctx context.Context, presentedKey string) (ports.Agent, error) {
	hash := s.hashKey(presentedKey)
	row := s.pool.QueryRow(ctx,
		`SELECT agent_id FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL`, hash)
	var agentID string
	if err := row.Scan(&agentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Agent{}, ports.ErrNotFound
		}
		return ports.Agent{}, fmt.Errorf("postgres: authenticate key: %w", err)
	}
	return s.GetAgentByID(ctx, agentID)
}

func (s *Store) RecordMatchCreated(ctx context.Context, matchID string, seed int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, status, seed) VALUES ($1, 'active', $2)`, matchID, seed)
	if err != nil {
		return fmt.Errorf("postgres: insert match: %w", err)
	}
	return nil
}

func (s *Store) RecordMatchPlayers(ctx context.Context, matchID string, players []ports.MatchPlayer) error {
	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(
			`INSERT INTO match_players (match_id, agent_id, seat, starting_rating, prompt_version_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			matchID, p.AgentID, p.Seat, p.StartingRating, p.PromptVersionID,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range players {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert match players: %w", err)
		}
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, matchID string, turn int, eventType string, payload []byte) (int64, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO match_events (match_id, turn, event_type, payload) VALUES ($1, $2, $3, $4) RETURNING id`,
		matchID, turn, eventType, payload,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: append event: %w", err)
	}
	return id, nil
}

// RecordMatchResult writes the match_results row, the matches row's
// terminal fields, and every leaderboard upsert as one transaction, so a
// match never ends with half its bookkeeping applied.
func (s *Store) RecordMatchResult(ctx context.Context, result ports.MatchResult, updates []ports.RatingUpdate, finalStateVersion int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin result tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO match_results (match_id, winner_agent_id, loser_agent_id, reason) VALUES ($1, $2, $3, $4)`,
		result.MatchID, result.WinnerAgentID, result.LoserAgentID, result.Reason,
	); err != nil {
		return fmt.Errorf("postgres: insert match result: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE matches SET status = 'ended', ended_at = now(), winner_agent_id = $2,
		 end_reason = $3, final_state_version = $4 WHERE id = $1`,
		result.MatchID, result.WinnerAgentID, result.Reason, finalStateVersion,
	); err != nil {
		return fmt.Errorf("postgres: mark match ended: %w", err)
	}

	for _, u := range updates {
		winDelta, lossDelta := 0, 0
		switch u.Outcome {
		case ports.OutcomeWin:
			winDelta = 1
		case ports.OutcomeLoss:
			lossDelta = 1
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO leaderboard (agent_id, rating, wins, losses, games_played, updated_at)
			 VALUES ($1, $2, $3, $4, 1, now())
			 ON CONFLICT (agent_id) DO UPDATE SET
			   rating = EXCLUDED.rating,
			   wins = leaderboard.wins + $3,
			   losses = leaderboard.losses + $4,
			   games_played = leaderboard.games_played + 1,
			   updated_at = now()`,
			u.AgentID, u.NewRating, winDelta, lossDelta,
		); err != nil {
			return fmt.Errorf("postgres: upsert leaderboard: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit result tx: %w", err)
	}
	return nil
}

func (s *Store) LoadEventLog(ctx context.Context, matchID string, limit int) ([]ports.MatchEventRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, match_id, turn, ts, event_type, payload FROM match_events
		 WHERE match_id = $1 ORDER BY id DESC LIMIT $2`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: load event log: %w", err)
	}
	defer rows.Close()

	var out []ports.MatchEventRow
	for rows.Next() {
		var e ports.MatchEventRow
		if err := rows.Scan(&e.ID, &e.MatchID, &e.Turn, &e.Ts, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("postgres: scan event row: %w", err)
		}
		out = append(out, e)
	}
	// Reverse to ascending id order per the Store contract.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) GetRating(ctx context.Context, agentID string) (float64, error) {
	row := s.pool.QueryRow(ctx, `SELECT rating FROM leaderboard WHERE agent_id = $1`, agentID)
	var rating float64
	if err := row.Scan(&rating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 1500, nil
		}
		return 0, fmt.Errorf("postgres: get rating: %w", err)
	}
	return rating, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]ports.LeaderboardRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id, rating, wins, losses, games_played, updated_at
		 FROM leaderboard ORDER BY rating DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var out []ports.LeaderboardRow
	for rows.Next() {
		var r ports.LeaderboardRow
		if err := rows.Scan(&r.AgentID, &r.Rating, &r.Wins, &r.Losses, &r.GamesPlayed, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (ports.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, seed, created_at, ended_at, winner_agent_id, end_reason, final_state_version
		 FROM matches WHERE id = $1`, matchID)
	var m ports.Match
	var status string
	if err := row.Scan(&m.ID, &status, &m.Seed, &m.CreatedAt, &m.EndedAt, &m.WinnerAgentID, &m.EndReason, &m.FinalStateVersion); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Match{}, ports.ErrNotFound
		}
		return ports.Match{}, fmt.Errorf("postgres: get match: %w", err)
	}
	m.Status = ports.MatchStatus(status)
	return m, nil
}

func (s *Store) hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(s.pepper + plaintext))
	return hex.EncodeToString(sum[:])
}

func randomKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "fc_sk_" + hex.EncodeToString(buf), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
