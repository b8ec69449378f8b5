package ports

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookup methods when no matching row exists.
var ErrNotFound = errors.New("ports: not found")

// ErrNameInUse is returned by RegisterAgent when the requested name is
// already taken.
var ErrNameInUse = errors.New("ports: agent name in use")

// Store is the narrow, operation-specific persistence surface the
// orchestration core depends on. Every method here is the only way
// any component touches the backing store; no caller issues ad-hoc queries.
type Store interface {
	// RegisterAgent inserts a new Agent with a fresh claim code and returns
	// it. Returns ErrNameInUse if name is already taken.
	RegisterAgent(ctx context.Context, name string) (Agent, error)

	// VerifyAgent marks the agent owning claimCode as verified. Returns
	// ErrNotFound if no agent holds claimCode, or ErrAlreadyVerified.
	VerifyAgent(ctx context.Context, claimCode string) (Agent, error)

	// GetAgentByID looks up an agent by id.
	GetAgentByID(ctx context.Context, agentID string) (Agent, error)

	// IssueAPIKey mints and stores a new API key for agentID, returning the
	// plaintext key (never stored) alongside the persisted record.
	IssueAPIKey(ctx context.Context, agentID string) (plaintext string, key ApiKey, err error)

	// AuthenticateAPIKey resolves a presented bearer key to its owning
	// agent. Returns ErrNotFound if the key is unknown, revoked, or
	// malformed.
	AuthenticateAPIKey(ctx context.Context, presentedKey string) (Agent, error)

	// RecordMatchCreated inserts a new active match row.
	RecordMatchCreated(ctx context.Context, matchID string, seed int64) error

	// RecordMatchPlayers inserts the two MatchPlayer rows for matchID. Best
	// effort: failures are logged by the caller and do not roll back the
	// in-memory pairing.
	RecordMatchPlayers(ctx context.Context, matchID string, players []MatchPlayer) error

	// AppendEvent appends one row to the append-only match_events log and
	// returns its assigned id.
	AppendEvent(ctx context.Context, matchID string, turn int, eventType string, payload []byte) (int64, error)

	// RecordMatchResult writes the match_results row and the leaderboard
	// updates for both players as one atomic batch.
	RecordMatchResult(ctx context.Context, result MatchResult, updates []RatingUpdate, finalStateVersion int64) error

	// LoadEventLog reads up to limit most-recent rows for matchID in
	// ascending id order. Read-only; used for replay and public log
	// endpoints.
	LoadEventLog(ctx context.Context, matchID string, limit int) ([]MatchEventRow, error)

	// GetRating returns agentID's current rating, defaulting to 1500 if the
	// agent has no leaderboard row yet.
	GetRating(ctx context.Context, agentID string) (float64, error)

	// Leaderboard returns the top rows ordered by rating descending.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)

	// GetMatch returns the persisted Match row.
	GetMatch(ctx context.Context, matchID string) (Match, error)
}

// ErrAlreadyVerified is returned by VerifyAgent when the claim code's agent
// has already been verified.
var ErrAlreadyVerified = errors.New("ports: agent already verified")
