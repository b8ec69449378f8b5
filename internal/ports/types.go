// Package ports defines the data model entities and the narrow persistence
// interface the orchestration core depends on. Concrete adapters (postgres,
// or an in-memory fake for tests) live in subpackages and satisfy Store.
package ports

import "time"

// Agent is a registered identity that submits moves, authenticated by an
// API key. Per the data model, an agent with VerifiedAt == nil may not
// enter the queue or submit moves.
type Agent struct {
	ID         string
	Name       string
	ClaimCode  string
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

// Verified reports whether the agent has passed admin verification.
func (a Agent) Verified() bool {
	return a.VerifiedAt != nil
}

// ApiKey is a bearer credential hashing to a single agent.
type ApiKey struct {
	ID        string
	AgentID   string
	KeyHash   string
	KeyPrefix string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the key has been revoked.
func (k ApiKey) Revoked() bool {
	return k.RevokedAt != nil
}

// MatchStatus is the lifecycle status of a Match row.
type MatchStatus string

const (
	MatchActive MatchStatus = "active"
	MatchEnded  MatchStatus = "ended"
)

// Match is the persisted record of one match's lifecycle, independent of
// the live MatchActor's in-memory engine state.
type Match struct {
	ID                string
	Status            MatchStatus
	Seed              int64
	CreatedAt         time.Time
	EndedAt           *time.Time
	WinnerAgentID     *string
	EndReason         *string
	FinalStateVersion *int64
}

// MatchPlayer records one agent's seat and starting rating in a match.
// Exactly two rows exist per matchId, unique on (MatchID, Seat).
type MatchPlayer struct {
	MatchID         string
	AgentID         string
	Seat            int
	StartingRating  float64
	PromptVersionID *string
}

// MatchEventRow is one row of the append-only match_events log.
type MatchEventRow struct {
	ID        int64
	MatchID   string
	Turn      int
	Ts        time.Time
	EventType string
	Payload   []byte
}

// MatchResult is written once at end-of-match.
type MatchResult struct {
	MatchID       string
	WinnerAgentID *string
	LoserAgentID  *string
	Reason        string
	CreatedAt     time.Time
}

// LeaderboardRow is one agent's ranking record.
type LeaderboardRow struct {
	AgentID     string    `json:"agentId"`
	Rating      float64   `json:"rating"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	GamesPlayed int       `json:"gamesPlayed"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Outcome classifies one agent's result in a finished match, for the
// leaderboard upsert driven by RecordMatchResult.
type Outcome int

const (
	OutcomeLoss Outcome = iota
	OutcomeWin
	OutcomeDraw
)

// RatingUpdate is one agent's post-match rating, computed by
// internal/ratings and applied atomically alongside the MatchResult row.
type RatingUpdate struct {
	AgentID   string
	NewRating float64
	Outcome   Outcome
}
