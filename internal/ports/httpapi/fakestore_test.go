package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"fightclaw/internal/ports"
)

// fakeStore is a full in-memory ports.Store, like internal/app's test
// fake but with working auth so the httpapi tests can exercise
// register/verify/bearer end-to-end without a database.
type fakeStore struct {
	mu        sync.Mutex
	agents    map[string]ports.Agent
	names     map[string]string // name -> agentId
	claims    map[string]string // claimCode -> agentId
	keys      map[string]string // keyHash (== plaintext here) -> agentId
	ratings   map[string]float64
	matches   map[string]ports.Match
	players   map[string][]ports.MatchPlayer
	events    []ports.MatchEventRow
	results   []ports.MatchResult
	eventSeq  int64
	leaderRow map[string]ports.LeaderboardRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents:    make(map[string]ports.Agent),
		names:     make(map[string]string),
		claims:    make(map[string]string),
		keys:      make(map[string]string),
		ratings:   make(map[string]float64),
		matches:   make(map[string]ports.Match),
		players:   make(map[string][]ports.MatchPlayer),
		leaderRow: make(map[string]ports.LeaderboardRow),
	}
}

func (s *fakeStore) RegisterAgent(ctx context.Context, name string) (ports.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return ports.Agent{}, ports.ErrNameInUse
	}
	id := uuid.Must(uuid.NewV4()).String()
	claim := uuid.Must(uuid.NewV4()).String()
	agent := ports.Agent{ID: id, Name: name, ClaimCode: claim, CreatedAt: time.Now()}
	s.agents[id] = agent
	s.names[name] = id
	s.claims[claim] = id
	return agent, nil
}

func (s *fakeStore) VerifyAgent(ctx context.Context, claimCode string) (ports.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.claims[claimCode]
	if !ok {
		return ports.Agent{}, ports.ErrNotFound
	}
	agent := s.agents[id]
	if agent.VerifiedAt != nil {
		return ports.Agent{}, ports.ErrAlreadyVerified
	}
	now := time.Now()
	agent.VerifiedAt = &now
	s.agents[id] = agent
	return agent, nil
}

func (s *fakeStore) GetAgentByID(ctx context.Context, agentID string) (ports.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return ports.Agent{}, ports.ErrNotFound
	}
	return agent, nil
}

func (s *fakeStore) IssueAPIKey(ctx context.Context, agentID string) (string, ports.ApiKey, error) {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	plaintext := "fc_" + hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[plaintext] = agentID
	key := ports.ApiKey{
		ID: uuid.Must(uuid.NewV4()).String(), AgentID: agentID,
		KeyHash: plaintext, KeyPrefix: plaintext[:8], CreatedAt: time.Now(),
	}
	return plaintext, key, nil
}

func (s *fakeStore) AuthenticateAPIKey(ctx context.Context, presentedKey string) (ports.Agent, error) {
	s.mu.Lock()
	agentID, ok := s.keys[presentedKey]
	s.mu.Unlock()
	if !ok {
		return ports.Agent{}, ports.ErrNotFound
	}
	return s.GetAgentByID(ctx, agentID)
}

func (s *fakeStore) RecordMatchCreated(ctx context.Context, matchID string, seed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[matchID] = ports.Match{ID: matchID, Status: ports.MatchActive, Seed: seed}
	return nil
}

func (s *fakeStore) RecordMatchPlayers(ctx context.Context, matchID string, players []ports.MatchPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[matchID] = players
	return nil
}

func (s *fakeStore) AppendEvent(ctx context.Context, matchID string, turn int, eventType string, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	s.events = append(s.events, ports.MatchEventRow{ID: s.eventSeq, MatchID: matchID, Turn: turn, EventType: eventType, Payload: payload})
	return s.eventSeq, nil
}

func (s *fakeStore) RecordMatchResult(ctx context.Context, result ports.MatchResult, updates []ports.RatingUpdate, finalStateVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	for _, u := range updates {
		s.ratings[u.AgentID] = u.NewRating
		row := s.leaderRow[u.AgentID]
		row.AgentID = u.AgentID
		row.Rating = u.NewRating
		row.GamesPlayed++
		switch u.Outcome {
		case ports.OutcomeWin:
			row.Wins++
		case ports.OutcomeLoss:
			row.Losses++
		}
		row.UpdatedAt = time.Now()
		s.leaderRow[u.AgentID] = row
	}
	m := s.matches[result.MatchID]
	m.Status = ports.MatchEnded
	s.matches[result.MatchID] = m
	return nil
}

func (s *fakeStore) LoadEventLog(ctx context.Context, matchID string, limit int) ([]ports.MatchEventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.MatchEventRow
	for _, e := range s.events {
		if e.MatchID == matchID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) GetRating(ctx context.Context, agentID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.ratings[agentID]; ok {
		return r, nil
	}
	return 1500, nil
}

func (s *fakeStore) Leaderboard(ctx context.Context, limit int) ([]ports.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.LeaderboardRow, 0, len(s.leaderRow))
	for _, row := range s.leaderRow {
		out = append(out, row)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) GetMatch(ctx context.Context, matchID string) (ports.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return ports.Match{}, ports.ErrNotFound
	}
	return m, nil
}
