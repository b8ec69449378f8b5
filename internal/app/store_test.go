package app

import (
	"context"
	"sync"

	"fightclaw/internal/ports"
)

// fakeStore is a minimal in-memory ports.Store for exercising MatchActor
// and Matchmaker without a database.
type fakeStore struct {
	mu       sync.Mutex
	ratings  map[string]float64
	events   []ports.MatchEventRow
	matches  map[string]ports.Match
	players  map[string][]ports.MatchPlayer
	results  []ports.MatchResult
	eventSeq int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ratings: make(map[string]float64),
		matches: make(map[string]ports.Match),
		players: make(map[string][]ports.MatchPlayer),
	}
}

func (s *fakeStore) RegisterAgent(ctx context.Context, name string) (ports.Agent, error) {
	return ports.Agent{}, nil
}

func (s *fakeStore) VerifyAgent(ctx context.Context, claimCode string) (ports.Agent, error) {
	return ports.Agent{}, nil
}

func (s *fakeStore) GetAgentByID(ctx context.Context, agentID string) (ports.Agent, error) {
	return ports.Agent{ID: agentID}, nil
}

func (s *fakeStore) IssueAPIKey(ctx context.Context, agentID string) (string, ports.ApiKey, error) {
	return "", ports.ApiKey{}, nil
}

func (s *fakeStore) AuthenticateAPIKey(ctx context.Context, presentedKey string) (ports.Agent, error) {
	return ports.Agent{}, ports.ErrNotFound
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
	return nil, nil
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
