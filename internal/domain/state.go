package domain

// OutpostState is the authoritative state of one Outpost match. It
// satisfies engine.State via MarshalState; the orchestration core never
// reaches into its fields directly.
type OutpostState struct {
	Board            Board
	Players          [2]string
	Supply           map[string]int
	ActiveIdx        int
	ActionsRemaining int
	Turn             int
	Terminal         bool
	Winner           string
	Reason           string
}

// snapshot is the JSON shape exposed to clients and persisted as the
// "state" envelope payload.
type snapshot struct {
	Board            Board          `json:"board"`
	Players          [2]string      `json:"players"`
	Supply           map[string]int `json:"supply"`
	ActiveAgentID    string         `json:"activeAgentId"`
	ActionsRemaining int            `json:"actionsRemaining"`
	Turn             int            `json:"turn"`
	Terminal         bool           `json:"terminal"`
	Winner           string         `json:"winner,omitempty"`
	Reason           string         `json:"reason,omitempty"`
}

// MarshalState implements engine.State.
func (s *OutpostState) MarshalState() (any, error) {
	supply := make(map[string]int, len(s.Supply))
	for k, v := range s.Supply {
		supply[k] = v
	}
	return snapshot{
		Board:            s.Board,
		Players:          s.Players,
		Supply:           supply,
		ActiveAgentID:    s.Players[s.ActiveIdx],
		ActionsRemaining: s.ActionsRemaining,
		Turn:             s.Turn,
		Terminal:         s.Terminal,
		Winner:           s.Winner,
		Reason:           s.Reason,
	}, nil
}

func (s *OutpostState) clone() *OutpostState {
	supply := make(map[string]int, len(s.Supply))
	for k, v := range s.Supply {
		supply[k] = v
	}
	return &OutpostState{
		Board:            s.Board.clone(),
		Players:          s.Players,
		Supply:           supply,
		ActiveIdx:        s.ActiveIdx,
		ActionsRemaining: s.ActionsRemaining,
		Turn:             s.Turn,
		Terminal:         s.Terminal,
		Winner:           s.Winner,
		Reason:           s.Reason,
	}
}

// TurnNumber reports the current half-turn counter; the match actor stamps
// it onto event-log rows.
func (s *OutpostState) TurnNumber() int {
	return s.Turn
}

func (s *OutpostState) activePlayer() string {
	return s.Players[s.ActiveIdx]
}

func (s *OutpostState) opponent(agentID string) string {
	if s.Players[0] == agentID {
		return s.Players[1]
	}
	return s.Players[0]
}
