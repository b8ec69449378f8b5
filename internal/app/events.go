package app

import "fightclaw/internal/engine"

// EventKind identifies the envelope variants streamed to subscribers.
type EventKind string

const (
	EventState        EventKind = "state"
	EventEngineEvents EventKind = "engine_events"
	EventYourTurn     EventKind = "your_turn"
	EventGameEnded    EventKind = "game_ended"
	EventAgentThought EventKind = "agent_thought"
	EventMatchFound   EventKind = "match_found"
	EventNoEvents     EventKind = "no_events"
)

// WireEvent is one envelope on a subscriber's stream. Recipients, when
// non-empty, restricts delivery to those agent ids (used only for
// your_turn); an empty Recipients means broadcast to everyone
// subscribed to the match, spectators included.
type WireEvent struct {
	Kind       EventKind
	Payload    any
	Recipients []string
}

// StatePayload is the "state" envelope: an immediate snapshot sent first to
// every new subscriber and again after every accepted move.
type StatePayload struct {
	EventVersion int    `json:"eventVersion"`
	Event        string `json:"event"`
	MatchID      string `json:"matchId"`
	State        any    `json:"state"`
}

// EngineEventsPayload is the "engine_events" envelope: the move that was
// applied plus the opaque events the engine emitted alongside it.
type EngineEventsPayload struct {
	EventVersion int            `json:"eventVersion"`
	Event        string         `json:"event"`
	MatchID      string         `json:"matchId"`
	StateVersion int64          `json:"stateVersion"`
	AgentID      string         `json:"agentId"`
	MoveID       string         `json:"moveId"`
	Move         engine.Move    `json:"move"`
	EngineEvents []engine.Event `json:"engineEvents"`
	TsUnixMilli  int64          `json:"ts"`
}

// YourTurnPayload is delivered only to the agent whose turn has just begun.
type YourTurnPayload struct {
	EventVersion int    `json:"eventVersion"`
	Event        string `json:"event"`
	MatchID      string `json:"matchId"`
	StateVersion int64  `json:"stateVersion"`
}

// GameEndedPayload terminates a subscriber's stream.
type GameEndedPayload struct {
	EventVersion      int    `json:"eventVersion"`
	Event             string `json:"event"`
	MatchID           string `json:"matchId"`
	Winner            string `json:"winner,omitempty"`
	Reason            string `json:"reason"`
	FinalStateVersion int64  `json:"finalStateVersion"`
}

// MatchFoundPayload is delivered via the matchmaker's waitEvents queue, not
// the match actor's subscription stream.
type MatchFoundPayload struct {
	Event    string `json:"event"`
	MatchID  string `json:"matchId"`
	Opponent string `json:"opponent"`
}

// NoEventsPayload is returned by waitEvents on timeout with an empty
// per-agent buffer.
type NoEventsPayload struct {
	Event string `json:"event"`
}
