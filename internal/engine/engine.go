// Package engine defines the pure-function game-engine contract that the
// match actor drives. The orchestration core never reasons about rules; it
// only calls Apply, LegalMoves, IsTerminal and CurrentPlayer against
// whatever State an Engine implementation hands back.
package engine

import (
	"encoding/json"
	"errors"
)

// ErrIllegalMove is wrapped by engine implementations to signal a move that
// failed a rules check (as opposed to a schema check, which the actor
// performs before ever calling Apply).
var ErrIllegalMove = errors.New("illegal move")

// Move is the opaque, tagged action an agent submits. Action-specific fields
// live in Payload and are interpreted only by the concrete Engine
// implementation; the orchestration core validates only the discriminant.
type Move struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"-"`
}

// MarshalJSON flattens Payload's keys as siblings of "action" so the wire
// shape is {"action":"move","from":1,"to":2,...} rather than a nested
// object, matching the documented move envelope shape.
func (m Move) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Payload)+1)
	for k, v := range m.Payload {
		out[k] = v
	}
	out["action"] = m.Action
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: "action" is lifted into the
// Action field and every other key becomes part of Payload. The schema
// check inspects only Action; action-specific fields stay opaque in
// Payload.
func (m *Move) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	action, _ := raw["action"].(string)
	delete(raw, "action")
	m.Action = action
	m.Payload = raw
	return nil
}

// Known move discriminants. The orchestration core validates a submitted
// move's Action against this set before ever invoking Engine.Apply.
const (
	ActionMove    = "move"
	ActionAttack  = "attack"
	ActionRecruit = "recruit"
	ActionFortify = "fortify"
	ActionUpgrade = "upgrade"
	ActionEndTurn = "end_turn"
	ActionPass    = "pass"
)

var knownActions = map[string]struct{}{
	ActionMove:    {},
	ActionAttack:  {},
	ActionRecruit: {},
	ActionFortify: {},
	ActionUpgrade: {},
	ActionEndTurn: {},
	ActionPass:    {},
}

// KnownAction reports whether action is a known move discriminant. The
// match actor uses this for submitMove's schema check before ever calling
// into the engine.
func KnownAction(action string) bool {
	_, ok := knownActions[action]
	return ok
}

// Event is an opaque value emitted by the engine alongside a state
// transition. The core forwards it verbatim to subscribers inside an
// engine_events envelope; it never inspects Payload.
type Event struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Termination describes the outcome of IsTerminal. Winner is empty for a
// draw.
type Termination struct {
	Ended  bool
	Winner string
	Reason string
}

// ApplyResult is the return shape of Apply on success.
type ApplyResult struct {
	State  State
	Events []Event
}

// State is the opaque per-match game state an Engine produces and consumes.
// The orchestration core never inspects its fields; it is serialized to
// JSON for persistence and for the state envelope sent to clients.
type State interface {
	// MarshalState returns a JSON-serializable snapshot of the state for
	// persistence and for the wire "state" envelope.
	MarshalState() (any, error)
}

// Engine is the pure-function game contract the match actor drives. A single
// Engine value is stateless between calls: all mutable state lives in the
// State values it produces.
type Engine interface {
	// InitialState deterministically derives a starting State from seed and
	// the two participating agent ids (seat 0, then seat 1).
	InitialState(seed int64, players [2]string) (State, error)

	// LegalMoves enumerates moves the current player may submit. Used by
	// callers that want to validate client-submitted moves are plausible
	// before ever reaching Apply; the actor itself relies on Apply's own
	// rejection for authoritative legality.
	LegalMoves(s State) []Move

	// Apply validates and applies move against s. It must not mutate s;
	// on success it returns a new State value and any engine events
	// produced. On rules failure it returns an error wrapping
	// ErrIllegalMove.
	Apply(s State, move Move) (ApplyResult, error)

	// IsTerminal reports whether s is a terminal state and, if so, the
	// winner (empty for a draw) and a human-readable reason.
	IsTerminal(s State) Termination

	// CurrentPlayer returns the agentId whose turn it is in s.
	CurrentPlayer(s State) string
}
