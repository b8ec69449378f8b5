// Package domain implements Outpost, the reference engine shipped to
// exercise the orchestration core's full move vocabulary. Outpost's rules
// are deliberately simple; only its conformance to engine.Engine matters to
// the tests in internal/app.
package domain

import (
	"fmt"

	"fightclaw/internal/engine"
)

// Outpost is the stateless engine implementation; all game state lives in
// *OutpostState values it produces and consumes.
type Outpost struct{}

var _ engine.Engine = Outpost{}

// InitialState builds the starting state for a fresh match: a deterministic
// ring board, starting garrisons at opposite zones, and starting supply for
// both players.
func (Outpost) InitialState(seed int64, players [2]string) (engine.State, error) {
	if players[0] == "" || players[1] == "" || players[0] == players[1] {
		return nil, fmt.Errorf("%w: two distinct players required", engine.ErrIllegalMove)
	}
	board := NewBoard(seed)

	home0 := 0
	home1 := ZoneCount / 2
	board.Zones[home0].Owner = players[0]
	board.Zones[home0].Garrison = startingGarrison
	board.Zones[home1].Owner = players[1]
	board.Zones[home1].Garrison = startingGarrison

	return &OutpostState{
		Board:            board,
		Players:          players,
		Supply:           map[string]int{players[0]: startingSupply, players[1]: startingSupply},
		ActiveIdx:        0,
		ActionsRemaining: actionsPerTurn,
		Turn:             0,
	}, nil
}

func cast(s engine.State) *OutpostState {
	os, ok := s.(*OutpostState)
	if !ok {
		panic("domain: foreign engine.State passed to Outpost")
	}
	return os
}

// LegalMoves enumerates moves the active player may submit from s.
func (o Outpost) LegalMoves(s engine.State) []engine.Move {
	os := cast(s)
	if os.Terminal {
		return nil
	}
	actor := os.activePlayer()
	var moves []engine.Move

	for _, z := range os.Board.Zones {
		if z.Owner != actor {
			continue
		}
		if os.Supply[actor] >= recruitCost {
			moves = append(moves, engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": z.ID}})
		}
		if os.Supply[actor] >= fortifyCost && z.DefenseTier < maxTier {
			moves = append(moves, engine.Move{Action: engine.ActionFortify, Payload: map[string]any{"zone": z.ID}})
		}
		if os.Supply[actor] >= upgradeCost && z.UnitQuality < maxTier {
			moves = append(moves, engine.Move{Action: engine.ActionUpgrade, Payload: map[string]any{"zone": z.ID}})
		}
		for _, nb := range z.Neighbors {
			target, _ := os.Board.zone(nb)
			if z.Garrison < 2 {
				continue
			}
			if target.Owner == actor {
				moves = append(moves, engine.Move{Action: engine.ActionMove, Payload: map[string]any{
					"from": z.ID, "to": nb, "amount": z.Garrison - 1,
				}})
			} else {
				moves = append(moves, engine.Move{Action: engine.ActionAttack, Payload: map[string]any{
					"from": z.ID, "to": nb, "amount": z.Garrison - 1,
				}})
			}
		}
	}
	moves = append(moves, engine.Move{Action: engine.ActionEndTurn})
	return moves
}

// Apply validates and applies move against s, returning a new state. s is
// never mutated.
func (o Outpost) Apply(s engine.State, move engine.Move) (engine.ApplyResult, error) {
	os := cast(s)
	if os.Terminal {
		return engine.ApplyResult{}, fmt.Errorf("%w: match already terminal", engine.ErrIllegalMove)
	}

	next := os.clone()
	actor := next.activePlayer()
	var events []engine.Event

	switch move.Action {
	case engine.ActionRecruit:
		zone, err := ownedZoneArg(next, move, actor, "zone")
		if err != nil {
			return engine.ApplyResult{}, err
		}
		if next.Supply[actor] < recruitCost {
			return engine.ApplyResult{}, fmt.Errorf("%w: insufficient supply to recruit", engine.ErrIllegalMove)
		}
		next.Supply[actor] -= recruitCost
		zone.Garrison++
		events = append(events, engine.Event{Kind: "recruited", Payload: map[string]any{"zone": zone.ID, "garrison": zone.Garrison}})

	case engine.ActionFortify:
		zone, err := ownedZoneArg(next, move, actor, "zone")
		if err != nil {
			return engine.ApplyResult{}, err
		}
		if next.Supply[actor] < fortifyCost || zone.DefenseTier >= maxTier {
			return engine.ApplyResult{}, fmt.Errorf("%w: cannot fortify further", engine.ErrIllegalMove)
		}
		next.Supply[actor] -= fortifyCost
		zone.DefenseTier++
		events = append(events, engine.Event{Kind: "fortified", Payload: map[string]any{"zone": zone.ID, "defenseTier": zone.DefenseTier}})

	case engine.ActionUpgrade:
		zone, err := ownedZoneArg(next, move, actor, "zone")
		if err != nil {
			return engine.ApplyResult{}, err
		}
		if next.Supply[actor] < upgradeCost || zone.UnitQuality >= maxTier {
			return engine.ApplyResult{}, fmt.Errorf("%w: cannot upgrade further", engine.ErrIllegalMove)
		}
		next.Supply[actor] -= upgradeCost
		zone.UnitQuality++
		events = append(events, engine.Event{Kind: "upgraded", Payload: map[string]any{"zone": zone.ID, "unitQuality": zone.UnitQuality}})

	case engine.ActionMove:
		from, to, amount, err := transferArgs(next, move, actor, false)
		if err != nil {
			return engine.ApplyResult{}, err
		}
		from.Garrison -= amount
		to.Garrison += amount
		events = append(events, engine.Event{Kind: "forces_moved", Payload: map[string]any{"from": from.ID, "to": to.ID, "amount": amount}})

	case engine.ActionAttack:
		from, to, amount, err := transferArgs(next, move, actor, true)
		if err != nil {
			return engine.ApplyResult{}, err
		}
		events = append(events, resolveAttack(&next.Board, from.ID, to.ID, amount, actor))

	case engine.ActionEndTurn, engine.ActionPass:
		// no board mutation; handled by the turn-rotation step below.

	default:
		return engine.ApplyResult{}, fmt.Errorf("%w: unknown action %q", engine.ErrIllegalMove, move.Action)
	}

	next.ActionsRemaining--
	if move.Action == engine.ActionEndTurn || move.Action == engine.ActionPass || next.ActionsRemaining <= 0 {
		events = append(events, endTurn(next))
	}

	checkTermination(next)
	if next.Terminal {
		reason := next.Reason
		winner := next.Winner
		events = append(events, engine.Event{Kind: "match_ended", Payload: map[string]any{"winner": winner, "reason": reason}})
	}

	return engine.ApplyResult{State: next, Events: events}, nil
}

// IsTerminal reports s's termination status.
func (Outpost) IsTerminal(s engine.State) engine.Termination {
	os := cast(s)
	return engine.Termination{Ended: os.Terminal, Winner: os.Winner, Reason: os.Reason}
}

// CurrentPlayer returns the active agentId in s.
func (Outpost) CurrentPlayer(s engine.State) string {
	return cast(s).activePlayer()
}

func ownedZoneArg(s *OutpostState, move engine.Move, actor, key string) (*Zone, error) {
	id, ok := intArg(move, key)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", engine.ErrIllegalMove, key)
	}
	zone, ok := s.Board.zone(id)
	if !ok || zone.Owner != actor {
		return nil, fmt.Errorf("%w: zone %d not owned by actor", engine.ErrIllegalMove, id)
	}
	return zone, nil
}

func transferArgs(s *OutpostState, move engine.Move, actor string, isAttack bool) (*Zone, *Zone, int, error) {
	fromID, ok1 := intArg(move, "from")
	toID, ok2 := intArg(move, "to")
	amount, ok3 := intArg(move, "amount")
	if !ok1 || !ok2 || !ok3 || amount <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: malformed transfer args", engine.ErrIllegalMove)
	}
	from, ok := s.Board.zone(fromID)
	if !ok || from.Owner != actor {
		return nil, nil, 0, fmt.Errorf("%w: source zone not owned by actor", engine.ErrIllegalMove)
	}
	to, ok := s.Board.zone(toID)
	if !ok || !s.Board.areNeighbors(fromID, toID) {
		return nil, nil, 0, fmt.Errorf("%w: target zone not adjacent", engine.ErrIllegalMove)
	}
	if amount >= from.Garrison {
		return nil, nil, 0, fmt.Errorf("%w: must leave a garrison of at least 1 behind", engine.ErrIllegalMove)
	}
	if isAttack && to.Owner == actor {
		return nil, nil, 0, fmt.Errorf("%w: cannot attack own zone", engine.ErrIllegalMove)
	}
	if !isAttack && to.Owner != actor {
		return nil, nil, 0, fmt.Errorf("%w: move only repositions between owned zones", engine.ErrIllegalMove)
	}
	return from, to, amount, nil
}

func intArg(move engine.Move, key string) (int, bool) {
	v, ok := move.Payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// endTurn rotates the active player, grants turn income, and resets the
// action budget. Always called whether the turn ended via an explicit
// end_turn/pass or by exhausting the action budget.
func endTurn(s *OutpostState) engine.Event {
	s.ActiveIdx = 1 - s.ActiveIdx
	s.ActionsRemaining = actionsPerTurn
	s.Turn++
	next := s.activePlayer()
	s.Supply[next] += supplyIncome
	return engine.Event{Kind: "turn_ended", Payload: map[string]any{"activeAgentId": next, "turn": s.Turn}}
}

func checkTermination(s *OutpostState) {
	if s.Terminal {
		return
	}
	for _, agent := range s.Players {
		if s.Board.zonesOwnedBy(agent) == 0 {
			s.Terminal = true
			s.Winner = s.opponent(agent)
			s.Reason = "elimination"
			return
		}
	}
	if s.Turn >= MaxHalfTurns {
		s.Terminal = true
		s.Winner = ""
		s.Reason = "turn_limit"
	}
}
