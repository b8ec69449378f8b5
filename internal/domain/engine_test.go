package domain

import (
	"errors"
	"testing"

	"fightclaw/internal/engine"
)

func newTestState(t *testing.T) engine.State {
	t.Helper()
	s, err := Outpost{}.InitialState(42, [2]string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("InitialState() error = %v", err)
	}
	return s
}

func TestInitialState(t *testing.T) {
	s := newTestState(t)
	os := cast(s)

	if len(os.Board.Zones) != ZoneCount {
		t.Fatalf("zone count = %d, want %d", len(os.Board.Zones), ZoneCount)
	}
	if os.Supply["alpha"] != startingSupply || os.Supply["beta"] != startingSupply {
		t.Fatalf("starting supply = %+v, want %d for both players", os.Supply, startingSupply)
	}
	if got := (Outpost{}).CurrentPlayer(s); got != "alpha" {
		t.Fatalf("CurrentPlayer() = %q, want alpha", got)
	}
}

func TestInitialStateDeterministic(t *testing.T) {
	a, _ := Outpost{}.InitialState(7, [2]string{"alpha", "beta"})
	b, _ := Outpost{}.InitialState(7, [2]string{"alpha", "beta"})

	as := cast(a)
	bs := cast(b)
	for i := range as.Board.Zones {
		if as.Board.Zones[i].Name != bs.Board.Zones[i].Name {
			t.Fatalf("same seed produced different boards at zone %d: %q vs %q", i, as.Board.Zones[i].Name, bs.Board.Zones[i].Name)
		}
	}
}

func TestApplyRecruitSpendsSupply(t *testing.T) {
	s := newTestState(t)
	home := cast(s).Board.Zones[0].ID

	res, err := Outpost{}.Apply(s, engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": home}})
	if err != nil {
		t.Fatalf("Apply(recruit) error = %v", err)
	}
	next := cast(res.State)
	if next.Supply["alpha"] != startingSupply-recruitCost {
		t.Fatalf("supply after recruit = %d, want %d", next.Supply["alpha"], startingSupply-recruitCost)
	}
	zone, _ := next.Board.zone(home)
	if zone.Garrison != startingGarrison+1 {
		t.Fatalf("garrison after recruit = %d, want %d", zone.Garrison, startingGarrison+1)
	}
	// original state must not have been mutated.
	origZone, _ := cast(s).Board.zone(home)
	if origZone.Garrison != startingGarrison {
		t.Fatalf("Apply mutated the input state's garrison: got %d, want %d", origZone.Garrison, startingGarrison)
	}
}

func TestApplyRejectsUnownedZone(t *testing.T) {
	s := newTestState(t)
	enemyHome := cast(s).Board.Zones[ZoneCount/2].ID

	_, err := Outpost{}.Apply(s, engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": enemyHome}})
	if !errors.Is(err, engine.ErrIllegalMove) {
		t.Fatalf("Apply(recruit on enemy zone) error = %v, want ErrIllegalMove", err)
	}
}

func TestEndTurnRotatesActivePlayerAndGrantsIncome(t *testing.T) {
	s := newTestState(t)
	res, err := Outpost{}.Apply(s, engine.Move{Action: engine.ActionEndTurn})
	if err != nil {
		t.Fatalf("Apply(end_turn) error = %v", err)
	}
	next := cast(res.State)
	if next.activePlayer() != "beta" {
		t.Fatalf("active player after end_turn = %q, want beta", next.activePlayer())
	}
	if next.Supply["beta"] != startingSupply+supplyIncome {
		t.Fatalf("beta supply after its turn begins = %d, want %d", next.Supply["beta"], startingSupply+supplyIncome)
	}
	if next.ActionsRemaining != actionsPerTurn {
		t.Fatalf("actionsRemaining after end_turn = %d, want %d", next.ActionsRemaining, actionsPerTurn)
	}
}

func TestActionBudgetExhaustionEndsTurnImplicitly(t *testing.T) {
	s := newTestState(t)
	home := cast(s).Board.Zones[0].ID
	// Starting supply pays for a single fortify; fund every action so the
	// action budget, not supply, is what runs out.
	cast(s).Supply["alpha"] = actionsPerTurn * fortifyCost

	for i := 0; i < actionsPerTurn; i++ {
		res, err := Outpost{}.Apply(s, engine.Move{Action: engine.ActionFortify, Payload: map[string]any{"zone": home}})
		if err != nil {
			t.Fatalf("Apply(fortify) #%d error = %v", i, err)
		}
		s = res.State
	}
	if got := (Outpost{}).CurrentPlayer(s); got != "beta" {
		t.Fatalf("turn did not rotate after exhausting action budget, active player = %q", got)
	}
}

func TestAttackCapturesWeaklyDefendedZone(t *testing.T) {
	s := newTestState(t)
	os := cast(s)
	from, _ := os.Board.zone(0)
	var toID int
	for _, n := range from.Neighbors {
		toID = n
		break
	}
	from.Garrison = 10

	res, err := Outpost{}.Apply(s, engine.Move{Action: engine.ActionAttack, Payload: map[string]any{
		"from": from.ID, "to": toID, "amount": 9,
	}})
	if err != nil {
		t.Fatalf("Apply(attack) error = %v", err)
	}
	captured, _ := cast(res.State).Board.zone(toID)
	if captured.Owner != "alpha" {
		t.Fatalf("zone owner after overwhelming attack = %q, want alpha", captured.Owner)
	}
}

func TestTerminalOnElimination(t *testing.T) {
	s := newTestState(t)
	os := cast(s)
	enemyHome, _ := os.Board.zone(ZoneCount / 2)
	enemyHome.Owner = ""
	enemyHome.Garrison = 0
	checkTermination(os)

	term := Outpost{}.IsTerminal(s)
	if !term.Ended || term.Winner != "alpha" {
		t.Fatalf("IsTerminal() = %+v, want ended with winner alpha", term)
	}
}

func TestLegalMovesNonEmptyForFreshState(t *testing.T) {
	s := newTestState(t)
	moves := Outpost{}.LegalMoves(s)
	if len(moves) == 0 {
		t.Fatal("LegalMoves() returned no moves for a fresh state")
	}
}
