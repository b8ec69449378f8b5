package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"fightclaw/internal/domain"
	"fightclaw/internal/engine"
	"fightclaw/internal/metrics"
)

func newTestActor(t *testing.T) (*MatchActor, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	cfg := DefaultActorConfig()
	cfg.TurnTimeout = time.Minute
	cfg.DisconnectGrace = time.Minute
	a, err := NewMatchActor("match-1", 7, [2]string{"alpha", "beta"}, [2]float64{1500, 1500}, cfg, ActorDeps{
		Engine: domain.Outpost{}, Store: store, Logger: zap.NewNop(), Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("NewMatchActor() error = %v", err)
	}
	return a, store
}

func TestSubmitMoveAppliesAndAdvancesVersion(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	res, err := a.SubmitMove(ctx, "alpha", "move-1", 0, engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": 0}})
	if err != nil {
		t.Fatalf("SubmitMove() error = %v", err)
	}
	if res.StateVersion != 1 {
		t.Fatalf("StateVersion = %d, want 1", res.StateVersion)
	}
}

func TestSubmitMoveRejectsWrongTurn(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	_, err := a.SubmitMove(ctx, "beta", "move-1", 0, engine.Move{Action: engine.ActionEndTurn})
	if err != ErrNotYourTurn {
		t.Fatalf("SubmitMove() error = %v, want %v", err, ErrNotYourTurn)
	}
}

func TestSubmitMoveRejectsVersionMismatch(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	_, err := a.SubmitMove(ctx, "alpha", "move-1", 5, engine.Move{Action: engine.ActionEndTurn})
	if err != ErrVersionMismatch {
		t.Fatalf("SubmitMove() error = %v, want %v", err, ErrVersionMismatch)
	}
}

func TestSubmitMoveIsIdempotentOnRepeatedMoveID(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	move := engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": 0}}
	first, err := a.SubmitMove(ctx, "alpha", "move-1", 0, move)
	if err != nil {
		t.Fatalf("first SubmitMove() error = %v", err)
	}
	second, err := a.SubmitMove(ctx, "alpha", "move-1", 0, move)
	if err != nil {
		t.Fatalf("replayed SubmitMove() error = %v", err)
	}
	if second.StateVersion != first.StateVersion {
		t.Fatalf("replayed move changed state: first version %d, second %d", first.StateVersion, second.StateVersion)
	}
}

func TestSubmitMoveRejectsIllegalMove(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	_, err := a.SubmitMove(ctx, "alpha", "move-1", 0, engine.Move{Action: engine.ActionRecruit, Payload: map[string]any{"zone": 999}})
	if err == nil {
		t.Fatalf("SubmitMove() with an unowned zone should fail")
	}
}

func TestSubscribeReceivesInitialStateSnapshot(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	sub, err := a.Subscribe(ctx, "alpha")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	select {
	case ev := <-sub.Events:
		if ev.Kind != EventState {
			t.Fatalf("first event kind = %v, want %v", ev.Kind, EventState)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial state snapshot")
	}
}

// drainUntil receives events until one of kind k arrives, failing the test
// if the stream closes or the deadline passes first.
func drainUntil(t *testing.T, events <-chan WireEvent, k EventKind) WireEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream closed before a %v event arrived", k)
			}
			if ev.Kind == k {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a %v event", k)
		}
	}
}

func TestSubscribeEmitsYourTurnOnlyToActiveAgent(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()

	active, err := a.Subscribe(ctx, "alpha")
	if err != nil {
		t.Fatalf("Subscribe(alpha) error = %v", err)
	}
	defer active.Close()
	drainUntil(t, active.Events, EventYourTurn)

	idle, err := a.Subscribe(ctx, "beta")
	if err != nil {
		t.Fatalf("Subscribe(beta) error = %v", err)
	}
	defer idle.Close()
	spectator, err := a.Subscribe(ctx, "")
	if err != nil {
		t.Fatalf("Subscribe(spectator) error = %v", err)
	}
	defer spectator.Close()

	for name, sub := range map[string]*Subscription{"beta": idle, "spectator": spectator} {
		ev := <-sub.Events
		if ev.Kind != EventState {
			t.Fatalf("%s first event kind = %v, want %v", name, ev.Kind, EventState)
		}
		select {
		case ev := <-sub.Events:
			t.Fatalf("%s received unexpected event %v at subscribe time", name, ev.Kind)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestTurnTimerExpiryForfeitsActiveAgent(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultActorConfig()
	cfg.TurnTimeout = 25 * time.Millisecond
	cfg.DisconnectGrace = time.Minute
	a, err := NewMatchActor("match-t", 7, [2]string{"alpha", "beta"}, [2]float64{1500, 1500}, cfg, ActorDeps{
		Engine: domain.Outpost{}, Store: store, Logger: zap.NewNop(), Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("NewMatchActor() error = %v", err)
	}
	ctx := context.Background()

	sub, err := a.Subscribe(ctx, "")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	ended := drainUntil(t, sub.Events, EventGameEnded)
	payload := ended.Payload.(GameEndedPayload)
	if payload.Winner != "beta" || payload.Reason != "turn_timeout" {
		t.Fatalf("game_ended = %+v, want winner beta with reason turn_timeout", payload)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.results) != 1 || store.results[0].Reason != "turn_timeout" {
		t.Fatalf("store results = %+v, want one turn_timeout row", store.results)
	}
	if store.results[0].WinnerAgentID == nil || *store.results[0].WinnerAgentID != "beta" {
		t.Fatalf("result winner = %v, want beta", store.results[0].WinnerAgentID)
	}
}

func TestSpectatorDisconnectNeverArmsForfeit(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultActorConfig()
	cfg.TurnTimeout = time.Minute
	cfg.DisconnectGrace = 20 * time.Millisecond
	a, err := NewMatchActor("match-s", 7, [2]string{"alpha", "beta"}, [2]float64{1500, 1500}, cfg, ActorDeps{
		Engine: domain.Outpost{}, Store: store, Logger: zap.NewNop(), Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("NewMatchActor() error = %v", err)
	}
	ctx := context.Background()

	// An authenticated agent that is not seated in this match subscribes
	// and walks away; the match must survive well past the grace period.
	sub, err := a.Subscribe(ctx, "gamma")
	if err != nil {
		t.Fatalf("Subscribe(gamma) error = %v", err)
	}
	sub.Close()

	time.Sleep(100 * time.Millisecond)
	snap, err := a.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if snap.Terminal {
		t.Fatalf("match ended (%s) after a non-participant disconnect", snap.Reason)
	}
}

func TestFinishEndsMatchAndRejectsDoubleFinish(t *testing.T) {
	a, store := newTestActor(t)
	ctx := context.Background()

	if err := a.Finish(ctx, "admin_override"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := a.Finish(ctx, "admin_override"); err != ErrAlreadyEnded {
		t.Fatalf("second Finish() error = %v, want %v", err, ErrAlreadyEnded)
	}

	snap, err := a.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !snap.Terminal {
		t.Fatal("GetState().Terminal = false after Finish()")
	}
	if len(store.results) != 1 {
		t.Fatalf("store recorded %d results, want 1", len(store.results))
	}
}
