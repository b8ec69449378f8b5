package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"fightclaw/internal/domain"
	"fightclaw/internal/metrics"
)

func newTestMatchmaker(t *testing.T) (*Matchmaker, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	m := metrics.New()
	factory := func(matchID string, seed int64, players [2]string, ratings [2]float64) (*MatchActor, error) {
		return NewMatchActor(matchID, seed, players, ratings, DefaultActorConfig(), ActorDeps{
			Engine: domain.Outpost{}, Store: store, Logger: zap.NewNop(), Metrics: m,
		})
	}
	return NewMatchmaker(store, zap.NewNop(), m, factory, 25), store
}

func TestJoinQueueFirstAgentWaits(t *testing.T) {
	mm, _ := newTestMatchmaker(t)
	ctx := context.Background()

	status, err := mm.JoinQueue(ctx, "alpha")
	if err != nil {
		t.Fatalf("JoinQueue() error = %v", err)
	}
	if status.Status != "waiting" || status.MatchID == "" {
		t.Fatalf("JoinQueue() = %+v, want waiting with a matchId", status)
	}
}

func TestJoinQueueSameAgentTwiceIsIdempotent(t *testing.T) {
	mm, _ := newTestMatchmaker(t)
	ctx := context.Background()

	first, _ := mm.JoinQueue(ctx, "alpha")
	second, _ := mm.JoinQueue(ctx, "alpha")
	if first.MatchID != second.MatchID {
		t.Fatalf("re-joining the same agent changed matchId: %q vs %q", first.MatchID, second.MatchID)
	}
	if second.Status != "waiting" {
		t.Fatalf("second JoinQueue().Status = %q, want waiting", second.Status)
	}
}

func TestJoinQueuePairsSecondAgent(t *testing.T) {
	mm, store := newTestMatchmaker(t)
	ctx := context.Background()

	first, err := mm.JoinQueue(ctx, "alpha")
	if err != nil {
		t.Fatalf("first JoinQueue() error = %v", err)
	}
	second, err := mm.JoinQueue(ctx, "beta")
	if err != nil {
		t.Fatalf("second JoinQueue() error = %v", err)
	}
	if second.MatchID != first.MatchID {
		t.Fatalf("pairing produced mismatched matchId: %q vs %q", first.MatchID, second.MatchID)
	}
	if second.Status != "ready" {
		t.Fatalf("second JoinQueue().Status = %q, want ready", second.Status)
	}

	evA, err := mm.WaitEvents(ctx, "alpha", time.Second)
	if err != nil {
		t.Fatalf("WaitEvents(alpha) error = %v", err)
	}
	if evA.Kind != EventMatchFound {
		t.Fatalf("WaitEvents(alpha).Kind = %v, want %v", evA.Kind, EventMatchFound)
	}
	payload := evA.Payload.(MatchFoundPayload)
	if payload.Opponent != "beta" {
		t.Fatalf("alpha's match_found opponent = %q, want beta", payload.Opponent)
	}

	if _, err := store.GetMatch(ctx, first.MatchID); err != nil {
		t.Fatalf("GetMatch() error = %v, want the match row to have been recorded", err)
	}
}

func TestWaitEventsTimesOutWithNoEvents(t *testing.T) {
	mm, _ := newTestMatchmaker(t)
	ctx := context.Background()

	ev, err := mm.WaitEvents(ctx, "alpha", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitEvents() error = %v", err)
	}
	if ev.Kind != EventNoEvents {
		t.Fatalf("WaitEvents() kind = %v, want %v", ev.Kind, EventNoEvents)
	}
}

func TestLeaveQueueClearsPendingSlot(t *testing.T) {
	mm, _ := newTestMatchmaker(t)
	ctx := context.Background()

	if _, err := mm.JoinQueue(ctx, "alpha"); err != nil {
		t.Fatalf("JoinQueue() error = %v", err)
	}
	if err := mm.LeaveQueue(ctx, "alpha"); err != nil {
		t.Fatalf("LeaveQueue() error = %v", err)
	}
	status, err := mm.QueueStatusOf(ctx, "alpha")
	if err != nil {
		t.Fatalf("QueueStatusOf() error = %v", err)
	}
	if status.Status != "idle" {
		t.Fatalf("QueueStatusOf() after leave = %+v, want idle", status)
	}

	// A fresh join after leaving should allocate a brand new match slot.
	fresh, err := mm.JoinQueue(ctx, "gamma")
	if err != nil {
		t.Fatalf("JoinQueue() after leave error = %v", err)
	}
	if fresh.Status != "waiting" {
		t.Fatalf("JoinQueue() after leave = %+v, want waiting", fresh)
	}
}

func TestEventBufferDropsOldestOnOverflow(t *testing.T) {
	store := newFakeStore()
	m := metrics.New()
	factory := func(matchID string, seed int64, players [2]string, ratings [2]float64) (*MatchActor, error) {
		return NewMatchActor(matchID, seed, players, ratings, DefaultActorConfig(), ActorDeps{
			Engine: domain.Outpost{}, Store: store, Logger: zap.NewNop(), Metrics: m,
		})
	}
	mm := NewMatchmaker(store, zap.NewNop(), m, factory, 1)
	ctx := context.Background()

	// alpha is paired twice without ever draining its buffer; with cap 1
	// only the newest match_found survives.
	mm.JoinQueue(ctx, "alpha")
	mm.JoinQueue(ctx, "beta")
	mm.JoinQueue(ctx, "alpha")
	mm.JoinQueue(ctx, "gamma")

	ev, err := mm.WaitEvents(ctx, "alpha", time.Second)
	if err != nil {
		t.Fatalf("WaitEvents() error = %v", err)
	}
	payload, ok := ev.Payload.(MatchFoundPayload)
	if !ok || payload.Opponent != "gamma" {
		t.Fatalf("buffered event = %+v, want the newest match_found against gamma", ev.Payload)
	}

	ev, err = mm.WaitEvents(ctx, "alpha", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("second WaitEvents() error = %v", err)
	}
	if ev.Kind != EventNoEvents {
		t.Fatalf("second WaitEvents() kind = %v, want %v (older event should have been dropped)", ev.Kind, EventNoEvents)
	}
}

func TestFeaturedAndLiveReflectLatestMatch(t *testing.T) {
	mm, _ := newTestMatchmaker(t)
	ctx := context.Background()

	if _, err := mm.JoinQueue(ctx, "alpha"); err != nil {
		t.Fatalf("JoinQueue() error = %v", err)
	}
	if _, err := mm.JoinQueue(ctx, "beta"); err != nil {
		t.Fatalf("JoinQueue() error = %v", err)
	}

	featured, err := mm.Featured(ctx)
	if err != nil {
		t.Fatalf("Featured() error = %v", err)
	}
	if featured.MatchID == "" || featured.Status != "active" {
		t.Fatalf("Featured() = %+v, want an active matchId", featured)
	}

	live, err := mm.Live(ctx)
	if err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if live.MatchID != featured.MatchID || live.State == nil {
		t.Fatalf("Live() = %+v, want state for %q", live, featured.MatchID)
	}
}
