package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"fightclaw/internal/engine"
	"fightclaw/internal/metrics"
	"fightclaw/internal/ports"
	"fightclaw/internal/ratings"
)

// ActorConfig bundles the tuning knobs for a single match actor.
type ActorConfig struct {
	TurnTimeout          time.Duration
	DisconnectGrace      time.Duration
	SubscriberBacklog    int
	IdempotencyRetention time.Duration
	EloK                 float64
}

// DefaultActorConfig returns the constants defined in constants.go.
func DefaultActorConfig() ActorConfig {
	return ActorConfig{
		TurnTimeout:          DefaultTurnTimeout,
		DisconnectGrace:      DefaultDisconnectGrace,
		SubscriberBacklog:    DefaultSubscriberBacklog,
		IdempotencyRetention: DefaultIdempotencyRetention,
		EloK:                 DefaultEloK,
	}
}

// ActorDeps are the collaborators a MatchActor needs; bundled so
// NewMatchActor's signature doesn't grow every time a new cross-cutting
// concern is added.
type ActorDeps struct {
	Engine  engine.Engine
	Store   ports.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// SubmitMoveResult is the value returned by a successful or rejected
// submitMove call (the response body the idempotency table remembers).
type SubmitMoveResult struct {
	StateVersion  int64  `json:"stateVersion"`
	State         any    `json:"state,omitempty"`
	ActiveAgentID string `json:"activeAgentId,omitempty"`
	Terminal      bool   `json:"terminal,omitempty"`
	Winner        string `json:"winner,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// StateSnapshot is the response shape of getState().
type StateSnapshot struct {
	State         any
	StateVersion  int64
	ActiveAgentID string
	Terminal      bool
	Winner        string
	Reason        string
}

// Subscription is a live handle on a match's event stream. Transport
// adapters (SSE, WebSocket) range over Events until it closes,
// then call Close to release the subscriber slot.
type Subscription struct {
	Events <-chan WireEvent
	close  func()
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.close()
}

// MatchActor owns one match's authoritative engine state. Every method
// enqueues a closure onto callCh and waits for a reply over a private
// channel: the closure runs on the actor's single mailbox goroutine, so no
// field below this comment is ever touched by more than one goroutine at a
// time.
type MatchActor struct {
	id              string
	seed            int64
	players         [2]string
	startingRatings [2]float64
	eng             engine.Engine
	store           ports.Store
	logger          *zap.Logger
	metrics         *metrics.Metrics
	cfg             ActorConfig

	callCh  chan func(*MatchActor)
	stopCh  chan struct{}
	stopped atomic.Bool

	state        engine.State
	stateVersion int64

	idempotency idempotencyTable

	subscribers            map[uint64]*subscriber
	nextSubID              uint64
	subscriberCountByAgent map[string]int
	disconnectedSince      map[string]time.Time

	turnTimer    *time.Timer
	turnTimerGen uint64

	disconnectTimers map[string]*time.Timer
	disconnectGen    map[string]uint64

	ended             bool
	endedAt           time.Time
	endReason         string
	winner            string
	finalStateVersion int64

	createdAt time.Time
}

// NewMatchActor derives the initial engine state for (seed, players) and,
// on success, spawns the actor's mailbox goroutine. ratings are the two
// players' starting ratings in seat order, captured at pairing time; the
// end-of-match Elo update uses these rather than a fresh lookup. Init
// failure is returned synchronously with no goroutine started; the caller
// (the matchmaker) is responsible for recording the init_failed outcome.
func NewMatchActor(id string, seed int64, players [2]string, ratings [2]float64, cfg ActorConfig, deps ActorDeps) (*MatchActor, error) {
	state, err := deps.Engine.InitialState(seed, players)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &MatchActor{
		id:                     id,
		seed:                   seed,
		players:                players,
		startingRatings:        ratings,
		eng:                    deps.Engine,
		store:                  deps.Store,
		logger:                 logger.With(zap.String("matchId", id)),
		metrics:                deps.Metrics,
		cfg:                    cfg,
		callCh:                 make(chan func(*MatchActor), 64),
		stopCh:                 make(chan struct{}),
		state:                  state,
		idempotency:            make(idempotencyTable),
		subscribers:            make(map[uint64]*subscriber),
		subscriberCountByAgent: make(map[string]int),
		disconnectedSince:      make(map[string]time.Time),
		disconnectTimers:       make(map[string]*time.Timer),
		disconnectGen:          make(map[string]uint64),
		createdAt:              time.Now(),
	}
	a.armTurnTimer()
	a.metrics.AddActiveMatches(1)
	go a.loop()
	return a, nil
}

// ID returns the matchId this actor owns.
func (a *MatchActor) ID() string { return a.id }

// Players returns the two seated agent ids in seat order.
func (a *MatchActor) Players() [2]string { return a.players }

// Done is closed when the actor has been released (end of match plus the
// idempotency retention window). The matchmaker watches it to drop its
// reference to the actor.
func (a *MatchActor) Done() <-chan struct{} { return a.stopCh }

func (a *MatchActor) isPlayer(agentID string) bool {
	return agentID == a.players[0] || agentID == a.players[1]
}

func (a *MatchActor) loop() {
	for {
		select {
		case <-a.stopCh:
			return
		case fn := <-a.callCh:
			fn(a)
		}
	}
}

// enqueue posts fn to the mailbox without blocking; it drops the call (with
// a log) if the mailbox is full or the actor has already stopped.
func (a *MatchActor) enqueue(fn func(*MatchActor)) {
	if a.stopped.Load() {
		return
	}
	select {
	case a.callCh <- fn:
	default:
		a.logger.Warn("actor mailbox full, dropping queued call", zap.String("matchId", a.id))
	}
}

// call posts fn and blocks for its reply, honoring ctx cancellation on both
// the send and the receive side.
func call[T any](ctx context.Context, a *MatchActor, fn func(*MatchActor) T) (T, error) {
	var zero T
	replyCh := make(chan T, 1)
	wrapped := func(a *MatchActor) { replyCh <- fn(a) }

	select {
	case a.callCh <- wrapped:
	case <-a.stopCh:
		return zero, ErrActorBusy
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-replyCh:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-a.stopCh:
		// The actor was released after the send was accepted. If the
		// closure ran before the loop exited its reply is already
		// buffered; otherwise it will never run.
		select {
		case v := <-replyCh:
			return v, nil
		default:
			return zero, ErrActorBusy
		}
	}
}

type submitOutcome struct {
	result SubmitMoveResult
	err    error
}

// SubmitMove validates and applies one move: idempotency replay, then
// terminal, turn, version and schema checks, then engine application,
// persistence, broadcast, and response caching.
func (a *MatchActor) SubmitMove(ctx context.Context, agentID, moveID string, expectedVersion int64, move engine.Move) (SubmitMoveResult, error) {
	out, err := call(ctx, a, func(a *MatchActor) submitOutcome {
		res, rejErr := a.handleSubmitMove(agentID, moveID, expectedVersion, move)
		return submitOutcome{res, rejErr}
	})
	if err != nil {
		return SubmitMoveResult{}, err
	}
	return out.result, out.err
}

func (a *MatchActor) handleSubmitMove(agentID, moveID string, expectedVersion int64, move engine.Move) (SubmitMoveResult, error) {
	// Idempotency check.
	if cached, ok := a.idempotency.lookup(moveID); ok {
		return cached.result, cached.err
	}
	respond := func(res SubmitMoveResult, err error) (SubmitMoveResult, error) {
		a.idempotency.store(moveID, res, err)
		return res, err
	}

	// Terminal check.
	if a.ended {
		a.metrics.IncMoveRejection("terminal")
		return respond(SubmitMoveResult{Terminal: true, Reason: a.endReason, Winner: a.winner}, ErrTerminal)
	}

	activeAgentID := a.eng.CurrentPlayer(a.state)

	// Authorization: a non-participant is rejected outright; a seated
	// agent out of turn gets the softer not_your_turn with the current
	// active agent attached.
	if !a.isPlayer(agentID) {
		a.metrics.IncMoveRejection("unauthorized")
		return respond(SubmitMoveResult{}, ErrUnauthorized)
	}
	if agentID != activeAgentID {
		a.metrics.IncMoveRejection("not_your_turn")
		return respond(SubmitMoveResult{ActiveAgentID: activeAgentID}, ErrNotYourTurn)
	}

	// Version check.
	if expectedVersion != a.stateVersion {
		a.metrics.IncMoveRejection("version_mismatch")
		return respond(SubmitMoveResult{StateVersion: a.stateVersion}, ErrVersionMismatch)
	}

	// Schema check.
	if !engine.KnownAction(move.Action) {
		a.metrics.IncMoveRejection("invalid_move_schema")
		return respond(SubmitMoveResult{}, ErrInvalidMoveSchema)
	}

	// Legality / engine application.
	applied, err := a.eng.Apply(a.state, move)
	if err != nil {
		a.metrics.IncMoveRejection("illegal_move")
		return respond(SubmitMoveResult{}, fmt.Errorf("%w: %v", ErrIllegalMove, err))
	}

	prevActive := activeAgentID
	a.state = applied.State
	a.stateVersion++
	newActive := a.eng.CurrentPlayer(a.state)
	term := a.eng.IsTerminal(a.state)

	a.persistMove(agentID, moveID, move, applied.Events)
	a.metrics.IncMoveApplied(move.Action)

	// Cancel and rearm the turn timer.
	a.cancelTurnTimer()
	if !term.Ended {
		a.armTurnTimer()
	}

	// Broadcast state, engine events, and (if applicable) your_turn.
	snapshot, _ := a.state.MarshalState()
	a.broadcast(WireEvent{Kind: EventState, Payload: StatePayload{
		EventVersion: 1, Event: "state", MatchID: a.id, State: snapshot,
	}})
	a.broadcast(WireEvent{Kind: EventEngineEvents, Payload: EngineEventsPayload{
		EventVersion: 1, Event: "engine_events", MatchID: a.id, StateVersion: a.stateVersion,
		AgentID: agentID, MoveID: moveID, Move: move, EngineEvents: applied.Events,
		TsUnixMilli: time.Now().UnixMilli(),
	}})
	if !term.Ended && newActive != prevActive {
		a.broadcast(WireEvent{Kind: EventYourTurn, Recipients: []string{newActive}, Payload: YourTurnPayload{
			EventVersion: 1, Event: "your_turn", MatchID: a.id, StateVersion: a.stateVersion,
		}})
	}

	res := SubmitMoveResult{
		StateVersion: a.stateVersion, State: snapshot, ActiveAgentID: newActive,
		Terminal: term.Ended, Winner: term.Winner, Reason: term.Reason,
	}

	// Terminate if the new state is terminal.
	if term.Ended {
		a.terminate(term.Winner, term.Reason)
	}

	// Response caching happens inside respond().
	return respond(res, nil)
}

// turnReporter is satisfied by engine states that can report the current
// game-turn counter; the event log's turn column falls back to 0 for
// engines that cannot.
type turnReporter interface {
	TurnNumber() int
}

func (a *MatchActor) currentTurn() int {
	if tr, ok := a.state.(turnReporter); ok {
		return tr.TurnNumber()
	}
	return 0
}

func (a *MatchActor) persistMove(agentID, moveID string, move engine.Move, events []engine.Event) {
	payload, err := json.Marshal(map[string]any{
		"move": move, "engineEvents": events, "agentId": agentID,
		"moveId": moveID, "stateVersion": a.stateVersion,
	})
	if err != nil {
		a.logger.Error("marshal move_applied payload failed", zap.Error(err))
		return
	}
	start := time.Now()
	if _, err := a.store.AppendEvent(context.Background(), a.id, a.currentTurn(), "move_applied", payload); err != nil {
		a.logger.Error("append move_applied event failed", zap.Error(err), zap.String("moveId", moveID))
	}
	a.metrics.ObserveAppendLatency(time.Since(start))
}

// GetState implements getState().
func (a *MatchActor) GetState(ctx context.Context) (StateSnapshot, error) {
	return call(ctx, a, func(a *MatchActor) StateSnapshot {
		snap, _ := a.state.MarshalState()
		return StateSnapshot{
			State: snap, StateVersion: a.stateVersion,
			ActiveAgentID: a.eng.CurrentPlayer(a.state),
			Terminal:      a.ended, Winner: a.winner, Reason: a.endReason,
		}
	})
}

type subscribeOutcome struct {
	sub *Subscription
	err error
}

// Subscribe implements subscribe(agentId?). agentID is empty for a
// spectator subscription. The returned stream always begins with an
// immediate state snapshot.
func (a *MatchActor) Subscribe(ctx context.Context, agentID string) (*Subscription, error) {
	out, err := call(ctx, a, func(a *MatchActor) subscribeOutcome {
		return subscribeOutcome{sub: a.handleSubscribe(agentID)}
	})
	if err != nil {
		return nil, err
	}
	return out.sub, out.err
}

func (a *MatchActor) handleSubscribe(agentID string) *Subscription {
	id := a.nextSubID
	a.nextSubID++
	ch := make(chan WireEvent, a.cfg.SubscriberBacklog)
	sub := &subscriber{id: id, agentID: agentID, ch: ch}
	a.subscribers[id] = sub

	// Disconnect-grace bookkeeping applies only to the two seated
	// participants; an authenticated spectator coming and going must never
	// arm a forfeit timer.
	if agentID != "" && a.isPlayer(agentID) {
		a.subscriberCountByAgent[agentID]++
		delete(a.disconnectedSince, agentID)
		a.cancelDisconnectTimer(agentID)
	}

	snapshot, _ := a.state.MarshalState()
	a.sendOrDrop(sub, WireEvent{Kind: EventState, Payload: StatePayload{
		EventVersion: 1, Event: "state", MatchID: a.id, State: snapshot,
	}})

	if !a.ended && agentID != "" && agentID == a.eng.CurrentPlayer(a.state) {
		a.sendOrDrop(sub, WireEvent{Kind: EventYourTurn, Payload: YourTurnPayload{
			EventVersion: 1, Event: "your_turn", MatchID: a.id, StateVersion: a.stateVersion,
		}})
	}

	if a.ended {
		a.sendOrDrop(sub, WireEvent{Kind: EventGameEnded, Payload: GameEndedPayload{
			EventVersion: 1, Event: "game_ended", MatchID: a.id,
			Winner: a.winner, Reason: a.endReason, FinalStateVersion: a.finalStateVersion,
		}})
		a.dropSubscriber(id)
	}

	return &Subscription{
		Events: ch,
		close: func() {
			a.enqueue(func(a *MatchActor) { a.unsubscribe(id, agentID) })
		},
	}
}

func (a *MatchActor) sendOrDrop(sub *subscriber, ev WireEvent) {
	select {
	case sub.ch <- ev:
	default:
		a.metrics.IncSubscriberDrop()
		a.dropSubscriber(sub.id)
	}
}

func (a *MatchActor) unsubscribe(id uint64, agentID string) {
	if _, ok := a.subscribers[id]; !ok {
		return
	}
	a.dropSubscriber(id)
	if agentID == "" || !a.isPlayer(agentID) {
		return
	}
	a.subscriberCountByAgent[agentID]--
	if a.subscriberCountByAgent[agentID] <= 0 {
		delete(a.subscriberCountByAgent, agentID)
		if !a.ended {
			a.disconnectedSince[agentID] = time.Now()
			a.armDisconnectTimer(agentID)
		}
	}
}

// Finish implements finish(adminReason): admin-only, bypasses turn/auth
// gates, idempotent once the match has ended.
func (a *MatchActor) Finish(ctx context.Context, reason string) error {
	result, err := call(ctx, a, func(a *MatchActor) error {
		if a.ended {
			return ErrAlreadyEnded
		}
		a.terminate("", reason)
		return nil
	})
	if err != nil {
		return err
	}
	return result
}

func (a *MatchActor) otherAgent(agentID string) string {
	if a.players[0] == agentID {
		return a.players[1]
	}
	return a.players[0]
}

// armTurnTimer arms a single deadline timer for the active player's turn.
// There is never more than one armed turn timer per match; cancelTurnTimer
// must always be called first when rearming.
func (a *MatchActor) armTurnTimer() {
	a.turnTimerGen++
	gen := a.turnTimerGen
	a.turnTimer = time.AfterFunc(a.cfg.TurnTimeout, func() {
		a.enqueue(func(a *MatchActor) {
			if a.turnTimerGen != gen || a.ended {
				return
			}
			loser := a.eng.CurrentPlayer(a.state)
			a.terminate(a.otherAgent(loser), "turn_timeout")
		})
	})
}

func (a *MatchActor) cancelTurnTimer() {
	if a.turnTimer != nil {
		a.turnTimer.Stop()
		a.turnTimer = nil
	}
	a.turnTimerGen++
}

// armDisconnectTimer arms the per-agent disconnect-grace timer.
// handleDisconnectTimeout applies the rule recorded in DESIGN.md
// ("first-to-exceed-grace loses; if identical, draw").
func (a *MatchActor) armDisconnectTimer(agentID string) {
	a.disconnectGen[agentID]++
	gen := a.disconnectGen[agentID]
	if t, ok := a.disconnectTimers[agentID]; ok {
		t.Stop()
	}
	a.disconnectTimers[agentID] = time.AfterFunc(a.cfg.DisconnectGrace, func() {
		a.enqueue(func(a *MatchActor) {
			if a.disconnectGen[agentID] != gen || a.ended {
				return
			}
			a.handleDisconnectTimeout(agentID)
		})
	})
}

func (a *MatchActor) cancelDisconnectTimer(agentID string) {
	if t, ok := a.disconnectTimers[agentID]; ok {
		t.Stop()
		delete(a.disconnectTimers, agentID)
	}
	a.disconnectGen[agentID]++
}

func (a *MatchActor) handleDisconnectTimeout(agentID string) {
	if _, stillDisconnected := a.disconnectedSince[agentID]; !stillDisconnected {
		return
	}
	other := a.otherAgent(agentID)
	otherSince, otherDisconnected := a.disconnectedSince[other]
	if otherDisconnected && !time.Now().Before(otherSince.Add(a.cfg.DisconnectGrace)) {
		// Both agents have independently exceeded the grace period: a draw.
		a.terminate("", "disconnect_timeout")
		return
	}
	a.terminate(other, "disconnect_timeout")
}

// terminate ends the match: writes the result row, updates both
// leaderboard rows, broadcasts game_ended, and closes every subscription.
func (a *MatchActor) terminate(winner, reason string) {
	if a.ended {
		return
	}
	a.ended = true
	a.endedAt = time.Now()
	a.endReason = reason
	a.winner = winner
	a.finalStateVersion = a.stateVersion

	a.cancelTurnTimer()
	for agentID := range a.disconnectTimers {
		a.cancelDisconnectTimer(agentID)
	}

	a.metrics.IncMatchEnded(reason)
	a.metrics.AddActiveMatches(-1)

	if payload, err := json.Marshal(map[string]any{
		"winner": winner, "reason": reason, "finalStateVersion": a.finalStateVersion,
	}); err == nil {
		if _, err := a.store.AppendEvent(context.Background(), a.id, a.currentTurn(), "game_ended", payload); err != nil {
			a.logger.Error("append game_ended event failed", zap.Error(err))
		}
	}

	a.recordResult(winner, reason)

	a.broadcast(WireEvent{Kind: EventGameEnded, Payload: GameEndedPayload{
		EventVersion: 1, Event: "game_ended", MatchID: a.id,
		Winner: winner, Reason: reason, FinalStateVersion: a.finalStateVersion,
	}})
	a.closeAllSubscribers()

	time.AfterFunc(a.cfg.IdempotencyRetention, func() {
		a.enqueue(func(a *MatchActor) { a.release() })
	})
}

// resultWriteAttempts bounds the retry loop for the match_results write,
// the one critical persistence path: best-effort writes are logged and
// swallowed, but a result row failure is retried before the actor gives up
// and ends the match in memory anyway.
const resultWriteAttempts = 3

func (a *MatchActor) recordResult(winner, reason string) {
	ctx := context.Background()

	var winnerPtr, loserPtr *string
	if winner != "" {
		loser := a.otherAgent(winner)
		w, l := winner, loser
		winnerPtr, loserPtr = &w, &l
	}

	// The Elo update is computed from the starting ratings captured in
	// match_players at pairing time, not a fresh lookup.
	updates := make([]ports.RatingUpdate, 0, 2)
	for seat, agentID := range a.players {
		score := ratings.ScoreFor(agentID, winner)
		newRating := ratings.Update(a.cfg.EloK, a.startingRatings[seat], a.startingRatings[1-seat], score)

		outcome := ports.OutcomeDraw
		switch {
		case winner == agentID:
			outcome = ports.OutcomeWin
		case winner != "" && winner != agentID:
			outcome = ports.OutcomeLoss
		}
		updates = append(updates, ports.RatingUpdate{AgentID: agentID, NewRating: newRating, Outcome: outcome})
	}

	result := ports.MatchResult{
		MatchID: a.id, WinnerAgentID: winnerPtr, LoserAgentID: loserPtr,
		Reason: reason, CreatedAt: a.endedAt,
	}
	for attempt := 1; attempt <= resultWriteAttempts; attempt++ {
		err := a.store.RecordMatchResult(ctx, result, updates, a.finalStateVersion)
		if err == nil {
			return
		}
		a.logger.Error("record match result failed",
			zap.Error(err), zap.String("reason", reason), zap.Int("attempt", attempt))
		if attempt < resultWriteAttempts {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
	a.logger.Error("match result write abandoned, ending match in memory only", zap.String("matchId", a.id))
}

func (a *MatchActor) release() {
	if a.stopped.Swap(true) {
		return
	}
	close(a.stopCh)
}
