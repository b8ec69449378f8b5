package app

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"fightclaw/internal/metrics"
	"fightclaw/internal/ports"
)

// MatchActorFactory constructs and starts a MatchActor for a freshly-paired
// match. ratings are the players' starting ratings in seat order. The
// matchmaker depends only on this function, never on engine or config
// internals directly, so cmd/fightclawd wires concrete choices in one
// place.
type MatchActorFactory func(matchID string, seed int64, players [2]string, ratings [2]float64) (*MatchActor, error)

// QueueStatus is the result of joinQueue/queueStatus.
type QueueStatus struct {
	MatchID string
	Status  string // "waiting" | "ready" | "idle"
}

// FeaturedStatus is the result of featured().
type FeaturedStatus struct {
	MatchID string
	Status  string
	Players []string
}

// LiveStatus is the result of live().
type LiveStatus struct {
	MatchID string
	State   any
}

// Matchmaker is the process-wide singleton actor serving the join/status/
// leave/wait protocol. Like MatchActor it is a single-threaded
// mailbox consumer; handleX methods below run only on its own goroutine.
type Matchmaker struct {
	store     ports.Store
	logger    *zap.Logger
	metrics   *metrics.Metrics
	newActor  MatchActorFactory
	bufferCap int

	callCh chan func(*Matchmaker)
	stopCh chan struct{}

	pendingMatchID string
	pendingAgentID string
	pendingSeed    int64
	latestMatchID  string

	actors map[string]*MatchActor

	buffers map[string][]WireEvent
	waiters map[string]chan WireEvent
}

// NewMatchmaker constructs and starts the matchmaker's mailbox goroutine.
// bufferCap is the per-agent event buffer cap (PER_AGENT_EVENT_BUFFER_MAX,
// default 25).
func NewMatchmaker(store ports.Store, logger *zap.Logger, m *metrics.Metrics, newActor MatchActorFactory, bufferCap int) *Matchmaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferCap <= 0 {
		bufferCap = DefaultPerAgentBufferCap
	}
	mm := &Matchmaker{
		store:     store,
		logger:    logger,
		metrics:   m,
		newActor:  newActor,
		bufferCap: bufferCap,
		callCh:    make(chan func(*Matchmaker), 256),
		stopCh:    make(chan struct{}),
		actors:    make(map[string]*MatchActor),
		buffers:   make(map[string][]WireEvent),
		waiters:   make(map[string]chan WireEvent),
	}
	go mm.loop()
	return mm
}

func (m *Matchmaker) loop() {
	for {
		select {
		case <-m.stopCh:
			return
		case fn := <-m.callCh:
			fn(m)
		}
	}
}

func (m *Matchmaker) enqueue(fn func(*Matchmaker)) {
	select {
	case m.callCh <- fn:
	case <-m.stopCh:
	}
}

func callM[T any](ctx context.Context, m *Matchmaker, fn func(*Matchmaker) T) (T, error) {
	var zero T
	replyCh := make(chan T, 1)
	wrapped := func(m *Matchmaker) { replyCh <- fn(m) }

	select {
	case m.callCh <- wrapped:
	case <-m.stopCh:
		return zero, ErrActorBusy
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-replyCh:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-m.stopCh:
		select {
		case v := <-replyCh:
			return v, nil
		default:
			return zero, ErrActorBusy
		}
	}
}

// JoinQueue implements joinQueue(agentId). Callers must
// already have authenticated and verified agentID; the matchmaker itself
// enforces only the pairing state machine, not auth (agent_required is an
// HTTP-layer concern).
func (m *Matchmaker) JoinQueue(ctx context.Context, agentID string) (QueueStatus, error) {
	return callM(ctx, m, func(m *Matchmaker) QueueStatus { return m.handleJoin(agentID) })
}

func (m *Matchmaker) handleJoin(agentID string) QueueStatus {
	if m.pendingAgentID == agentID {
		return QueueStatus{MatchID: m.pendingMatchID, Status: "waiting"}
	}

	if m.pendingMatchID != "" && m.pendingAgentID != "" {
		return m.pair(agentID)
	}

	matchID := uuid.Must(uuid.NewV4()).String()
	seed := time.Now().UnixNano()
	m.pendingMatchID = matchID
	m.pendingAgentID = agentID
	m.pendingSeed = seed
	m.metrics.SetQueueDepth(1)

	if err := m.store.RecordMatchCreated(context.Background(), matchID, seed); err != nil {
		m.logger.Error("record match created failed", zap.Error(err), zap.String("matchId", matchID))
	}
	return QueueStatus{MatchID: matchID, Status: "waiting"}
}

func (m *Matchmaker) pair(agentID string) QueueStatus {
	matchID := m.pendingMatchID
	opponent := m.pendingAgentID
	seed := m.pendingSeed
	m.pendingMatchID = ""
	m.pendingAgentID = ""
	m.pendingSeed = 0
	m.latestMatchID = matchID
	m.metrics.SetQueueDepth(0)

	players := [2]string{opponent, agentID}
	ctx := context.Background()

	ratingA, err := m.store.GetRating(ctx, opponent)
	if err != nil {
		ratingA = 1500
	}
	ratingB, err := m.store.GetRating(ctx, agentID)
	if err != nil {
		ratingB = 1500
	}

	actor, err := m.newActor(matchID, seed, players, [2]float64{ratingA, ratingB})
	if err != nil {
		m.logger.Error("match init failed", zap.Error(err), zap.String("matchId", matchID))
		m.finishInitFailed(matchID, players)
		return QueueStatus{MatchID: matchID, Status: "ready"}
	}
	m.actors[matchID] = actor
	go func() {
		<-actor.Done()
		m.enqueue(func(m *Matchmaker) { delete(m.actors, matchID) })
	}()

	seated := []ports.MatchPlayer{
		{MatchID: matchID, AgentID: opponent, Seat: 0, StartingRating: ratingA},
		{MatchID: matchID, AgentID: agentID, Seat: 1, StartingRating: ratingB},
	}
	if err := m.store.RecordMatchPlayers(ctx, matchID, seated); err != nil {
		m.logger.Error("record match players failed", zap.Error(err), zap.String("matchId", matchID))
	}

	m.deliver(opponent, WireEvent{Kind: EventMatchFound, Payload: MatchFoundPayload{
		Event: "match_found", MatchID: matchID, Opponent: agentID,
	}})
	m.deliver(agentID, WireEvent{Kind: EventMatchFound, Payload: MatchFoundPayload{
		Event: "match_found", MatchID: matchID, Opponent: opponent,
	}})

	return QueueStatus{MatchID: matchID, Status: "ready"}
}

// finishInitFailed handles an engine initialization failure at pairing
// time: the match is marked ended with reason init_failed and both agents
// receive a terminal event.
func (m *Matchmaker) finishInitFailed(matchID string, players [2]string) {
	ctx := context.Background()
	reason := "init_failed"
	if err := m.store.RecordMatchResult(ctx, ports.MatchResult{
		MatchID: matchID, Reason: reason, CreatedAt: time.Now(),
	}, nil, 0); err != nil {
		m.logger.Error("record init_failed result failed", zap.Error(err), zap.String("matchId", matchID))
	}
	ended := WireEvent{Kind: EventGameEnded, Payload: GameEndedPayload{
		EventVersion: 1, Event: "game_ended", MatchID: matchID, Reason: reason,
	}}
	m.deliver(players[0], ended)
	m.deliver(players[1], ended)
}

// QueueStatusOf implements queueStatus(agentId).
func (m *Matchmaker) QueueStatusOf(ctx context.Context, agentID string) (QueueStatus, error) {
	return callM(ctx, m, func(m *Matchmaker) QueueStatus {
		if m.pendingAgentID == agentID {
			return QueueStatus{MatchID: m.pendingMatchID, Status: "waiting"}
		}
		return QueueStatus{Status: "idle"}
	})
}

// LeaveQueue implements leaveQueue(agentId).
func (m *Matchmaker) LeaveQueue(ctx context.Context, agentID string) error {
	_, err := callM(ctx, m, func(m *Matchmaker) struct{} {
		if m.pendingAgentID == agentID {
			m.pendingAgentID = ""
			m.pendingMatchID = ""
			m.pendingSeed = 0
			m.metrics.SetQueueDepth(0)
		}
		return struct{}{}
	})
	return err
}

// deliver hands ev to agentID's waiter if one is parked in waitEvents, or
// else appends it to the per-agent FIFO, dropping the oldest entry on
// overflow (cap DefaultPerAgentBufferCap unless overridden).
func (m *Matchmaker) deliver(agentID string, ev WireEvent) {
	if waiter, ok := m.waiters[agentID]; ok {
		delete(m.waiters, agentID)
		waiter <- ev
		return
	}
	buf := m.buffers[agentID]
	if len(buf) >= m.bufferCap {
		buf = buf[1:]
	}
	m.buffers[agentID] = append(buf, ev)
}

// WaitEvents implements waitEvents(agentId, timeoutSeconds). If the
// per-agent buffer is non-empty it returns immediately; otherwise it
// suspends up to timeout and returns a no_events envelope if nothing
// arrives. On ctx cancellation the pending waiter is removed without
// consuming any event that might race in concurrently.
func (m *Matchmaker) WaitEvents(ctx context.Context, agentID string, timeout time.Duration) (WireEvent, error) {
	type regResult struct {
		ev WireEvent
		ok bool
	}
	replyCh := make(chan WireEvent, 1)
	reg, err := callM(ctx, m, func(m *Matchmaker) regResult {
		if buf := m.buffers[agentID]; len(buf) > 0 {
			ev := buf[0]
			m.buffers[agentID] = buf[1:]
			return regResult{ev, true}
		}
		m.waiters[agentID] = replyCh
		return regResult{}
	})
	if err != nil {
		return WireEvent{}, err
	}
	if reg.ok {
		return reg.ev, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// cancelWaiter unregisters replyCh. If deliver already handed it an
	// event that the caller did not take, the event goes back to the front
	// of the per-agent buffer rather than being lost.
	cancelWaiter := func() {
		m.enqueue(func(m *Matchmaker) {
			if m.waiters[agentID] == replyCh {
				delete(m.waiters, agentID)
				return
			}
			select {
			case ev := <-replyCh:
				m.buffers[agentID] = append([]WireEvent{ev}, m.buffers[agentID]...)
			default:
			}
		})
	}

	select {
	case ev := <-replyCh:
		return ev, nil
	case <-timer.C:
		cancelWaiter()
		select {
		case ev := <-replyCh:
			return ev, nil
		default:
			return WireEvent{Kind: EventNoEvents, Payload: NoEventsPayload{Event: "no_events"}}, nil
		}
	case <-ctx.Done():
		cancelWaiter()
		return WireEvent{}, ctx.Err()
	}
}

// Featured implements featured().
func (m *Matchmaker) Featured(ctx context.Context) (FeaturedStatus, error) {
	actor, matchID, err := m.latestActor(ctx)
	if err != nil || actor == nil {
		return FeaturedStatus{}, err
	}
	players := actor.Players()
	status := "active"
	if snap, err := actor.GetState(ctx); err == nil && snap.Terminal {
		status = "ended"
	}
	return FeaturedStatus{MatchID: matchID, Status: status, Players: []string{players[0], players[1]}}, nil
}

// Live implements live().
func (m *Matchmaker) Live(ctx context.Context) (LiveStatus, error) {
	actor, matchID, err := m.latestActor(ctx)
	if err != nil || actor == nil {
		return LiveStatus{}, err
	}
	snap, err := actor.GetState(ctx)
	if err != nil {
		return LiveStatus{}, err
	}
	return LiveStatus{MatchID: matchID, State: snap.State}, nil
}

// GetActor returns the live actor for matchID, if the matchmaker has one
// (it only ever holds actors it created via pair()). The HTTP layer uses
// it to route move/state/stream requests to the right actor.
func (m *Matchmaker) GetActor(ctx context.Context, matchID string) (*MatchActor, error) {
	return callM(ctx, m, func(m *Matchmaker) *MatchActor { return m.actors[matchID] })
}

func (m *Matchmaker) latestActor(ctx context.Context) (*MatchActor, string, error) {
	type res struct {
		actor *MatchActor
		id    string
	}
	out, err := callM(ctx, m, func(m *Matchmaker) res {
		if m.latestMatchID == "" {
			return res{}
		}
		return res{actor: m.actors[m.latestMatchID], id: m.latestMatchID}
	})
	if err != nil {
		return nil, "", err
	}
	return out.actor, out.id, nil
}
