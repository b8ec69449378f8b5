package app

import (
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// subscriber is one live consumer of a match's event stream. agentID is
// empty for a spectator subscription. Subscriber bookkeeping is only ever
// touched from the owning MatchActor's single mailbox goroutine, so this
// struct needs no lock of its own.
type subscriber struct {
	id      uint64
	agentID string
	ch      chan WireEvent
	done    bool
}

// targeted reports whether ev should be delivered to s: events with no
// Recipients are broadcast to every subscriber (spectators included);
// events with Recipients are delivered only to matching agent ids (used
// for your_turn).
func (s *subscriber) targeted(ev WireEvent) bool {
	if len(ev.Recipients) == 0 {
		return true
	}
	if s.agentID == "" {
		return false
	}
	return lo.Contains(ev.Recipients, s.agentID)
}

// broadcast delivers ev to every live subscriber it targets. Subscribers
// are visited in map order, so the order across subscribers is unspecified;
// each subscriber's own stream keeps broadcast order. A subscriber whose
// channel is full is dropped rather than allowed to block the match actor
// or any other subscriber.
func (a *MatchActor) broadcast(ev WireEvent) {
	for id, sub := range a.subscribers {
		if sub.done || !sub.targeted(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			a.logger.Warn("dropping slow subscriber",
				zap.String("matchId", a.id),
				zap.Uint64("subscriberId", id),
			)
			a.metrics.IncSubscriberDrop()
			a.dropSubscriber(id)
		}
	}
}

func (a *MatchActor) dropSubscriber(id uint64) {
	sub, ok := a.subscribers[id]
	if !ok {
		return
	}
	sub.done = true
	close(sub.ch)
	delete(a.subscribers, id)
}

func (a *MatchActor) closeAllSubscribers() {
	for id := range a.subscribers {
		a.dropSubscriber(id)
	}
}
