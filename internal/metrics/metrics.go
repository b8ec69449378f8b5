// Package metrics centralizes the Prometheus instrumentation the
// orchestration core exposes. Every metric is registered against its own
// *prometheus.Registry (rather than the global default) so that
// constructing a Metrics value is safe to repeat in tests without
// duplicate-registration panics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge/histogram the core updates.
type Metrics struct {
	Registry *prometheus.Registry

	MovesApplied   *prometheus.CounterVec
	MoveRejections *prometheus.CounterVec
	ActiveMatches  prometheus.Gauge
	QueueDepth     prometheus.Gauge
	EventAppendLatency prometheus.Histogram
	SubscriberDrops    prometheus.Counter
	MatchesEnded       *prometheus.CounterVec
}

// New builds a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		MovesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fightclaw_moves_applied_total",
			Help: "Accepted moves applied to match state, labeled by action.",
		}, []string{"action"}),
		MoveRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fightclaw_move_rejections_total",
			Help: "Rejected submitMove calls, labeled by rejection code.",
		}, []string{"code"}),
		ActiveMatches: f.NewGauge(prometheus.GaugeOpts{
			Name: "fightclaw_active_matches",
			Help: "Number of matches started and not yet ended.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "fightclaw_queue_depth",
			Help: "1 if an agent is currently pending in the matchmaker queue, else 0.",
		}),
		EventAppendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fightclaw_event_append_duration_seconds",
			Help:    "Latency of appending a match_events row to the store.",
			Buckets: prometheus.DefBuckets,
		}),
		SubscriberDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "fightclaw_subscriber_drops_total",
			Help: "Subscribers disconnected for falling behind the backlog bound.",
		}),
		MatchesEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fightclaw_matches_ended_total",
			Help: "Matches ended, labeled by end reason.",
		}, []string{"reason"}),
	}
}

// ObserveAppendLatency records how long a store.AppendEvent call took.
func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.EventAppendLatency.Observe(d.Seconds())
}

// IncMoveApplied records one accepted move for action.
func (m *Metrics) IncMoveApplied(action string) {
	if m == nil {
		return
	}
	m.MovesApplied.WithLabelValues(action).Inc()
}

// IncMoveRejection records one rejected submitMove call for code.
func (m *Metrics) IncMoveRejection(code string) {
	if m == nil {
		return
	}
	m.MoveRejections.WithLabelValues(code).Inc()
}

// IncMatchEnded records one match ending for reason.
func (m *Metrics) IncMatchEnded(reason string) {
	if m == nil {
		return
	}
	m.MatchesEnded.WithLabelValues(reason).Inc()
}

// IncSubscriberDrop records one subscriber dropped for falling behind.
func (m *Metrics) IncSubscriberDrop() {
	if m == nil {
		return
	}
	m.SubscriberDrops.Inc()
}

// SetQueueDepth records whether the matchmaker's pending slot is occupied.
func (m *Metrics) SetQueueDepth(v float64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(v)
}

// AddActiveMatches adjusts the active-match gauge by delta.
func (m *Metrics) AddActiveMatches(delta float64) {
	if m == nil {
		return
	}
	m.ActiveMatches.Add(delta)
}
