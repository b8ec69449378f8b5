package app

import "time"

// Defaults for the runtime tuning knobs. config.Config overrides these
// at startup; components fall back to these constants only in tests that
// construct a MatchActor/Matchmaker directly without a config.
const (
	DefaultTurnTimeout       = 30 * time.Second
	DefaultDisconnectGrace   = 60 * time.Second
	DefaultEventWaitMax      = 30 * time.Second
	DefaultPerAgentBufferCap = 25
	DefaultSubscriberBacklog = 256

	// DefaultIdempotencyRetention is how long idempotency records outlive
	// match end before the actor is released.
	DefaultIdempotencyRetention = 24 * time.Hour

	// DefaultEloK is the rating formula's K factor; configurable via
	// MATCH_ELO_K.
	DefaultEloK = 32.0
)
