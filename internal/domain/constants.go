package domain

// Tuning constants for the Outpost reference engine. These govern gameplay
// balance only; none of them are read by the orchestration core.
const (
	startingGarrison = 5
	startingSupply   = 3
	actionsPerTurn   = 3
	supplyIncome     = 2

	recruitCost = 2
	fortifyCost = 3
	upgradeCost = 3

	maxTier = 3

	// MaxHalfTurns bounds total active-player rotations before the match is
	// declared a draw by exhaustion. Expressed in half-turns (one per
	// rotation, i.e. two per full round) to keep State.Turn a simple
	// monotonic counter.
	MaxHalfTurns = 80
)
