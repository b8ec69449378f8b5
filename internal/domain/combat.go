package domain

import "fightclaw/internal/engine"

// attackPower and defensePower are small deterministic integer formulas so
// combat outcomes never depend on floating point or on RNG: the same board
// state and the same attack always resolve the same way, which is required
// for the match actor's replay/idempotency guarantees upstream.
func attackPower(amount, unitQuality int) int {
	return amount * (10 + unitQuality*2)
}

func defensePower(garrison, defenseTier, unitQuality int) int {
	return garrison * (10 + defenseTier*2 + unitQuality*2)
}

// resolveAttack mutates (a clone of) the board in place: attacker loses the
// committed amount from the source zone; if attack power exceeds defense
// power the target zone is captured with a garrison proportional to the
// margin, otherwise the defender's garrison is worn down proportionally.
func resolveAttack(b *Board, fromID, toID int, amount int, attacker string) engine.Event {
	from, _ := b.zone(fromID)
	to, _ := b.zone(toID)

	atk := attackPower(amount, from.UnitQuality)
	def := defensePower(to.Garrison, to.DefenseTier, to.UnitQuality)

	from.Garrison -= amount

	if atk > def {
		captured := (atk - def) / 10
		if captured < 1 {
			captured = 1
		}
		to.Owner = attacker
		to.Garrison = captured
		to.DefenseTier = 0
		to.UnitQuality = 0
		return engine.Event{Kind: "zone_captured", Payload: map[string]any{
			"zone": toID, "by": attacker, "garrison": captured,
		}}
	}

	loss := atk / (10 + to.DefenseTier*2)
	if loss > to.Garrison {
		loss = to.Garrison
	}
	to.Garrison -= loss
	return engine.Event{Kind: "attack_repelled", Payload: map[string]any{
		"zone": toID, "attacker": attacker, "defenderLoss": loss,
	}}
}
