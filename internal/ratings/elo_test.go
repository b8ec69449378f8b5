package ratings

import (
	"math"
	"testing"
)

func TestUpdateWinnerGainsLoserLoses(t *testing.T) {
	newWinner := Update(32, 1500, 1500, ScoreWin)
	newLoser := Update(32, 1500, 1500, ScoreLoss)

	if newWinner <= 1500 {
		t.Fatalf("winner rating = %v, want > 1500", newWinner)
	}
	if newLoser >= 1500 {
		t.Fatalf("loser rating = %v, want < 1500", newLoser)
	}
	winnerDelta := math.Round((newWinner - 1500) * 1000)
	loserDelta := math.Round((newLoser - 1500) * 1000)
	if winnerDelta != -loserDelta {
		t.Fatalf("equal-rated win/loss deltas should be symmetric: winner delta %v, loser delta %v", winnerDelta, loserDelta)
	}
}

func TestUpdateDrawEqualRatingsNoChange(t *testing.T) {
	got := Update(32, 1500, 1500, ScoreDraw)
	if got != 1500 {
		t.Fatalf("Update(draw, equal ratings) = %v, want 1500", got)
	}
}

func TestScoreForDrawIsHalf(t *testing.T) {
	if ScoreFor("alpha", "") != ScoreDraw {
		t.Fatalf("ScoreFor draw = %v, want ScoreDraw", ScoreFor("alpha", ""))
	}
	if ScoreFor("alpha", "alpha") != ScoreWin {
		t.Fatalf("ScoreFor win = %v, want ScoreWin", ScoreFor("alpha", "alpha"))
	}
	if ScoreFor("alpha", "beta") != ScoreLoss {
		t.Fatalf("ScoreFor loss = %v, want ScoreLoss", ScoreFor("alpha", "beta"))
	}
}
