package reputation

import (
	"math"
	"testing"

	"btcupdown/pkg/types"
)

func TestCalculateNoTradesReturnsNeutralWinRate(t *testing.T) {
	t.Parallel()
	s := Calculate(nil)
	if s.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5 for no pairs", s.WinRate)
	}
	if s.ReputationScore != 0 {
		t.Errorf("ReputationScore = %v, want 0 for no pairs", s.ReputationScore)
	}
}

func TestCalculateAllWinnersScoresHigh(t *testing.T) {
	t.Parallel()
	pairs := make([]ClosedPair, 10)
	for i := range pairs {
		pairs[i] = ClosedPair{BuyPrice: 0.50, SellPrice: 0.60, HoldHours: 1}
	}

	s := Calculate(pairs)
	if s.WinRate != 1.0 {
		t.Errorf("WinRate = %v, want 1.0", s.WinRate)
	}
	if s.Consistency != 1.0 {
		t.Errorf("Consistency = %v, want 1.0 (zero dispersion)", s.Consistency)
	}
	if s.ReputationScore <= 5 {
		t.Errorf("ReputationScore = %v, want a high score for an all-winning wallet", s.ReputationScore)
	}
	if types.TierFromScore(s.ReputationScore) != types.TierWhale && types.TierFromScore(s.ReputationScore) != types.TierSmart {
		t.Errorf("tier = %v, want WHALE or SMART for a consistently profitable wallet", types.TierFromScore(s.ReputationScore))
	}
}

func TestCalculateMixedResultsNearExample(t *testing.T) {
	t.Parallel()
	// Reproduces the shape of the spec's worked example: mostly winners with
	// an 8% average gain, 24h average hold.
	var pairs []ClosedPair
	for i := 0; i < 72; i++ {
		pairs = append(pairs, ClosedPair{BuyPrice: 0.50, SellPrice: 0.50 * 1.20, HoldHours: 24})
	}
	for i := 0; i < 48; i++ {
		pairs = append(pairs, ClosedPair{BuyPrice: 0.50, SellPrice: 0.50 * 0.90, HoldHours: 24})
	}

	s := Calculate(pairs)
	if math.Abs(s.WinRate-0.6) > 0.001 {
		t.Errorf("WinRate = %v, want 0.6", s.WinRate)
	}
	if s.Timing <= 0.85 || s.Timing >= 0.87 {
		t.Errorf("Timing = %v, want ~0.857 for a 24h average hold", s.Timing)
	}
	if types.TierFromScore(s.ReputationScore) != types.TierSmart {
		t.Errorf("tier = %v, want SMART", types.TierFromScore(s.ReputationScore))
	}
}

func TestCalculateConfidenceFloorBelowFiveTrades(t *testing.T) {
	t.Parallel()
	pairs := []ClosedPair{{BuyPrice: 0.5, SellPrice: 0.6, HoldHours: 1}}
	s := Calculate(pairs)
	if s.Confidence != lowTradeConfidenceFloor {
		t.Errorf("Confidence = %v, want floor %v for a single trade", s.Confidence, lowTradeConfidenceFloor)
	}
}
