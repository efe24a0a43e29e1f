package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPositionStateGuaranteedPayout(t *testing.T) {
	t.Parallel()

	p := PositionState{
		UpShares:   decimal.NewFromInt(600),
		DownShares: decimal.NewFromInt(450),
		UpCost:     decimal.NewFromFloat(288),
		DownCost:   decimal.NewFromFloat(207),
	}

	if got := p.MinShares(); !got.Equal(decimal.NewFromInt(450)) {
		t.Errorf("MinShares() = %s, want 450", got)
	}
	if got := p.GuaranteedPayout(); !got.Equal(decimal.NewFromInt(450)) {
		t.Errorf("GuaranteedPayout() = %s, want 450", got)
	}

	// Invariant: locked_profit + total_cost = guaranteed_payout.
	sum := p.LockedProfit().Add(p.TotalCost())
	if !sum.Equal(p.GuaranteedPayout()) {
		t.Errorf("LockedProfit()+TotalCost() = %s, want %s", sum, p.GuaranteedPayout())
	}
}

func TestPositionStateImbalance(t *testing.T) {
	t.Parallel()

	p := PositionState{UpShares: decimal.NewFromInt(600), DownShares: decimal.NewFromInt(450)}
	imb := p.Imbalance()
	want := decimal.NewFromFloat(150.0 / 525.0)
	if imb.Sub(want).Abs().GreaterThan(decimal.NewFromFloat(0.001)) {
		t.Errorf("Imbalance() = %s, want ~%s", imb, want)
	}
	if p.IsBalanced() {
		t.Error("IsBalanced() = true, want false for 28.6% imbalance")
	}
}

func TestPositionStateIsBalancedEmpty(t *testing.T) {
	t.Parallel()

	var p PositionState
	if !p.IsBalanced() {
		t.Error("IsBalanced() = false for an empty position, want true")
	}
}

func TestTierFromScoreBandingIsTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  TraderTier
	}{
		{9.9, TierWhale},
		{8.0, TierWhale},
		{7.99, TierSmart},
		{6.0, TierSmart},
		{5.99, TierAverage},
		{4.0, TierAverage},
		{3.99, TierNovice},
		{2.0, TierNovice},
		{1.99, TierDegen},
		{0.0, TierDegen},
	}

	for _, tt := range tests {
		if got := TierFromScore(tt.score); got != tt.want {
			t.Errorf("TierFromScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
