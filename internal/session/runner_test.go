package session

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

func TestImbalanceFlagsAggressiveThreshold(t *testing.T) {
	t.Parallel()
	p := types.PositionState{UpShares: decimal.NewFromInt(145), DownShares: decimal.NewFromInt(100)}
	ratio, aggressive := Imbalance(p)
	if aggressive {
		t.Errorf("ratio=%v should be below the aggressive threshold", ratio)
	}

	p2 := types.PositionState{UpShares: decimal.NewFromInt(200), DownShares: decimal.NewFromInt(100)}
	ratio2, aggressive2 := Imbalance(p2)
	if !aggressive2 {
		t.Errorf("ratio=%v should cross the aggressive threshold", ratio2)
	}
}

func TestImbalanceZeroForEmptyPosition(t *testing.T) {
	t.Parallel()
	ratio, aggressive := Imbalance(types.PositionState{})
	if ratio != 0 || aggressive {
		t.Errorf("Imbalance(empty) = (%v, %v), want (0, false)", ratio, aggressive)
	}
}
