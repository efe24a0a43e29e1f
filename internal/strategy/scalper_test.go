package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

func TestScalperExitsOnTakeProfit(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.TakeProfitPrice = 0.05
	cfg.StopLossPrice = 0.05
	s := NewScalper(cfg)
	s.entered = true
	s.side = types.Up

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot([]types.PriceLevel{{Price: "0.56", Size: "1000"}}, nil, "h1")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token"},
		Books:  mgr,
	}
	position := types.PositionState{
		UpShares: decimal.NewFromInt(200),
		UpCost:   decimal.NewFromInt(100), // avg entry 0.50, bid now 0.56 -> +0.06 move
	}

	sig := s.checkExit(state, position)
	if sig.Action != ActionExitPosition {
		t.Fatalf("Action = %v (%s), want ExitPosition on take profit", sig.Action, sig.Reason)
	}
}

func TestScalperExitsOnStopLoss(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.TakeProfitPrice = 0.05
	cfg.StopLossPrice = 0.05
	s := NewScalper(cfg)
	s.entered = true
	s.side = types.Up

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot([]types.PriceLevel{{Price: "0.40", Size: "1000"}}, nil, "h1")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token"},
		Books:  mgr,
	}
	position := types.PositionState{
		UpShares: decimal.NewFromInt(200),
		UpCost:   decimal.NewFromInt(100), // avg entry 0.50, bid now 0.40 -> -0.10 move
	}

	sig := s.checkExit(state, position)
	if sig.Action != ActionExitPosition {
		t.Fatalf("Action = %v (%s), want ExitPosition on stop loss", sig.Action, sig.Reason)
	}
}

func TestScalperHoldsWithinThresholds(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.TakeProfitPrice = 0.05
	cfg.StopLossPrice = 0.05
	s := NewScalper(cfg)
	s.entered = true
	s.side = types.Up

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot([]types.PriceLevel{{Price: "0.51", Size: "1000"}}, nil, "h1")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token"},
		Books:  mgr,
	}
	position := types.PositionState{
		UpShares: decimal.NewFromInt(200),
		UpCost:   decimal.NewFromInt(100),
	}

	sig := s.checkExit(state, position)
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold within thresholds", sig.Action)
	}
}
