package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

func TestPureArbitrageEntersOnGuaranteedMargin(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	a := NewPureArbitrage(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.45", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		Books:  mgr,
	}

	sig := a.OnOrderbookUpdate(state, types.PositionState{})
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v (%s), want PlaceOrders for 0.95 combined ask", sig.Action, sig.Reason)
	}
	if len(sig.Orders) != 2 {
		t.Errorf("len(Orders) = %d, want 2", len(sig.Orders))
	}

	// A second update should not re-enter.
	sig = a.OnOrderbookUpdate(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold after already committed", sig.Action)
	}
}

func TestPureArbitrageHoldsWithoutMargin(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	a := NewPureArbitrage(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.55", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		Books:  mgr,
	}

	sig := a.OnOrderbookUpdate(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold for 1.05 combined ask", sig.Action)
	}
}

// TestPureArbitrageBuysEqualShareCounts guards the guaranteed-payout
// property: with asymmetric asks, splitting the budget by equal dollars per
// leg (rather than equal shares) would leave one leg naked. Both legs must
// come out to the same share count regardless of how far apart the asks are.
func TestPureArbitrageBuysEqualShareCounts(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	a := NewPureArbitrage(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.40", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.55", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		Books:  mgr,
	}

	sig := a.OnOrderbookUpdate(state, types.PositionState{})
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v (%s), want PlaceOrders for 0.95 combined ask", sig.Action, sig.Reason)
	}
	if len(sig.Orders) != 2 {
		t.Fatalf("len(Orders) = %d, want 2", len(sig.Orders))
	}

	upSize, err := decimal.NewFromString(sig.Orders[0].Size)
	if err != nil {
		t.Fatalf("invalid up size %q: %v", sig.Orders[0].Size, err)
	}
	downSize, err := decimal.NewFromString(sig.Orders[1].Size)
	if err != nil {
		t.Fatalf("invalid down size %q: %v", sig.Orders[1].Size, err)
	}
	if !upSize.Equal(downSize) {
		t.Errorf("up size %s != down size %s, want equal share counts for a hedged lock", upSize, downSize)
	}
}
