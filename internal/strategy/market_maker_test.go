package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

func TestMarketMakerHoldsWithoutTuning(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig() // Gamma/K left at zero value
	m := NewMarketMaker(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		Books:  mgr,
	}

	sig := m.quote(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold without Gamma/K configured", sig.Action)
	}
}

func TestMarketMakerQuotesBothSides(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.Gamma = 0.1
	cfg.Sigma = 0.02
	cfg.K = 1.5
	cfg.T = 1.0
	m := NewMarketMaker(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		Books:  mgr,
	}

	sig := m.quote(state, types.PositionState{})
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v (%s), want PlaceOrders", sig.Action, sig.Reason)
	}
	if len(sig.Orders) == 0 {
		t.Error("expected at least one quote")
	}
}

// TestMarketMakerSkewsBothSidesOnImbalance holds the books fixed but flips
// the inventory imbalance to confirm the DOWN quote actually moves off its
// own mid instead of tracking 1-UP: a long-UP position should pull the UP
// bid down and push the DOWN bid up relative to the flat-position quote.
func TestMarketMakerSkewsBothSidesOnImbalance(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.Gamma = 1.0
	cfg.Sigma = 0.2236
	cfg.K = 50
	cfg.T = 1.0
	m := NewMarketMaker(cfg)

	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.48", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}}, "h2")

	state := MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick001},
		Books:  mgr,
	}

	flat := m.quote(state, types.PositionState{})
	longUp := m.quote(state, types.PositionState{UpShares: decimal.NewFromInt(100)})

	flatUpBid, flatDownBid := bidsByOutcome(t, flat)
	skewedUpBid, skewedDownBid := bidsByOutcome(t, longUp)

	if !skewedUpBid.LessThan(flatUpBid) {
		t.Errorf("long-UP position should lower the UP bid: flat=%s skewed=%s", flatUpBid, skewedUpBid)
	}
	if !skewedDownBid.GreaterThan(flatDownBid) {
		t.Errorf("long-UP position should raise the DOWN bid: flat=%s skewed=%s", flatDownBid, skewedDownBid)
	}
}

func bidsByOutcome(t *testing.T, sig StrategySignal) (up, down decimal.Decimal) {
	t.Helper()
	for _, o := range sig.Orders {
		price, err := decimal.NewFromString(o.Price)
		if err != nil {
			t.Fatalf("invalid order price %q: %v", o.Price, err)
		}
		switch o.Outcome {
		case types.Up:
			up = price
		case types.Down:
			down = price
		}
	}
	return up, down
}
