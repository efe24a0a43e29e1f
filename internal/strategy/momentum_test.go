package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/feed"
	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

func momentumState() MarketState {
	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.46", Size: "1000"}}, "h1")
	mgr.Book("down-token").ApplySnapshot(nil, []types.PriceLevel{{Price: "0.55", Size: "1000"}}, "h2")

	return MarketState{
		Market: types.Market{UpTokenID: "up-token", DownTokenID: "down-token", TickSize: types.Tick01},
		PriceFeed: feed.NewState(),
		Books:     mgr,
	}
}

func TestMomentumHoldsBelowConfidenceThreshold(t *testing.T) {
	t.Parallel()
	m := NewMomentum(testStrategyConfig())
	state := momentumState()
	state.PriceFeed.Observe(decimal.NewFromFloat(100000))
	state.PriceFeed.MarkMarketOpen()
	state.PriceFeed.Observe(decimal.NewFromFloat(100001)) // negligible move

	sig := m.evaluate(state)
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold for negligible momentum", sig.Action)
	}
}

func TestMomentumEntersOnStrongMove(t *testing.T) {
	t.Parallel()
	m := NewMomentum(testStrategyConfig())
	state := momentumState()
	state.PriceFeed.Observe(decimal.NewFromFloat(100000))
	state.PriceFeed.MarkMarketOpen()
	state.PriceFeed.Observe(decimal.NewFromFloat(103000)) // +3% move saturates magnitude term

	sig := m.evaluate(state)
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v (%s), want PlaceOrders", sig.Action, sig.Reason)
	}
	if sig.Orders[0].TokenID != "up-token" {
		t.Errorf("token = %s, want up-token", sig.Orders[0].TokenID)
	}

	// Already entered, second evaluation should hold.
	sig = m.evaluate(state)
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold after entry", sig.Action)
	}
}
