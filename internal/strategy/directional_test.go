package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/internal/feed"
	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

func TestSizeBandIsTotalAndNonOverlapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pct  float64
		want float64
	}{
		{0.0, 0},
		{0.019, 0},
		{0.02, 0.08},
		{0.049, 0.08},
		{0.05, 0.12},
		{0.099, 0.12},
		{0.10, 0.18},
		{0.199, 0.18},
		{0.20, 0.25},
		{1.0, 0.25},
	}
	for _, tc := range cases {
		if got := sizeBand(tc.pct); got != tc.want {
			t.Errorf("sizeBand(%v) = %v, want %v", tc.pct, got, tc.want)
		}
	}
}

func testStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		MaxPositionUSD:    1000,
		AccountBalance:    10000,
		LadderLevels:      5,
		EntryMinuteMin:    3.0,
		EntryMinuteMax:    13.5,
		MaxEntryPrice:     0.75,
		LimitOffset:       0.0,
		LadderSpacing:     0.02,
	}
}

func baseState(minutes float64) MarketState {
	mgr := orderbook.NewManager()
	mgr.Book("up-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.45", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.46", Size: "1000"}},
		"h1",
	)

	return MarketState{
		Market: types.Market{
			UpTokenID:   "up-token",
			DownTokenID: "down-token",
			TickSize:    types.Tick01,
		},
		PriceFeed:          feed.NewState(),
		Books:              mgr,
		MinutesIntoSession: minutes,
	}
}

func TestDirectionalRejectsOutsideMinuteWindow(t *testing.T) {
	t.Parallel()
	d := NewDirectional(testStrategyConfig(), config.RiskConfig{})
	state := baseState(1.0) // below EntryMinuteMin

	sig := d.evaluateEntry(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold outside minute window", sig.Action)
	}
}

func TestDirectionalRejectsChoppyMarket(t *testing.T) {
	t.Parallel()
	d := NewDirectional(testStrategyConfig(), config.RiskConfig{})
	state := baseState(5.0)

	d.reversals.observe("UP")
	d.reversals.observe("DOWN")
	d.reversals.observe("UP")

	sig := d.evaluateEntry(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold for choppy market", sig.Action)
	}
}

func TestDirectionalEntersWhenAllGuardsPass(t *testing.T) {
	t.Parallel()
	d := NewDirectional(testStrategyConfig(), config.RiskConfig{})
	state := baseState(11.0) // >=10 so momentum-alignment guard is not enforced

	// Satisfy trend consistency (3 consecutive UP readings).
	d.trend.observe("UP")
	d.trend.observe("UP")
	d.trend.observe("UP")

	// Satisfy volatility band (CV% in (0.01, 0.5)).
	for _, v := range []float64{0.10, 0.12, 0.11, 0.13, 0.09} {
		d.volatility.observe(v)
	}

	// Set up a meaningful price change and predicted outcome.
	state.PriceFeed.Observe(decimal.NewFromFloat(100000))
	state.PriceFeed.MarkMarketOpen()
	state.PriceFeed.Observe(decimal.NewFromFloat(100300)) // +0.3% -> top size band

	sig := d.evaluateEntry(state, types.PositionState{})
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v (%s), want PlaceOrders", sig.Action, sig.Reason)
	}
	if len(sig.Orders) == 0 {
		t.Error("expected non-empty ladder")
	}
	for _, o := range sig.Orders {
		if o.TokenID != "up-token" {
			t.Errorf("order token = %s, want up-token", o.TokenID)
		}
	}
}

func TestDirectionalRejectsAboveMaxEntryPrice(t *testing.T) {
	t.Parallel()
	cfg := testStrategyConfig()
	cfg.MaxEntryPrice = 0.10 // below the test book's best ask of 0.46
	d := NewDirectional(cfg, config.RiskConfig{})
	state := baseState(11.0)

	d.trend.observe("UP")
	d.trend.observe("UP")
	d.trend.observe("UP")
	for _, v := range []float64{0.10, 0.12, 0.11, 0.13, 0.09} {
		d.volatility.observe(v)
	}
	state.PriceFeed.Observe(decimal.NewFromFloat(100000))
	state.PriceFeed.MarkMarketOpen()
	state.PriceFeed.Observe(decimal.NewFromFloat(100300))

	sig := d.evaluateEntry(state, types.PositionState{})
	if sig.Action != ActionHold {
		t.Errorf("Action = %v, want Hold when best ask exceeds max entry price", sig.Action)
	}
}

func TestRebalanceTriggersOnImbalance(t *testing.T) {
	t.Parallel()
	d := NewDirectional(testStrategyConfig(), config.RiskConfig{})
	state := baseState(20)
	state.Books.Book("down-token").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.51", Size: "1000"}},
		"h2",
	)

	position := types.PositionState{
		UpShares:   decimal.NewFromInt(600),
		DownShares: decimal.NewFromInt(300),
		UpCost:     decimal.NewFromInt(276),
		DownCost:   decimal.NewFromInt(150),
	}

	sig := d.rebalanceIfNeeded(state, position)
	if sig.Action != ActionPlaceOrders {
		t.Fatalf("Action = %v, want PlaceOrders to rebalance lagging DOWN side", sig.Action)
	}
	if sig.Orders[0].TokenID != "down-token" {
		t.Errorf("rebalance token = %s, want down-token", sig.Orders[0].TokenID)
	}
}
