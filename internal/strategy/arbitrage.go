package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// minArbitrageProfit is the minimum guaranteed per-dollar profit (1 -
// combined cost) required before PureArbitrage will commit capital.
var minArbitrageProfit = decimal.NewFromFloat(0.01)

// PureArbitrage buys both sides of the UP/DOWN pair whenever their combined
// best-ask cost is at least minArbitrageProfit below the $1 of guaranteed
// payout, then holds to
// resolution — the one side that loses exactly offsets the other, with the
// discount to $1 as locked-in profit.
type PureArbitrage struct {
	cfg config.StrategyConfig

	entered bool
	metrics Metrics
	mu      sync.Mutex
}

// NewPureArbitrage creates the Pure Arbitrage strategy.
func NewPureArbitrage(cfg config.StrategyConfig) *PureArbitrage {
	return &PureArbitrage{cfg: cfg, metrics: Metrics{Name: "pure_arbitrage"}}
}

func (a *PureArbitrage) Name() string { return "pure_arbitrage" }

func (a *PureArbitrage) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting first book")
}

func (a *PureArbitrage) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	a.mu.Lock()
	alreadyEntered := a.entered
	a.mu.Unlock()
	if alreadyEntered {
		return Hold("already committed")
	}

	upAsk, _, okUp := state.Books.Book(state.Market.UpTokenID).BestAsk()
	downAsk, _, okDown := state.Books.Book(state.Market.DownTokenID).BestAsk()
	if !okUp || !okDown {
		return Hold("no two-sided book available")
	}

	combined := upAsk.Add(downAsk)
	one := decimal.NewFromInt(1)
	if combined.GreaterThanOrEqual(one.Sub(minArbitrageProfit)) {
		return Hold("no arbitrage margin")
	}

	// Equal share counts on both legs, not equal dollars per leg: the
	// guaranteed-payout property (one side pays $1/share, the other $0)
	// only holds when both legs hold the same number of shares.
	totalUSD := decimal.NewFromFloat(a.cfg.MaxPositionUSD)
	shares := totalUSD.Div(combined)

	orders := []types.OrderIntent{
		{
			TokenID: state.Market.UpTokenID,
			Outcome: types.Up,
			Price:   upAsk.String(),
			Size:    shares.String(),
			Side:    types.BUY,
		},
		{
			TokenID: state.Market.DownTokenID,
			Outcome: types.Down,
			Price:   downAsk.String(),
			Size:    shares.String(),
			Side:    types.BUY,
		},
	}

	a.mu.Lock()
	a.entered = true
	a.mu.Unlock()

	return PlaceOrders(orders, "locked-in arbitrage margin")
}

func (a *PureArbitrage) OnTick(state MarketState, position types.PositionState) StrategySignal {
	return Hold("holding to resolution")
}

func (a *PureArbitrage) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	a.mu.Lock()
	a.metrics.TradeCount++
	a.mu.Unlock()
	return Hold("fill recorded")
}

func (a *PureArbitrage) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return CancelAll("pre-resolution window reached")
}

func (a *PureArbitrage) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pnl := final.LockedProfit()
	a.metrics.RealizedPnL = a.metrics.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		a.metrics.WinCount++
	}
}

func (a *PureArbitrage) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}
