package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// momentumMinConfidence is the floor MomentumConfidence() must clear before
// Momentum commits capital.
const momentumMinConfidence = 30.0

// Momentum buys the trending side sized in direct proportion to
// feed.State.MomentumConfidence(), without Directional's choppiness/trend/
// volatility guards — it reacts to every update, not just a settled trend.
type Momentum struct {
	cfg     config.StrategyConfig
	entered bool
	metrics Metrics
	mu      sync.Mutex
}

// NewMomentum creates the Momentum strategy.
func NewMomentum(cfg config.StrategyConfig) *Momentum {
	return &Momentum{cfg: cfg, metrics: Metrics{Name: "momentum"}}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting momentum signal")
}

func (m *Momentum) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	return m.evaluate(state)
}

func (m *Momentum) OnTick(state MarketState, position types.PositionState) StrategySignal {
	return m.evaluate(state)
}

func (m *Momentum) evaluate(state MarketState) StrategySignal {
	m.mu.Lock()
	alreadyEntered := m.entered
	m.mu.Unlock()
	if alreadyEntered {
		return Hold("already entered this session")
	}

	confidence := state.PriceFeed.MomentumConfidence()
	if confidence < momentumMinConfidence {
		return Hold("momentum confidence below threshold")
	}

	predicted := state.PriceFeed.PredictedOutcome()
	if predicted == "" {
		return Hold("no predicted outcome")
	}

	outcome := types.Up
	tokenID := state.Market.UpTokenID
	if predicted == "DOWN" {
		outcome = types.Down
		tokenID = state.Market.DownTokenID
	}

	bestAsk, _, ok := state.Books.Book(tokenID).BestAsk()
	if !ok {
		return Hold("no best ask available")
	}
	if bestAsk.GreaterThan(decimal.NewFromFloat(m.cfg.MaxEntryPrice)) {
		return Hold("best ask above max entry price")
	}

	fraction := decimal.NewFromFloat(confidence / 100)
	totalUSD := fraction.Mul(decimal.NewFromFloat(m.cfg.AccountBalance))
	size := totalUSD.Div(bestAsk)

	m.mu.Lock()
	m.entered = true
	m.mu.Unlock()

	return PlaceOrders([]types.OrderIntent{{
		TokenID: tokenID,
		Outcome: outcome,
		Price:   bestAsk.String(),
		Size:    size.String(),
		Side:    types.BUY,
	}}, "momentum confidence entry")
}

func (m *Momentum) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	m.mu.Lock()
	m.metrics.TradeCount++
	m.mu.Unlock()
	return Hold("fill recorded")
}

func (m *Momentum) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return CancelAll("pre-resolution window reached")
}

func (m *Momentum) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	winningShares := final.DownShares
	if resolvedOutcome == types.Up {
		winningShares = final.UpShares
	}
	pnl := winningShares.Sub(final.TotalCost())
	m.metrics.RealizedPnL = m.metrics.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		m.metrics.WinCount++
	}
}

func (m *Momentum) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}
