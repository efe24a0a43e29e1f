package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// Scalper enters on a momentum-aligned move, sized at MaxPositionUSD worth of
// shares at the best ask, then exits the whole position as soon as price moves
// TakeProfitPrice in its favor or StopLossPrice against it — it never waits
// for resolution.
type Scalper struct {
	cfg     config.StrategyConfig
	entered bool
	side    types.Outcome
	metrics Metrics
	mu      sync.Mutex
}

// NewScalper creates the Scalper strategy.
func NewScalper(cfg config.StrategyConfig) *Scalper {
	return &Scalper{cfg: cfg, metrics: Metrics{Name: "scalper"}}
}

func (s *Scalper) Name() string { return "scalper" }

func (s *Scalper) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting entry signal")
}

func (s *Scalper) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	s.mu.Lock()
	entered := s.entered
	s.mu.Unlock()
	if entered {
		return s.checkExit(state, position)
	}
	return s.tryEnter(state)
}

func (s *Scalper) OnTick(state MarketState, position types.PositionState) StrategySignal {
	s.mu.Lock()
	entered := s.entered
	s.mu.Unlock()
	if entered {
		return s.checkExit(state, position)
	}
	return s.tryEnter(state)
}

func (s *Scalper) tryEnter(state MarketState) StrategySignal {
	if !state.PriceFeed.IsMomentumAligned() {
		return Hold("momentum not aligned")
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
	if bestAsk.GreaterThan(decimal.NewFromFloat(s.cfg.MaxEntryPrice)) {
		return Hold("best ask above max entry price")
	}

	totalUSD := decimal.NewFromFloat(s.cfg.MaxPositionUSD)
	size := totalUSD.Div(bestAsk)

	s.mu.Lock()
	s.entered = true
	s.side = outcome
	s.mu.Unlock()

	return PlaceOrders([]types.OrderIntent{{
		TokenID: tokenID,
		Outcome: outcome,
		Price:   bestAsk.String(),
		Size:    size.String(),
		Side:    types.BUY,
	}}, "momentum entry")
}

// checkExit compares the current best bid on the held side against average
// entry cost and exits on either threshold.
func (s *Scalper) checkExit(state MarketState, position types.PositionState) StrategySignal {
	s.mu.Lock()
	side := s.side
	s.mu.Unlock()

	shares, cost := position.UpShares, position.UpCost
	tokenID := state.Market.UpTokenID
	if side == types.Down {
		shares, cost = position.DownShares, position.DownCost
		tokenID = state.Market.DownTokenID
	}
	if shares.IsZero() {
		return Hold("no open shares to manage")
	}
	avgEntry := cost.Div(shares)

	bestBid, _, ok := state.Books.Book(tokenID).BestBid()
	if !ok {
		return Hold("no best bid available")
	}

	move := bestBid.Sub(avgEntry)
	takeProfit := decimal.NewFromFloat(s.cfg.TakeProfitPrice)
	stopLoss := decimal.NewFromFloat(s.cfg.StopLossPrice)

	if takeProfit.IsPositive() && move.GreaterThanOrEqual(takeProfit) {
		return ExitPosition("take profit reached")
	}
	if stopLoss.IsPositive() && move.LessThanOrEqual(stopLoss.Neg()) {
		return ExitPosition("stop loss reached")
	}
	return Hold("holding scalp position")
}

func (s *Scalper) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	s.mu.Lock()
	s.metrics.TradeCount++
	s.mu.Unlock()
	return s.checkExit(state, position)
}

func (s *Scalper) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return ExitPosition("pre-resolution window reached")
}

func (s *Scalper) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	winningShares := final.DownShares
	if resolvedOutcome == types.Up {
		winningShares = final.UpShares
	}
	pnl := winningShares.Sub(final.TotalCost())
	s.metrics.RealizedPnL = s.metrics.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		s.metrics.WinCount++
	}
}

func (s *Scalper) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
