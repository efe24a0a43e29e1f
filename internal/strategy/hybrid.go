package strategy

import (
	"sync"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// Hybrid composes the ladder entry of Directional with the exit discipline
// of Scalper and the entry rule of Momentum: Directional's guarded ladder
// opens the position, Scalper's take-profit/stop-loss watches it, and on an
// orderbook update where both of those hold, Momentum's confidence-sized BUY
// on the predicted side is tried. Hybrid does not top up the lagging side
// from momentum signals.
type Hybrid struct {
	directional *Directional
	scalper     *Scalper
	momentum    *Momentum

	metrics Metrics
	mu      sync.Mutex
}

// NewHybrid creates the Hybrid strategy from its three constituents'
// configuration.
func NewHybrid(cfg config.StrategyConfig, riskCfg config.RiskConfig) *Hybrid {
	return &Hybrid{
		directional: NewDirectional(cfg, riskCfg),
		scalper:     NewScalper(cfg),
		momentum:    NewMomentum(cfg),
		metrics:     Metrics{Name: "hybrid"},
	}
}

func (h *Hybrid) Name() string { return "hybrid" }

func (h *Hybrid) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting entry window")
}

func (h *Hybrid) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	if sig := h.directional.OnOrderbookUpdate(state, position); sig.Action != ActionHold {
		return sig
	}
	if sig := h.scalper.checkExit(state, position); sig.Action != ActionHold {
		return sig
	}
	return h.momentum.evaluate(state)
}

func (h *Hybrid) OnTick(state MarketState, position types.PositionState) StrategySignal {
	if sig := h.directional.OnTick(state, position); sig.Action != ActionHold {
		return sig
	}
	return h.scalper.checkExit(state, position)
}

func (h *Hybrid) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	h.mu.Lock()
	h.metrics.TradeCount++
	h.mu.Unlock()
	h.directional.OnFill(state, fill, position)
	return h.scalper.checkExit(state, position)
}

func (h *Hybrid) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return CancelAll("pre-resolution window reached")
}

func (h *Hybrid) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()

	winningShares := final.DownShares
	if resolvedOutcome == types.Up {
		winningShares = final.UpShares
	}
	pnl := winningShares.Sub(final.TotalCost())
	h.metrics.RealizedPnL = h.metrics.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		h.metrics.WinCount++
	}

	h.directional.RecordSessionResult(final, resolvedOutcome)
	h.scalper.RecordSessionResult(final, resolvedOutcome)
	h.momentum.RecordSessionResult(final, resolvedOutcome)
}

func (h *Hybrid) Metrics() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}
