package strategy

import (
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"btcupdown/internal/decimalx"
	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// reversalTracker counts direction flips in the recent predicted-outcome
// history — the "choppiness" signal guard 2 checks.
type reversalTracker struct {
	mu        sync.Mutex
	last      string
	reversals int
}

func (r *reversalTracker) observe(predicted string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if predicted == "" {
		return
	}
	if r.last != "" && r.last != predicted {
		r.reversals++
	}
	r.last = predicted
}

func (r *reversalTracker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reversals
}

// trendTracker counts consecutive same-direction readings — guard 3.
type trendTracker struct {
	mu          sync.Mutex
	last        string
	consecutive int
}

func (t *trendTracker) observe(predicted string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if predicted == "" {
		t.consecutive = 0
		t.last = ""
		return
	}
	if predicted == t.last {
		t.consecutive++
	} else {
		t.consecutive = 1
		t.last = predicted
	}
}

func (t *trendTracker) consecutiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutive
}

// volatilityTracker computes the coefficient of variation (stddev/mean) of
// recent percentage changes — guard 4.
type volatilityTracker struct {
	mu      sync.Mutex
	samples []float64
}

const volatilityWindow = 30

func (v *volatilityTracker) observe(pctChange float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.samples = append(v.samples, pctChange)
	if len(v.samples) > volatilityWindow {
		v.samples = v.samples[len(v.samples)-volatilityWindow:]
	}
}

func (v *volatilityTracker) coefficientOfVariation() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.samples)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, s := range v.samples {
		sum += s
	}
	mean := sum / float64(n)
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, s := range v.samples {
		sq += (s - mean) * (s - mean)
	}
	stddev := math.Sqrt(sq / float64(n))
	return math.Abs(stddev / mean)
}

// sizeBand maps |btc_change_pct| to a risk fraction of account balance.
// Total and non-overlapping: exactly one band matches any input.
func sizeBand(absChangePct float64) float64 {
	switch {
	case absChangePct < 0.02:
		return 0
	case absChangePct < 0.05:
		return 0.08
	case absChangePct < 0.10:
		return 0.12
	case absChangePct < 0.20:
		return 0.18
	default:
		return 0.25
	}
}

// Directional is the core strategy: enters a single-side ladder when a
// sequence of ordered guards all pass, then rebalances toward an even
// UP/DOWN position as fills arrive.
type Directional struct {
	cfg    config.StrategyConfig
	riskCfg config.RiskConfig

	reversals  reversalTracker
	trend      trendTracker
	volatility volatilityTracker

	entered bool
	metrics Metrics
	mu      sync.Mutex
}

// NewDirectional creates the Directional strategy.
func NewDirectional(cfg config.StrategyConfig, riskCfg config.RiskConfig) *Directional {
	return &Directional{cfg: cfg, riskCfg: riskCfg, metrics: Metrics{Name: "directional"}}
}

func (d *Directional) Name() string { return "directional" }

func (d *Directional) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting entry window")
}

func (d *Directional) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	predicted := state.PriceFeed.PredictedOutcome()
	d.reversals.observe(predicted)
	d.trend.observe(predicted)

	if pct, ok := state.PriceFeed.PriceChangePct(); ok {
		v, _ := pct.Float64()
		d.volatility.observe(v)
	}

	return d.evaluateEntry(state, position)
}

func (d *Directional) OnTick(state MarketState, position types.PositionState) StrategySignal {
	if sig := d.evaluateEntry(state, position); sig.Action != ActionHold {
		return sig
	}
	return d.rebalanceIfNeeded(state, position)
}

// evaluateEntry runs the 7 ordered guards from spec §4.7. Any failing guard
// short-circuits with a Hold naming the guard that failed.
func (d *Directional) evaluateEntry(state MarketState, position types.PositionState) StrategySignal {
	d.mu.Lock()
	alreadyEntered := d.entered
	d.mu.Unlock()
	if alreadyEntered {
		return Hold("already entered this session")
	}

	// Guard 1: minute window.
	minute := state.MinutesIntoSession
	if minute < d.cfg.EntryMinuteMin || minute > d.cfg.EntryMinuteMax {
		return Hold("outside entry minute window")
	}

	// Guard 2: choppiness.
	if d.reversals.count() >= 2 {
		return Hold("choppy: too many reversals")
	}

	// Guard 3: trend consistency.
	if d.trend.consecutiveCount() < 3 {
		return Hold("trend not yet consistent")
	}

	// Guard 4: volatility band.
	cv := d.volatility.coefficientOfVariation()
	if cv > 0.5 {
		return Hold("volatility too wild")
	}
	if cv < 0.01 {
		return Hold("volatility dead")
	}

	// Guard 5: momentum alignment, only enforced before minute 10.
	if minute < 10 && !state.PriceFeed.IsMomentumAligned() {
		return Hold("momentum not aligned")
	}

	predicted := state.PriceFeed.PredictedOutcome()
	if predicted == "" {
		return Hold("no predicted outcome")
	}

	pctChange, ok := state.PriceFeed.PriceChangePct()
	if !ok {
		return Hold("no price-change baseline")
	}
	absChangePct, _ := pctChange.Abs().Float64()

	// Guard 6: confidence band & size.
	fraction := sizeBand(absChangePct)
	if fraction == 0 {
		return Hold("change below minimum confidence band")
	}

	outcome := types.Up
	tokenID := state.Market.UpTokenID
	if predicted == "DOWN" {
		outcome = types.Down
		tokenID = state.Market.DownTokenID
	}

	// Guard 7: best-ask gate.
	bestAsk, _, ok := state.Books.Book(tokenID).BestAsk()
	if !ok {
		return Hold("no best ask available")
	}
	maxEntry := decimal.NewFromFloat(d.cfg.MaxEntryPrice)
	if bestAsk.GreaterThan(maxEntry) {
		return Hold("best ask above max entry price")
	}

	totalUSD := decimal.NewFromFloat(fraction * d.cfg.AccountBalance)
	orders := d.buildLadder(tokenID, outcome, bestAsk, totalUSD, state.Market.TickSize)
	if len(orders) == 0 {
		return Hold("ladder produced no viable orders")
	}

	d.mu.Lock()
	d.entered = true
	d.mu.Unlock()

	return PlaceOrders(orders, fmt.Sprintf("entry guards passed, predicted=%s", predicted))
}

// buildLadder decomposes totalUSD across LadderLevels at decreasing prices
// best_ask - limit_offset - k*ladder_spacing, floor-clamped at 0.01 and
// snapped to tick.
func (d *Directional) buildLadder(tokenID string, outcome types.Outcome, bestAsk, totalUSD decimal.Decimal, tick types.TickSize) []types.OrderIntent {
	levels := d.cfg.LadderLevels
	if levels <= 0 {
		levels = 1
	}

	perLevelUSD := totalUSD.Div(decimal.NewFromInt(int64(levels)))
	limitOffset := decimal.NewFromFloat(d.cfg.LimitOffset)
	spacing := decimal.NewFromFloat(d.cfg.LadderSpacing)
	floor := decimal.NewFromFloat(0.01)

	var orders []types.OrderIntent
	for k := 0; k < levels; k++ {
		price := bestAsk.Sub(limitOffset).Sub(spacing.Mul(decimal.NewFromInt(int64(k))))
		if price.LessThan(floor) {
			price = floor
		}
		price = decimalx.RoundDownToTick(price, decimalx.TickDecimal(tick))
		if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			continue
		}
		size := perLevelUSD.Div(price)
		orders = append(orders, types.OrderIntent{
			TokenID: tokenID,
			Outcome: outcome,
			Price:   price.String(),
			Size:    size.String(),
			Side:    types.BUY,
		})
	}
	return orders
}

// rebalanceIfNeeded submits orders on the lagging side when the position
// imbalances beyond threshold, per spec §4.7 fill handling.
func (d *Directional) rebalanceIfNeeded(state MarketState, position types.PositionState) StrategySignal {
	if position.IsBalanced() {
		return Hold("position balanced")
	}

	imbalance := position.Imbalance()
	laggingIsUp := position.UpShares.LessThan(position.DownShares)

	var tokenID string
	var outcome types.Outcome
	if laggingIsUp {
		tokenID, outcome = state.Market.UpTokenID, types.Up
	} else {
		tokenID, outcome = state.Market.DownTokenID, types.Down
	}

	book := state.Books.Book(tokenID)
	bestAsk, _, ok := book.BestAsk()
	if !ok {
		return Hold("no best ask for rebalance")
	}

	price := bestAsk
	threshold := decimal.NewFromFloat(0.4)
	if imbalance.LessThan(threshold) {
		tickDec := decimalx.TickDecimal(state.Market.TickSize)
		price = decimalx.RoundDownToTick(bestAsk.Sub(tickDec), tickDec)
	}

	lagSize := position.UpShares.Sub(position.DownShares).Abs()
	if lagSize.IsZero() {
		return Hold("no lag size to rebalance")
	}

	return PlaceOrders([]types.OrderIntent{{
		TokenID: tokenID,
		Outcome: outcome,
		Price:   price.String(),
		Size:    lagSize.String(),
		Side:    types.BUY,
	}}, "rebalance lagging side")
}

func (d *Directional) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	d.mu.Lock()
	d.metrics.TradeCount++
	d.mu.Unlock()
	return d.rebalanceIfNeeded(state, position)
}

func (d *Directional) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return CancelAll("pre-resolution window reached")
}

func (d *Directional) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	winningShares := final.DownShares
	if resolvedOutcome == types.Up {
		winningShares = final.UpShares
	}
	payout := winningShares
	pnl := payout.Sub(final.TotalCost())
	d.metrics.RealizedPnL = d.metrics.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		d.metrics.WinCount++
	}
}

func (d *Directional) Metrics() Metrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics
}

