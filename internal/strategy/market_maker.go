package strategy

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/internal/decimalx"
	"btcupdown/pkg/types"
)

// MarketMaker runs the Avellaneda-Stoikov reservation-price/optimal-spread
// model, generalized from a single YES/NO pair to this market's UP/DOWN
// token pair: instead of quoting a bid and an ask on one token, it quotes a
// buy price on each of the two tokens, skewed by how imbalanced the current
// position already is.
//
//	reservation_price = mid - q * gamma * sigma^2 * T
//	optimal_spread     = gamma * sigma^2 * T + (2/gamma) * ln(1 + gamma/k)
type MarketMaker struct {
	cfg     config.StrategyConfig
	metrics Metrics
	mu      sync.Mutex
}

// NewMarketMaker creates the Market Maker strategy.
func NewMarketMaker(cfg config.StrategyConfig) *MarketMaker {
	return &MarketMaker{cfg: cfg, metrics: Metrics{Name: "market_maker"}}
}

func (m *MarketMaker) Name() string { return "market_maker" }

func (m *MarketMaker) OnMarketStart(state MarketState) StrategySignal {
	return Hold("awaiting first book")
}

func (m *MarketMaker) OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal {
	return m.quote(state, position)
}

func (m *MarketMaker) OnTick(state MarketState, position types.PositionState) StrategySignal {
	return m.quote(state, position)
}

// quote computes a buy price for each side of the pair and submits a BUY on
// every side whose rounded bid lies strictly between 0 and 1, mirroring the
// teacher's per-tick reconcile-then-place cadence without persisting
// per-order state here (the session runner owns order lifecycle).
func (m *MarketMaker) quote(state MarketState, position types.PositionState) StrategySignal {
	upBook := state.Books.Book(state.Market.UpTokenID)
	downBook := state.Books.Book(state.Market.DownTokenID)

	upMid, okUp := upBook.Mid()
	downMid, okDown := downBook.Mid()
	if !okUp || !okDown {
		return Hold("no mid price available on one or both sides")
	}

	gamma := m.cfg.Gamma
	sigma := m.cfg.Sigma
	k := m.cfg.K
	T := m.cfg.T
	if gamma <= 0 || k <= 0 {
		return Hold("market maker tuning not configured")
	}

	q := skew(position)
	inventoryTerm := gamma * sigma * sigma * T
	optSpread := inventoryTerm + (2.0/gamma)*math.Log(1+gamma/k)
	minSpread := m.cfg.MinSpreadPercent / 100
	if optSpread < minSpread {
		optSpread = minSpread
	}

	// Each side gets its own reservation price off its own observed mid,
	// rather than inferring DOWN from 1-UP: a long-UP position (positive q)
	// should skew the UP quote down and the DOWN quote up, since the
	// position's risk is mirrored across the pair.
	upMidF, _ := upMid.Float64()
	downMidF, _ := downMid.Float64()
	reservationUp := upMidF - q*inventoryTerm
	reservationDown := downMidF + q*inventoryTerm

	bidUpRaw := reservationUp - optSpread/2
	bidDownRaw := reservationDown - optSpread/2

	tick := decimalx.TickDecimal(state.Market.TickSize)
	bidUp := decimalx.RoundDownToTick(decimal.NewFromFloat(bidUpRaw), tick)
	bidDown := decimalx.RoundDownToTick(decimal.NewFromFloat(bidDownRaw), tick)

	perSideUSD := decimal.NewFromFloat(m.cfg.MaxPositionUSD).Div(decimal.NewFromInt(2))

	var orders []types.OrderIntent
	if bidUp.IsPositive() && bidUp.LessThan(decimal.NewFromInt(1)) {
		orders = append(orders, types.OrderIntent{
			TokenID: state.Market.UpTokenID,
			Outcome: types.Up,
			Price:   bidUp.String(),
			Size:    perSideUSD.Div(bidUp).String(),
			Side:    types.BUY,
		})
	}
	if bidDown.IsPositive() && bidDown.LessThan(decimal.NewFromInt(1)) {
		orders = append(orders, types.OrderIntent{
			TokenID: state.Market.DownTokenID,
			Outcome: types.Down,
			Price:   bidDown.String(),
			Size:    perSideUSD.Div(bidDown).String(),
			Side:    types.BUY,
		})
	}
	if len(orders) == 0 {
		return Hold("no viable quote in range")
	}

	return PlaceOrders(orders, "two-sided quote")
}

// skew maps the position's UP/DOWN imbalance onto [-1, 1], positive when
// long UP relative to DOWN, matching the teacher's NetDelta convention.
func skew(position types.PositionState) float64 {
	total := position.UpShares.Add(position.DownShares)
	if total.IsZero() {
		return 0
	}
	diff := position.UpShares.Sub(position.DownShares)
	v, _ := diff.Div(total).Float64()
	return v
}

func (m *MarketMaker) OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal {
	m.mu.Lock()
	m.metrics.TradeCount++
	m.mu.Unlock()
	return Hold("fill recorded")
}

func (m *MarketMaker) OnPreResolution(state MarketState, position types.PositionState) StrategySignal {
	return CancelAll("pre-resolution window reached")
}

func (m *MarketMaker) RecordSessionResult(final types.PositionState, resolvedOutcome types.Outcome) {
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

func (m *MarketMaker) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}
