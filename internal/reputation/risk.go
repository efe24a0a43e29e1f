package reputation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
)

// Gate enforces the executor's two hard risk limits per spec §4.11:
// a cap on concurrently open positions and a floor on today's realised P&L.
// Narrowed from the teacher's portfolio-wide exposure/kill-switch risk
// manager down to the two limits the order-flow executor actually consults
// before routing a signal.
type Gate struct {
	cfg    config.RiskConfig
	logger *slog.Logger

	mu               sync.Mutex
	openPositions    int
	dailyRealizedPnL decimal.Decimal
	dayAnchor        time.Time
}

// NewGate creates a risk gate.
func NewGate(cfg config.RiskConfig, logger *slog.Logger) *Gate {
	return &Gate{cfg: cfg, logger: logger.With("component", "risk_gate"), dayAnchor: time.Now().UTC()}
}

// CanOpenPosition reports whether the executor may route a new signal:
// false once open positions meet max_open_positions, or once today's
// realised P&L has fallen below -max_daily_loss.
func (g *Gate) CanOpenPosition(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDayLocked(now)

	if g.openPositions >= g.cfg.MaxOpenPositions {
		return false
	}
	maxLoss := decimal.NewFromFloat(g.cfg.MaxDailyLoss)
	if maxLoss.IsPositive() && g.dailyRealizedPnL.LessThan(maxLoss.Neg()) {
		return false
	}
	return true
}

// RecordOpen increments the open-position count for a routed signal.
func (g *Gate) RecordOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openPositions++
}

// RecordClose decrements the open-position count and folds a realised P&L
// delta into today's running total.
func (g *Gate) RecordClose(realizedPnL decimal.Decimal, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDayLocked(now)

	if g.openPositions > 0 {
		g.openPositions--
	}
	g.dailyRealizedPnL = g.dailyRealizedPnL.Add(realizedPnL)
}

func (g *Gate) resetIfNewDayLocked(now time.Time) {
	if now.UTC().YearDay() != g.dayAnchor.YearDay() || now.UTC().Year() != g.dayAnchor.Year() {
		g.dailyRealizedPnL = decimal.Zero
		g.dayAnchor = now.UTC()
		g.logger.Info("risk gate daily P&L reset")
	}
}

// KellySize computes the Kelly-criterion allocation for one signal per spec
// §4.7: f* = (b*p - q)/b with b=(1-price)/price, p=confidence, q=1-p; the
// allocated USD is f* * kelly_fraction * max_position_usd, clamped to
// [0, max_position_usd].
func KellySize(price, confidence decimal.Decimal, kellyFraction, maxPositionUSD decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	b := one.Sub(price).Div(price)
	p := confidence
	q := one.Sub(p)

	if b.IsZero() {
		return decimal.Zero
	}
	fStar := b.Mul(p).Sub(q).Div(b)

	allocated := fStar.Mul(kellyFraction).Mul(maxPositionUSD)
	if allocated.IsNegative() {
		return decimal.Zero
	}
	if allocated.GreaterThan(maxPositionUSD) {
		return maxPositionUSD
	}
	return allocated
}
