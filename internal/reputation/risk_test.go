package reputation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateBlocksAtMaxOpenPositions(t *testing.T) {
	t.Parallel()
	g := NewGate(config.RiskConfig{MaxOpenPositions: 2, MaxDailyLoss: 1000}, discardLogger())
	now := time.Now()

	g.RecordOpen()
	g.RecordOpen()
	if g.CanOpenPosition(now) {
		t.Error("expected CanOpenPosition=false at the open-position cap")
	}
}

func TestGateBlocksBelowDailyLossLimit(t *testing.T) {
	t.Parallel()
	g := NewGate(config.RiskConfig{MaxOpenPositions: 10, MaxDailyLoss: 100}, discardLogger())
	now := time.Now()

	g.RecordClose(decimal.NewFromInt(-150), now)
	if g.CanOpenPosition(now) {
		t.Error("expected CanOpenPosition=false once daily loss exceeds the limit")
	}
}

func TestGateAllowsWithinLimits(t *testing.T) {
	t.Parallel()
	g := NewGate(config.RiskConfig{MaxOpenPositions: 10, MaxDailyLoss: 100}, discardLogger())
	now := time.Now()

	g.RecordOpen()
	g.RecordClose(decimal.NewFromInt(-10), now)
	if !g.CanOpenPosition(now) {
		t.Error("expected CanOpenPosition=true within limits")
	}
}

func TestKellySizeClampsToMaxPosition(t *testing.T) {
	t.Parallel()
	price := decimal.NewFromFloat(0.5)
	confidence := decimal.NewFromFloat(0.9)
	size := KellySize(price, confidence, decimal.NewFromFloat(1.0), decimal.NewFromFloat(1000))
	if size.LessThanOrEqual(decimal.Zero) {
		t.Errorf("KellySize = %s, want positive allocation for high confidence at even odds", size)
	}
	if size.GreaterThan(decimal.NewFromFloat(1000)) {
		t.Errorf("KellySize = %s, want clamped to max_position_usd", size)
	}
}

func TestKellySizeZeroForLowConfidence(t *testing.T) {
	t.Parallel()
	price := decimal.NewFromFloat(0.5)
	confidence := decimal.NewFromFloat(0.4) // below breakeven at even odds
	size := KellySize(price, confidence, decimal.NewFromFloat(1.0), decimal.NewFromFloat(1000))
	if size.IsPositive() {
		t.Errorf("KellySize = %s, want 0 for a negative-edge signal", size)
	}
}
