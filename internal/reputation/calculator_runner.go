package reputation

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/store"
	"btcupdown/pkg/types"
)

// activeWalletWindow is the "active in the last 30 days" lookback the
// calculator iterates over, per spec §4.11.
const activeWalletWindow = 30 * 24 * time.Hour

// CalculatorStore is the persistence boundary the calculator reads closed
// trades from and writes wallet scores into; satisfied by *store.Store.
type CalculatorStore interface {
	ActiveWallets(since time.Time) ([]string, error)
	ClosedPairsForWallet(wallet string) ([]store.ClosedTradePair, error)
	UpsertWalletStats(ws types.WalletStats, tradeCount int, calculatedAt time.Time) error
}

// CalculatorRunner drives Calculate over every active wallet's closed pairs
// on a fixed interval (default 3600s per spec §4.11).
type CalculatorRunner struct {
	store    CalculatorStore
	interval time.Duration
	logger   *slog.Logger
}

// NewCalculatorRunner creates a calculator loop. An interval of zero or
// less defaults to 3600s (the spec default).
func NewCalculatorRunner(st CalculatorStore, interval time.Duration, logger *slog.Logger) *CalculatorRunner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CalculatorRunner{store: st, interval: interval, logger: logger.With("component", "reputation_calculator")}
}

// Run ticks the calculator at its configured interval until ctx is
// cancelled, running one pass immediately on start.
func (c *CalculatorRunner) Run(ctx context.Context) error {
	c.runOnce(time.Now().UTC())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runOnce(time.Now().UTC())
		}
	}
}

func (c *CalculatorRunner) runOnce(now time.Time) {
	wallets, err := c.store.ActiveWallets(now.Add(-activeWalletWindow))
	if err != nil {
		c.logger.Warn("active wallets query failed", "error", err)
		return
	}

	for _, wallet := range wallets {
		pairs, err := c.store.ClosedPairsForWallet(wallet)
		if err != nil {
			c.logger.Warn("closed pairs query failed", "error", err, "wallet", wallet)
			continue
		}
		closed := make([]ClosedPair, 0, len(pairs))
		for _, p := range pairs {
			buy, _ := decimal.NewFromString(p.Buy.Price)
			sell, _ := decimal.NewFromString(p.Sell.Price)
			holdHours := p.Sell.BlockTime.Sub(p.Buy.BlockTime).Hours()
			buyF, _ := buy.Float64()
			sellF, _ := sell.Float64()
			closed = append(closed, ClosedPair{BuyPrice: buyF, SellPrice: sellF, HoldHours: holdHours})
		}

		score := Calculate(closed)
		ws := types.WalletStats{
			WalletAddress:    wallet,
			ReputationScore:  score.ReputationScore,
			ConfidenceLevel:  score.Confidence,
			TraderTier:       types.TierFromScore(score.ReputationScore),
			LastCalculatedAt: now,
		}
		if err := c.store.UpsertWalletStats(ws, score.TradeCount, now); err != nil {
			c.logger.Warn("upsert wallet stats failed", "error", err, "wallet", wallet)
		}
	}
}
