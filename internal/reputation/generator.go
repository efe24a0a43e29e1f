package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/internal/store"
	"btcupdown/pkg/types"
)

const (
	generatorInterval  = 3 * time.Second
	whaleScanWindow    = 10 * time.Second
	followSignalExpiry = 5 * time.Minute
	followPriceBump    = 1.05 // max_price = trigger_price * 1.05
)

// GeneratorStore is the persistence boundary the signal generator reads
// recent trades from and writes new signals into; satisfied by
// *store.Store.
type GeneratorStore interface {
	RecentBuys(minScore float64, since, now time.Time) ([]store.WalletTrade, error)
	RecentLowScoreSells(maxScore float64, since, now time.Time) ([]types.Trade, error)
	SignalExists(triggerTxHash string) (bool, error)
	InsertSignal(sig types.OrderFlowSignal) error
}

// Generator runs the two signal-detection passes every 3s per spec §4.11:
// FOLLOW_WHALE on fresh high-reputation BUYs, and (if enabled) FADE_DEGEN on
// clustered low-reputation SELLs.
type Generator struct {
	store    GeneratorStore
	cfg      config.OrderFlowConfig
	cluster  *SellCluster
	resolver MarketResolver
	logger   *slog.Logger
}

// NewGenerator creates a signal generator. resolver maps a fade-degen
// cluster's sold tokenID back to the UP/DOWN outcome it belongs to.
func NewGenerator(st GeneratorStore, cfg config.OrderFlowConfig, resolver MarketResolver, logger *slog.Logger) *Generator {
	return &Generator{
		store:    st,
		cfg:      cfg,
		cluster:  NewSellCluster(30 * time.Second),
		resolver: resolver,
		logger:   logger.With("component", "signal_generator"),
	}
}

// Run ticks the generator every 3s until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(generatorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			if g.cfg.EnableWhaleFollowing {
				g.scanWhaleBuys(now)
			}
			if g.cfg.EnableDegenFading {
				g.scanDegenSells(now)
			}
		}
	}
}

// scanWhaleBuys looks for BUY trades in the last 10s by wallets with
// reputation_score >= min_whale_score that have not already produced a
// signal (anti-duplicate via trigger_tx_hash).
func (g *Generator) scanWhaleBuys(now time.Time) {
	since := now.Add(-whaleScanWindow)
	trades, err := g.store.RecentBuys(g.cfg.MinWhaleScore, since, now)
	if err != nil {
		g.logger.Warn("recent whale buys query failed", "error", err)
		return
	}
	for _, tr := range trades {
		exists, err := g.store.SignalExists(tr.TxHash)
		if err != nil {
			g.logger.Warn("signal dedup check failed", "error", err, "tx", tr.TxHash)
			continue
		}
		if exists {
			continue
		}
		sig := g.buildFollowSignal(tr, now)
		if err := g.store.InsertSignal(sig); err != nil {
			g.logger.Warn("insert follow signal failed", "error", err, "tx", tr.TxHash)
		}
	}
}

func (g *Generator) buildFollowSignal(tr store.WalletTrade, now time.Time) types.OrderFlowSignal {
	price, _ := decimal.NewFromString(tr.Price)
	maxPrice := price.Mul(decimal.NewFromFloat(followPriceBump))
	confidence := tr.ReputationScore / 10
	if confidence > 1 {
		confidence = 1
	}
	return types.OrderFlowSignal{
		SignalType:    types.FollowWhale,
		Action:        types.BUY,
		MarketID:      tr.MarketID,
		Confidence:    confidence,
		MaxPrice:      maxPrice.String(),
		TriggerWallet: tr.WalletAddr,
		TriggerTxHash: tr.TxHash,
		WalletScore:   tr.ReputationScore,
		TraderTier:    types.TraderTier(tr.TraderTier),
		Status:        types.SignalPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(followSignalExpiry),
	}
}

// scanDegenSells looks for markets where >= 5 low-score wallets have sold
// within the cluster window and emits a FADE_DEGEN BUY signal at the
// average sell price with fixed 0.7 confidence.
func (g *Generator) scanDegenSells(now time.Time) {
	since := now.Add(-30 * time.Second)
	sells, err := g.store.RecentLowScoreSells(g.cfg.MaxFadeScore, since, now)
	if err != nil {
		g.logger.Warn("recent low-score sells query failed", "error", err)
		return
	}
	for _, s := range sells {
		g.cluster.Observe(s.MarketID, s.WalletAddr, s.TokenID, s.Price, now)
	}

	seen := map[string]struct{}{}
	for _, s := range sells {
		if _, ok := seen[s.MarketID]; ok {
			continue
		}
		seen[s.MarketID] = struct{}{}

		tokenID, avgPrice, ok := g.cluster.Cluster(s.MarketID, now)
		if !ok {
			continue
		}
		outcome, err := g.resolveOutcome(s.MarketID, tokenID)
		if err != nil {
			g.logger.Warn("resolve fade-degen outcome failed", "error", err, "market", s.MarketID)
			continue
		}
		sig := BuildFadeSignal(s.MarketID, string(outcome), "BUY", avgPrice, followSignalExpiry, now)
		if err := g.store.InsertSignal(sig); err != nil {
			g.logger.Warn("insert fade signal failed", "error", err, "market", s.MarketID)
		}
	}
}

// resolveOutcome maps the token actually sold back to the market's UP/DOWN
// outcome, so the fade-degen BUY lands on the side the dump was in rather
// than always assuming UP.
func (g *Generator) resolveOutcome(marketID, tokenID string) (types.Outcome, error) {
	market, err := g.resolver.ByCondition(context.Background(), marketID)
	if err != nil {
		return "", fmt.Errorf("resolve market %s: %w", marketID, err)
	}
	if tokenID == market.DownTokenID {
		return types.Down, nil
	}
	return types.Up, nil
}
