package reputation

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

// SellCluster tracks recent low-score-wallet sells in a rolling window per
// market, the signal the FADE_DEGEN detector watches for: five or more
// distinct low-score wallets selling the same market within 30 seconds.
// Generalized from the teacher's fill-velocity/directional-imbalance flow
// tracker, narrowed here to one side (SELL) and keyed by market rather than
// kept per-strategy, since the signal generator watches all markets at once.
type SellCluster struct {
	mu sync.Mutex

	window time.Duration
	sells  map[string][]sellEvent // market_id -> recent sells
}

type sellEvent struct {
	wallet  string
	tokenID string
	price   string
	at      time.Time
}

// NewSellCluster creates a tracker with the given clustering window (30s
// per spec).
func NewSellCluster(window time.Duration) *SellCluster {
	return &SellCluster{window: window, sells: make(map[string][]sellEvent)}
}

// Observe records one low-score wallet's SELL trade of tokenID.
func (c *SellCluster) Observe(marketID, wallet, tokenID, price string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sells[marketID] = append(c.sells[marketID], sellEvent{wallet: wallet, tokenID: tokenID, price: price, at: at})
	c.evictStaleLocked(marketID, at)
}

func (c *SellCluster) evictStaleLocked(marketID string, now time.Time) {
	cutoff := now.Add(-c.window)
	events := c.sells[marketID]
	kept := events[:0]
	for _, e := range events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(c.sells, marketID)
		return
	}
	c.sells[marketID] = kept
}

// minFadeWallets is the distinct-wallet threshold per spec §4.11.
const minFadeWallets = 5

// Cluster reports whether marketID currently has a qualifying fade-degen
// cluster: tokenID is whichever of the market's two tokens the most distinct
// low-score wallets sold (the side the dump is actually in), and avgPrice is
// the average sell price of just that token's sells.
func (c *SellCluster) Cluster(marketID string, now time.Time) (tokenID, avgPrice string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictStaleLocked(marketID, now)

	events := c.sells[marketID]
	walletsByToken := make(map[string]map[string]struct{})
	for _, e := range events {
		if walletsByToken[e.tokenID] == nil {
			walletsByToken[e.tokenID] = make(map[string]struct{})
		}
		walletsByToken[e.tokenID][e.wallet] = struct{}{}
	}

	var bestToken string
	bestWallets := 0
	for tok, wallets := range walletsByToken {
		if len(wallets) > bestWallets {
			bestWallets = len(wallets)
			bestToken = tok
		}
	}
	if bestWallets < minFadeWallets {
		return "", "", false
	}

	sum := decimal.Zero
	n := 0
	for _, e := range events {
		if e.tokenID != bestToken {
			continue
		}
		v, err := decimal.NewFromString(e.price)
		if err != nil {
			continue
		}
		sum = sum.Add(v)
		n++
	}
	if n == 0 {
		return "", "", false
	}
	return bestToken, sum.Div(decimal.NewFromInt(int64(n))).String(), true
}

// fadeSignalConfidence is the fixed confidence every FADE_DEGEN signal is
// emitted with, per spec §4.11.
const fadeSignalConfidence = 0.7

// BuildFadeSignal constructs a FADE_DEGEN BUY signal at the cluster's
// average sell price, fixed 0.7 confidence, expiring per expiry.
func BuildFadeSignal(marketID, outcome, tokenSide string, avgPrice string, expiry time.Duration, now time.Time) types.OrderFlowSignal {
	return types.OrderFlowSignal{
		SignalType: types.FadeDegen,
		Action:     types.BUY,
		MarketID:   marketID,
		Outcome:    types.Outcome(outcome),
		Confidence: fadeSignalConfidence,
		MaxPrice:   avgPrice,
		Status:     types.SignalPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(expiry),
	}
}
