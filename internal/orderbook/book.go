// Package orderbook mirrors the CLOB order book for the UP and DOWN tokens
// of one BTC up/down market, fed by REST snapshots and the market-data
// WebSocket channel, and derives the combined cross-asset signals the
// directional strategy reads (combined spread, depth imbalance).
//
// Each asset's ladder is a sorted []types.PriceLevel, bids kept descending
// and asks ascending by appending and re-sorting the slice — not a balanced
// tree, since a ladder holds at most a few dozen retained levels.
package orderbook

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

const maxLevels = 50

// Book mirrors one asset's bid/ask ladder.
type Book struct {
	mu      sync.RWMutex
	assetID string
	bids    []types.PriceLevel // descending by price
	asks    []types.PriceLevel // ascending by price
	hash    string
	updated time.Time
}

// NewBook creates an empty book for one asset.
func NewBook(assetID string) *Book {
	return &Book{assetID: assetID}
}

// ApplySnapshot replaces the ladder atomically.
func (b *Book) ApplySnapshot(bids, asks []types.PriceLevel, hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = sortedCopy(bids, true)
	b.asks = sortedCopy(asks, false)
	b.hash = hash
	b.updated = time.Now()
}

// UpdateLevel applies one incremental delta. size=0 removes the level.
func (b *Book) UpdateLevel(isBid bool, price, size string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if isBid {
		b.bids = applyLevel(b.bids, price, size, true)
	} else {
		b.asks = applyLevel(b.asks, price, size, false)
	}
	b.updated = time.Now()
}

func applyLevel(levels []types.PriceLevel, price, size string, descending bool) []types.PriceLevel {
	idx := -1
	for i, l := range levels {
		if l.Price == price {
			idx = i
			break
		}
	}

	sz := decimal.RequireFromString(orZero(size))
	if sz.IsZero() || sz.IsNegative() {
		if idx >= 0 {
			return append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}

	if idx >= 0 {
		levels[idx].Size = size
		return levels
	}

	levels = append(levels, types.PriceLevel{Price: price, Size: size})
	sort.Slice(levels, func(i, j int) bool {
		pi := decimal.RequireFromString(levels[i].Price)
		pj := decimal.RequireFromString(levels[j].Price)
		if descending {
			return pi.GreaterThan(pj)
		}
		return pi.LessThan(pj)
	})
	if len(levels) > maxLevels {
		levels = levels[:maxLevels]
	}
	return levels
}

func sortedCopy(levels []types.PriceLevel, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(levels))
	for _, l := range levels {
		sz := decimal.RequireFromString(orZero(l.Size))
		if sz.IsPositive() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi := decimal.RequireFromString(out[i].Price)
		pj := decimal.RequireFromString(out[j].Price)
		if descending {
			return pi.GreaterThan(pj)
		}
		return pi.LessThan(pj)
	})
	if len(out) > maxLevels {
		out = out[:maxLevels]
	}
	return out
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// BestBid returns the top bid price and size.
func (b *Book) BestBid() (price, size decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.RequireFromString(b.bids[0].Price), decimal.RequireFromString(b.bids[0].Size), true
}

// BestAsk returns the top ask price and size.
func (b *Book) BestAsk() (price, size decimal.Decimal, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.RequireFromString(b.asks[0].Price), decimal.RequireFromString(b.asks[0].Size), true
}

// Mid returns (bestBid+bestAsk)/2.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, _, ok1 := b.BestBid()
	ask, _, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Spread returns bestAsk-bestBid.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, _, ok1 := b.BestBid()
	ask, _, ok2 := b.BestAsk()
	if !ok1 || !ok2 {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// SizeAtPrice returns the resting size at an exact price on one side.
func (b *Book) SizeAtPrice(price decimal.Decimal, side types.Side) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	levels := b.asks
	if side == types.BUY {
		levels = b.bids
	}
	for _, l := range levels {
		if decimal.RequireFromString(l.Price).Equal(price) {
			return decimal.RequireFromString(l.Size)
		}
	}
	return decimal.Zero
}

// TopBids returns up to n best bid levels.
func (b *Book) TopBids(n int) []types.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return topN(b.bids, n)
}

// TopAsks returns up to n best ask levels.
func (b *Book) TopAsks(n int) []types.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return topN(b.asks, n)
}

func topN(levels []types.PriceLevel, n int) []types.PriceLevel {
	if n > len(levels) {
		n = len(levels)
	}
	out := make([]types.PriceLevel, n)
	copy(out, levels[:n])
	return out
}

// IsStale reports whether the book hasn't been updated within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// Depth sums resting size across the top `levels` of bids and asks.
func (b *Book) Depth(levels int) (bidDepth, askDepth decimal.Decimal) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bidDepth, askDepth = decimal.Zero, decimal.Zero
	for i, l := range b.bids {
		if i >= levels {
			break
		}
		bidDepth = bidDepth.Add(decimal.RequireFromString(l.Size))
	}
	for i, l := range b.asks {
		if i >= levels {
			break
		}
		askDepth = askDepth.Add(decimal.RequireFromString(l.Size))
	}
	return bidDepth, askDepth
}
