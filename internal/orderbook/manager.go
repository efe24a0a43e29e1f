package orderbook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CombinedSpread is the combined view of both assets' spreads.
type CombinedSpread struct {
	UpSpread   decimal.Decimal
	DownSpread decimal.Decimal
	Sum        decimal.Decimal
}

// OrderbookDepth summarizes bid/ask pressure across both assets.
type OrderbookDepth struct {
	UpBidDepth         decimal.Decimal
	UpAskDepth         decimal.Decimal
	DownBidDepth       decimal.Decimal
	DownAskDepth       decimal.Decimal
	UpImbalance        float64 // (bid-ask)/(bid+ask), [-1,1]
	DownImbalance      float64
	PredictedDirection string // "UP", "DOWN", or "" (None)
	Confidence         float64 // 0-100
}

// Manager holds one Book per asset ID, generalizing the single-market
// YES/NO pair to independently addressable UP/DOWN books so combined-spread
// and depth signals can be computed across both.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewManager creates an empty book manager.
func NewManager() *Manager {
	return &Manager{books: make(map[string]*Book)}
}

// Book returns (creating if absent) the book for an asset ID.
func (m *Manager) Book(assetID string) *Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[assetID]
	if !ok {
		b = NewBook(assetID)
		m.books[assetID] = b
	}
	return b
}

// GetCombinedSpread returns the combined spread view for the up/down asset pair.
func (m *Manager) GetCombinedSpread(upAssetID, downAssetID string) (CombinedSpread, bool) {
	up := m.Book(upAssetID)
	down := m.Book(downAssetID)

	upSpread, ok1 := up.Spread()
	downSpread, ok2 := down.Spread()
	if !ok1 || !ok2 {
		return CombinedSpread{}, false
	}
	return CombinedSpread{
		UpSpread:   upSpread,
		DownSpread: downSpread,
		Sum:        upSpread.Add(downSpread),
	}, true
}

// GetDepth returns combined depth/imbalance/predicted-direction signals for
// the up/down pair over the top `levels` of each book.
func (m *Manager) GetDepth(upAssetID, downAssetID string, levels int) OrderbookDepth {
	up := m.Book(upAssetID)
	down := m.Book(downAssetID)

	upBid, upAsk := up.Depth(levels)
	downBid, downAsk := down.Depth(levels)

	d := OrderbookDepth{
		UpBidDepth:   upBid,
		UpAskDepth:   upAsk,
		DownBidDepth: downBid,
		DownAskDepth: downAsk,
	}
	d.UpImbalance = imbalance(upBid, upAsk)
	d.DownImbalance = imbalance(downBid, downAsk)

	upBidPressure := d.UpImbalance > 0.20
	downAskPressure := d.DownImbalance < -0.20
	downBidPressure := d.DownImbalance > 0.20
	upAskPressure := d.UpImbalance < -0.20

	switch {
	case upBidPressure && downAskPressure:
		d.PredictedDirection = "UP"
		d.Confidence = confidenceFromImbalance(d.UpImbalance, d.DownImbalance)
	case downBidPressure && upAskPressure:
		d.PredictedDirection = "DOWN"
		d.Confidence = confidenceFromImbalance(d.DownImbalance, d.UpImbalance)
	default:
		d.PredictedDirection = ""
		d.Confidence = 0
	}
	return d
}

func imbalance(bid, ask decimal.Decimal) float64 {
	total := bid.Add(ask)
	if total.IsZero() {
		return 0
	}
	v, _ := bid.Sub(ask).Div(total).Float64()
	return v
}

func confidenceFromImbalance(primary, secondary float64) float64 {
	avg := (primary + -secondary) / 2
	c := avg * 100
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return c
}

// IsAnyStale reports whether either book in the pair is stale.
func (m *Manager) IsAnyStale(upAssetID, downAssetID string, maxAge time.Duration) bool {
	return m.Book(upAssetID).IsStale(maxAge) || m.Book(downAssetID).IsStale(maxAge)
}
