// Package feed maintains the BTC reference price used to judge UP/DOWN
// outcomes: two independent WebSocket tasks (primary, fallback) each dial
// one upstream ticker feed and write into one shared state behind an
// RWMutex, following the reconnect-with-backoff idiom used throughout this
// codebase for upstream WebSocket connections.
//
// The fallback source is never promoted to primary. It exists purely for
// cross-validation (does fallback agree with primary on direction?) and to
// surface divergence; if the primary disconnects repeatedly the fallback
// keeps running under its own role, not as a stand-in.
package feed

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	primaryBackoff  = 1 * time.Second
	fallbackBackoff = 2 * time.Second
	readTimeout     = 30 * time.Second
	writeTimeout    = 5 * time.Second
	historyMaxLen   = 600 // ~10 minutes at 1 sample/sec, bounded ring
	romPeriods      = 14  // N-period rate of change window
)

// Parser extracts a decimal price from one upstream text frame. Each price
// source (Binance ticker, Coinbase 24hrTicker, Kraken array-frame) implements
// its own wire shape; the feed worker is agnostic to the frame format.
type Parser func(frame []byte) (decimal.Decimal, error)

// Source describes one upstream price connection.
type Source struct {
	URL          string
	SubscribeMsg []byte // raw text frame sent immediately after connect, nil if none
	Parse        Parser
	Backoff      time.Duration
}

// snapshot is the immutable value copied out from State under lock, computed
// on, and never mutated while a lock is held — per the no-lock-across-a-
// suspension-point discipline used for derived read paths in this codebase.
type snapshot struct {
	currentPrice   decimal.Decimal
	fallbackPrice  decimal.Decimal
	marketOpen     decimal.Decimal
	hasMarketOpen  bool
	history        []pricePoint
	lastUpdate     time.Time
	lastFallback   time.Time
}

type pricePoint struct {
	price decimal.Decimal
	at    time.Time
}

// State is the shared, concurrency-safe price state written by the primary
// and fallback feed workers and read by strategies and the session runner.
type State struct {
	mu   sync.RWMutex
	snap snapshot
}

// NewState returns an empty price state.
func NewState() *State {
	return &State{}
}

// MarkMarketOpen snapshots current_price into market_open_price.
func (s *State) MarkMarketOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.marketOpen = s.snap.currentPrice
	s.snap.hasMarketOpen = true
}

// ClearMarketOpen clears the market-open anchor, e.g. between sessions.
func (s *State) ClearMarketOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.hasMarketOpen = false
	s.snap.marketOpen = decimal.Zero
}

// PriceChangePct returns (now-open)/open*100 when an open anchor is set.
func (s *State) PriceChangePct() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.snap.hasMarketOpen || s.snap.marketOpen.IsZero() {
		return decimal.Zero, false
	}
	delta := s.snap.currentPrice.Sub(s.snap.marketOpen)
	pct := delta.Div(s.snap.marketOpen).Mul(decimal.NewFromInt(100))
	return pct, true
}

// PredictedOutcome reports UP when now>open, DOWN when now<open, and ""
// (None) when equal or no open is set.
func (s *State) PredictedOutcome() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.snap.hasMarketOpen {
		return ""
	}
	switch {
	case s.snap.currentPrice.GreaterThan(s.snap.marketOpen):
		return "UP"
	case s.snap.currentPrice.LessThan(s.snap.marketOpen):
		return "DOWN"
	default:
		return ""
	}
}

// MomentumConfidence combines the raw open->now change magnitude with an
// N-period rate of change: momentum that confirms the direction of the raw
// change boosts confidence, momentum that contradicts it reduces confidence.
// Returns a value in [0,100].
func (s *State) MomentumConfidence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.momentumConfidenceLocked()
}

func (s *State) momentumConfidenceLocked() float64 {
	if !s.snap.hasMarketOpen || s.snap.marketOpen.IsZero() {
		return 0
	}
	changePct, _ := s.snap.currentPrice.Sub(s.snap.marketOpen).Div(s.snap.marketOpen).Mul(decimal.NewFromInt(100)).Float64()
	magnitude := math.Min(math.Abs(changePct)*20, 60) // 3% move saturates the magnitude term

	roc := s.rateOfChangeLocked()
	base := magnitude
	if roc == 0 || changePct == 0 {
		return clamp01to100(base)
	}
	if (roc > 0) == (changePct > 0) {
		return clamp01to100(base + 40*math.Min(math.Abs(roc)*10, 1))
	}
	return clamp01to100(base * 0.5)
}

// IsMomentumAligned is true when the N-period rate-of-change sign matches
// both the simple-moving-average trend and the predicted outcome.
func (s *State) IsMomentumAligned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roc := s.rateOfChangeLocked()
	sma := s.smaTrendLocked()
	predicted := s.predictedOutcomeLocked()

	if roc == 0 || sma == 0 || predicted == "" {
		return false
	}
	rocUp := roc > 0
	smaUp := sma > 0
	predictedUp := predicted == "UP"
	return rocUp == smaUp && smaUp == predictedUp
}

func (s *State) predictedOutcomeLocked() string {
	if !s.snap.hasMarketOpen {
		return ""
	}
	switch {
	case s.snap.currentPrice.GreaterThan(s.snap.marketOpen):
		return "UP"
	case s.snap.currentPrice.LessThan(s.snap.marketOpen):
		return "DOWN"
	default:
		return ""
	}
}

// rateOfChangeLocked returns (price[last] - price[last-N]) / price[last-N],
// 0 if insufficient history.
func (s *State) rateOfChangeLocked() float64 {
	n := len(s.snap.history)
	if n < romPeriods+1 {
		return 0
	}
	last := s.snap.history[n-1].price
	prior := s.snap.history[n-1-romPeriods].price
	if prior.IsZero() {
		return 0
	}
	roc, _ := last.Sub(prior).Div(prior).Float64()
	return roc
}

// smaTrendLocked returns (price - SMA) over the last romPeriods samples,
// whose sign is the trend direction; 0 if insufficient history.
func (s *State) smaTrendLocked() float64 {
	n := len(s.snap.history)
	if n < romPeriods {
		return 0
	}
	window := s.snap.history[n-romPeriods:]
	sum := decimal.Zero
	for _, p := range window {
		sum = sum.Add(p.price)
	}
	sma := sum.Div(decimal.NewFromInt(int64(len(window))))
	diff, _ := s.snap.currentPrice.Sub(sma).Float64()
	return diff
}

func clamp01to100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CurrentPrice returns the primary feed's most recent price.
func (s *State) CurrentPrice() (decimal.Decimal, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.currentPrice, s.snap.lastUpdate
}

// FallbackPrice returns the fallback feed's most recent price, used only for
// cross-validation.
func (s *State) FallbackPrice() (decimal.Decimal, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.fallbackPrice, s.snap.lastFallback
}

// Divergence reports the absolute percentage difference between primary and
// fallback prices, false if either is unset.
func (s *State) Divergence() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.currentPrice.IsZero() || s.snap.fallbackPrice.IsZero() {
		return 0, false
	}
	diff := s.snap.currentPrice.Sub(s.snap.fallbackPrice).Abs()
	pct, _ := diff.Div(s.snap.currentPrice).Mul(decimal.NewFromInt(100)).Float64()
	return pct, true
}

// Observe records a new primary-feed price, updating current_price and the
// bounded rolling history. Exported so non-WebSocket sources (a REST poll
// fallback, tests) can feed prices in without going through a Worker.
func (s *State) Observe(p decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.currentPrice = p
	s.snap.lastUpdate = time.Now()
	s.snap.history = append(s.snap.history, pricePoint{price: p, at: s.snap.lastUpdate})
	if len(s.snap.history) > historyMaxLen {
		s.snap.history = s.snap.history[len(s.snap.history)-historyMaxLen:]
	}
}

// ObserveFallback records a new fallback-feed price.
func (s *State) ObserveFallback(p decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.fallbackPrice = p
	s.snap.lastFallback = time.Now()
}

// Worker runs one feed source's connect/read/reconnect loop, writing into a
// shared State. The primary worker writes current_price and history; the
// fallback worker writes fallback_price only.
type Worker struct {
	source    Source
	state     *State
	isPrimary bool
	logger    *slog.Logger
}

// NewWorker creates a feed worker for one source.
func NewWorker(source Source, state *State, isPrimary bool, logger *slog.Logger) *Worker {
	role := "fallback"
	if isPrimary {
		role = "primary"
	}
	return &Worker{
		source:    source,
		state:     state,
		isPrimary: isPrimary,
		logger:    logger.With("component", "price_feed", "role", role),
	}
}

// Run connects and maintains the source connection until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	backoff := w.source.Backoff
	if backoff == 0 {
		if w.isPrimary {
			backoff = primaryBackoff
		} else {
			backoff = fallbackBackoff
		}
	}

	for {
		err := w.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("price feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (w *Worker) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.source.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if w.source.SubscribeMsg != nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, w.source.SubscribeMsg); err != nil {
			return err
		}
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		price, err := w.source.Parse(msg)
		if err != nil {
			continue // non-price frame (ack, heartbeat, etc.)
		}

		if w.isPrimary {
			w.state.Observe(price)
		} else {
			w.state.ObserveFallback(price)
		}
	}
}
