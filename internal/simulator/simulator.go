// Package simulator runs every strategy in the closed set in parallel over
// one market's live data stream, synthesising fills from the order book
// rather than submitting real orders, so every strategy's behavior on the
// same market can be compared side by side.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"btcupdown/internal/config"
	"btcupdown/internal/feed"
	"btcupdown/internal/journal"
	"btcupdown/internal/orderbook"
	"btcupdown/internal/strategy"
	"btcupdown/pkg/types"
)

// runnerState is one strategy's virtual trading state for the session.
type runnerState struct {
	strat    strategy.Strategy
	position types.PositionState
}

// Simulator drives the whole closed set of strategies over one market.
type Simulator struct {
	market    types.Market
	priceFeed *feed.State
	books     *orderbook.Manager
	trades    *journal.Trades
	logger    *slog.Logger

	runners []*runnerState
}

// New constructs a simulator with one instance of every strategy in the
// closed set, per spec's multi-strategy comparison requirement.
func New(market types.Market, cfg config.StrategyConfig, riskCfg config.RiskConfig, priceFeed *feed.State, books *orderbook.Manager, trades *journal.Trades, logger *slog.Logger) *Simulator {
	strategies := strategy.NewAll(cfg, riskCfg)
	runners := make([]*runnerState, 0, len(strategies))
	for _, s := range strategies {
		runners = append(runners, &runnerState{strat: s})
	}
	return &Simulator{
		market:    market,
		priceFeed: priceFeed,
		books:     books,
		trades:    trades,
		logger:    logger.With("component", "simulator", "market", market.EventSlug),
		runners:   runners,
	}
}

// Result is one strategy's final session performance, used for the sorted
// comparison table.
type Result struct {
	Strategy      string
	RealizedPnL   decimal.Decimal
	TradeCount    int
	WinCount      int
	ROI           float64
}

// Run replays market data by ticking every strategy concurrently until the
// session resolves (market.EndTime), synthesising fills from the order
// book and paying out winners at resolution. Returns the sorted comparison
// table.
func (s *Simulator) Run(ctx context.Context, tickEvery time.Duration, startedAt time.Time) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	for _, rs := range s.runners {
		rs := rs
		g.Go(func() error {
			return s.runOne(gctx, rs, tickEvery, startedAt)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.finalize(), nil
}

func (s *Simulator) runOne(ctx context.Context, rs *runnerState, tickEvery time.Duration, startedAt time.Time) error {
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	rs.strat.OnMarketStart(s.state(startedAt))

	for {
		if time.Now().UTC().After(s.market.EndTime) {
			return s.resolve(rs)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state := s.state(startedAt)
			sig := rs.strat.OnOrderbookUpdate(state, rs.position)
			s.synthesizeFill(rs, sig)
		}
	}
}

// synthesizeFill applies the book-crossing fill rule from spec §4.9: a BUY
// fills when its limit price is at or above the current best ask, a SELL
// when at or below the current best bid. Partial ladders fill level by
// level against the same rule.
func (s *Simulator) synthesizeFill(rs *runnerState, sig strategy.StrategySignal) {
	if sig.Action != strategy.ActionPlaceOrders {
		return
	}
	for _, intent := range sig.Orders {
		price, err := decimal.NewFromString(intent.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(intent.Size)
		if err != nil {
			continue
		}

		book := s.books.Book(intent.TokenID)
		switch intent.Side {
		case types.BUY:
			ask, _, ok := book.BestAsk()
			if !ok || price.LessThan(ask) {
				continue
			}
		case types.SELL:
			bid, _, ok := book.BestBid()
			if !ok || price.GreaterThan(bid) {
				continue
			}
		}
		rs.position.ApplyFill(intent.Outcome, intent.Side, price, size)
	}
}

func (s *Simulator) state(startedAt time.Time) strategy.MarketState {
	return strategy.MarketState{
		Market:             s.market,
		PriceFeed:          s.priceFeed,
		Books:              s.books,
		Now:                time.Now().UTC(),
		MinutesIntoSession: time.Since(startedAt).Minutes(),
	}
}

// resolve pays $1/share to the winning outcome's shares and records the
// session result against the strategy.
func (s *Simulator) resolve(rs *runnerState) error {
	winner := types.Outcome(s.priceFeed.PredictedOutcome())
	if winner == "" {
		winner = types.Up
	}
	rs.strat.RecordSessionResult(rs.position, winner)
	return nil
}

// finalize builds the sorted comparison table (highest realized P&L
// first). It does not write to the trade journal.
func (s *Simulator) finalize() []Result {
	results := make([]Result, 0, len(s.runners))
	for _, rs := range s.runners {
		m := rs.strat.Metrics()
		invested := rs.position.TotalCost()
		var roi float64
		if invested.IsPositive() {
			roi, _ = m.RealizedPnL.Div(invested).Float64()
		}
		results = append(results, Result{
			Strategy:    m.Name,
			RealizedPnL: m.RealizedPnL,
			TradeCount:  m.TradeCount,
			WinCount:    m.WinCount,
			ROI:         roi,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RealizedPnL.GreaterThan(results[j].RealizedPnL)
	})
	return results
}

// FormatTable renders the comparison table the way the session log and
// console summary print it.
func FormatTable(results []Result) string {
	out := "strategy            realized_pnl   trades  wins  roi\n"
	for _, r := range results {
		out += fmt.Sprintf("%-20s %12s  %6d  %4d  %5.1f%%\n", r.Strategy, r.RealizedPnL.StringFixed(4), r.TradeCount, r.WinCount, r.ROI*100)
	}
	return out
}
