// Package session runs the per-market trading state machine: one Runner
// per discovered 15-minute BTC UP/DOWN market, carrying it from discovery
// through resolution. Generalized from the teacher's single long-lived
// engine (one goroutine per open market, reconciled against a scanner) to
// one explicit state machine per market, since this market type is
// discovered, traded, and resolved on a fixed 15-minute cadence rather than
// scanned for continuously.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/alert"
	"btcupdown/internal/config"
	"btcupdown/internal/exchange"
	"btcupdown/internal/feed"
	"btcupdown/internal/journal"
	"btcupdown/internal/orderbook"
	"btcupdown/internal/presign"
	"btcupdown/internal/signer"
	"btcupdown/internal/strategy"
	"btcupdown/pkg/types"
)

// Phase names one state of the session state machine.
type Phase string

const (
	PhaseDiscovered    Phase = "DISCOVERED"
	PhaseWaitingConnect Phase = "WAITING_CONNECT"
	PhaseWaitingEntry   Phase = "WAITING_ENTRY"
	PhaseEntered        Phase = "ENTERED"
	PhaseCancelling     Phase = "CANCELLING"
	PhaseResolved       Phase = "RESOLVED"
)

const (
	orderbookConnectTimeout = 10 * time.Second
	strategyTickInterval    = 500 * time.Millisecond
	preResolutionLead       = 1 * time.Minute
	postResolutionWait      = 30 * time.Second

	// imbalanceRebalanceThreshold and imbalanceAggressiveThreshold are the
	// rebalance routine's two trigger points per spec §4.7: a modest
	// imbalance crosses the lagging side's best ask less one tick, a severe
	// one crosses at the best ask outright.
	imbalanceRebalanceThreshold  = 0.2
	imbalanceAggressiveThreshold = 0.4
)

// Runner drives one market through DISCOVERED -> ... -> RESOLVED.
type Runner struct {
	market types.Market
	cfg    config.Config

	client   *exchange.Client
	signer   *signer.Signer
	presign  *presign.Cache
	books    *orderbook.Manager
	priceFeed *feed.State
	strat    strategy.Strategy
	events   *journal.EventLog
	trades   *journal.Trades
	alerts   *alert.Notifier
	// userFeed delivers real-time fill/order events for this market's
	// condition ID; nil when the caller has no authenticated user channel
	// (e.g. cmd/simulate, which never submits real orders).
	userFeed *exchange.UserFeed
	logger   *slog.Logger

	position  types.PositionState
	phase     Phase
	started   time.Time
	openTrades []openTrade
}

// openTrade tracks one journaled fill long enough to settle it once the
// market resolves.
type openTrade struct {
	rowID   int64
	outcome types.Outcome
	price   decimal.Decimal
	size    decimal.Decimal
}

// New constructs a runner for one market. priceFeed, books, and presign are
// shared long-lived components the caller owns; strat is the strategy this
// session runs (the session runner always runs the Directional core unless
// the caller substitutes another member of the closed set for testing).
func New(
	market types.Market,
	cfg config.Config,
	client *exchange.Client,
	sgn *signer.Signer,
	presignCache *presign.Cache,
	books *orderbook.Manager,
	priceFeed *feed.State,
	strat strategy.Strategy,
	events *journal.EventLog,
	trades *journal.Trades,
	alerts *alert.Notifier,
	userFeed *exchange.UserFeed,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		market:    market,
		cfg:       cfg,
		client:    client,
		signer:    sgn,
		presign:   presignCache,
		books:     books,
		priceFeed: priceFeed,
		strat:     strat,
		events:    events,
		trades:    trades,
		alerts:    alerts,
		userFeed:  userFeed,
		logger:    logger.With("component", "session", "market", market.EventSlug),
		phase:     PhaseDiscovered,
	}
}

// Run drives the full state machine to completion. It returns once the
// session has resolved and the post-resolution wait has elapsed.
func (r *Runner) Run(ctx context.Context) error {
	r.started = time.Now().UTC()
	r.logEvent("session_start", map[string]any{"slug": r.market.EventSlug, "end_time": r.market.EndTime})

	if r.userFeed != nil {
		if err := r.userFeed.Subscribe([]string{r.market.ConditionID}); err != nil {
			r.logger.Warn("user feed subscribe failed", "error", err)
		}
		go r.listenFills(ctx)
	}

	if err := r.waitingConnect(ctx); err != nil {
		return err
	}
	if err := r.waitingEntry(ctx); err != nil {
		return err
	}
	r.entered(ctx)
	r.cancelling(ctx)
	return r.resolved(ctx)
}

// waitingConnect opens the market for trading, starts the pre-sign cache
// fan-out, and waits up to 10s for the orderbook mirror to receive its
// first update.
func (r *Runner) waitingConnect(ctx context.Context) error {
	r.phase = PhaseWaitingConnect
	r.priceFeed.MarkMarketOpen()

	go func() {
		populateCtx, cancel := context.WithTimeout(context.Background(), orderbookConnectTimeout)
		defer cancel()
		if err := r.presign.Populate(populateCtx, r.market.UpTokenID, r.market.DownTokenID, r.market.TickSize, r.market.NegRisk); err != nil {
			r.logger.Warn("pre-sign cache population failed", "error", err)
		}
	}()

	deadline := time.Now().Add(orderbookConnectTimeout)
	for time.Now().Before(deadline) {
		_, upOK := r.books.Book(r.market.UpTokenID).Mid()
		_, downOK := r.books.Book(r.market.DownTokenID).Mid()
		if upOK || downOK {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	r.phase = PhaseWaitingEntry
	r.logEvent("waiting_entry", nil)
	return nil
}

// waitingEntry ticks the strategy every 500ms until it returns a
// PlaceOrders signal (entry) or the pre-resolution window opens.
func (r *Runner) waitingEntry(ctx context.Context) error {
	ticker := time.NewTicker(strategyTickInterval)
	defer ticker.Stop()

	for {
		if r.preResolutionReached() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state := r.snapshot()
			sig := r.strat.OnOrderbookUpdate(state, r.position)
			if r.handleSignal(ctx, sig) {
				if sig.Action == strategy.ActionPlaceOrders {
					r.phase = PhaseEntered
					return nil
				}
			}
		}
	}
}

// entered keeps ticking the strategy (OnTick, rebalance-style signals)
// until the pre-resolution window opens.
func (r *Runner) entered(ctx context.Context) {
	ticker := time.NewTicker(strategyTickInterval)
	defer ticker.Stop()

	for !r.preResolutionReached() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := r.snapshot()
			sig := r.strat.OnTick(state, r.position)
			r.handleSignal(ctx, sig)
		}
	}
}

func (r *Runner) preResolutionReached() bool {
	return time.Now().UTC().After(r.market.EndTime.Add(-preResolutionLead))
}

// cancelling cancels every resting order for the market via the idempotent
// per-market cancel endpoint, per spec §4.7.
func (r *Runner) cancelling(ctx context.Context) {
	r.phase = PhaseCancelling
	state := r.snapshot()
	sig := r.strat.OnPreResolution(state, r.position)
	r.handleSignal(ctx, sig)

	if _, err := r.client.CancelMarketOrders(ctx, r.market.ConditionID); err != nil {
		r.logger.Error("cancel-all-by-market failed", "error", err)
	}
	r.logEvent("pre_resolution", map[string]any{"position": r.position})
}

// resolved determines the winning side from the price feed's prediction at
// resolution time, records the session result, writes the summary, alerts,
// and waits out the post-resolution buffer before returning control.
func (r *Runner) resolved(ctx context.Context) error {
	winner := types.Outcome(r.priceFeed.PredictedOutcome())
	if winner == "" {
		winner = types.Up
	}
	r.strat.RecordSessionResult(r.position, winner)

	metrics := r.strat.Metrics()
	r.settleTrades(winner)

	summary := map[string]any{
		"slug":          r.market.EventSlug,
		"winner":        winner,
		"position":      r.position,
		"realized_pnl":  metrics.RealizedPnL.String(),
		"trade_count":   metrics.TradeCount,
		"win_count":     metrics.WinCount,
	}
	r.logEvent("session_summary", summary)
	r.phase = PhaseResolved

	r.alerts.Send(fmt.Sprintf("session %s resolved: winner=%s pnl=%s", r.market.EventSlug, winner, metrics.RealizedPnL.String()))

	waitUntil := r.market.EndTime.Add(postResolutionWait)
	if d := time.Until(waitUntil); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return nil
}

// settleTrades resolves every journaled pending trade for this market: a
// trade on the winning outcome pays $1/share (WIN), any other outcome pays
// nothing (LOSS).
func (r *Runner) settleTrades(winner types.Outcome) {
	if r.trades == nil {
		return
	}
	now := time.Now().UTC()
	one := decimal.NewFromInt(1)
	for _, t := range r.openTrades {
		result := journal.TradeLoss
		payout := decimal.Zero
		if t.outcome == winner {
			result = journal.TradeWin
			payout = one.Mul(t.size)
		}
		pnl := payout.Sub(t.price.Mul(t.size))
		if err := r.trades.RecordClose(t.rowID, pnl.InexactFloat64(), result, now); err != nil {
			r.logger.Error("trade settlement failed", "row_id", t.rowID, "error", err)
		}
	}
}

// listenFills drains the user channel's fill notifications for the
// lifetime of the session, feeding each one to the strategy's OnFill so a
// strategy (e.g. MarketMaker re-quoting the filled side) can react to a
// real execution rather than only the synchronous submit response.
func (r *Runner) listenFills(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-r.userFeed.TradeEvents():
			if !ok {
				return
			}
			r.onFill(ctx, evt)
		}
	}
}

func (r *Runner) onFill(ctx context.Context, evt types.WSTradeEvent) {
	state := r.snapshot()
	sig := r.strat.OnFill(state, evt, r.position)
	r.handleSignal(ctx, sig)
	r.logEvent("fill_received", map[string]any{"asset_id": evt.AssetID, "side": evt.Side, "price": evt.Price, "size": evt.Size})
}

// handleSignal executes a strategy signal against the exchange, submitting
// orders for PlaceOrders, issuing a market-wide cancel for CancelAll, or
// exiting the virtual/real position for ExitPosition. Returns true if the
// signal resulted in an entry (PlaceOrders with at least one filled level).
func (r *Runner) handleSignal(ctx context.Context, sig strategy.StrategySignal) bool {
	switch sig.Action {
	case strategy.ActionHold:
		return false
	case strategy.ActionCancelAll:
		if _, err := r.client.CancelMarketOrders(ctx, r.market.ConditionID); err != nil {
			r.logger.Error("cancel all failed", "error", err, "reason", sig.Reason)
		}
		return false
	case strategy.ActionExitPosition:
		r.exitPosition(ctx, sig.Reason)
		return false
	case strategy.ActionPlaceOrders:
		return r.placeOrders(ctx, sig.Orders, sig.Reason)
	default:
		return false
	}
}

// placeOrders signs (via the pre-sign cache where possible) and submits
// each order intent independently; partial ladder completion is
// acceptable. Returns true if at least one level was accepted.
func (r *Runner) placeOrders(ctx context.Context, orders []types.OrderIntent, reason string) bool {
	filled := false
	for _, intent := range orders {
		price, err := decimal.NewFromString(intent.Price)
		if err != nil {
			r.logger.Error("invalid order price", "price", intent.Price, "error", err)
			continue
		}
		size, err := decimal.NewFromString(intent.Size)
		if err != nil {
			r.logger.Error("invalid order size", "size", intent.Size, "error", err)
			continue
		}

		signed := r.lookupOrSign(intent.TokenID, price, size, intent.Side)
		if signed == nil {
			continue
		}

		resp, err := r.client.SubmitOrder(ctx, *signed, r.signer.Funder().Hex())
		if err != nil {
			r.logger.Error("order submission failed", "reason", reason, "error", err)
			continue
		}
		if !resp.Success {
			continue
		}

		filled = true
		r.position.ApplyFill(intent.Outcome, intent.Side, price, size)
		if r.trades != nil && intent.Side == types.BUY {
			if id, err := r.trades.RecordOpen(r.market.ConditionID, r.strat.Name(), string(intent.Outcome), string(intent.Side), price.InexactFloat64(), size.InexactFloat64(), time.Now().UTC()); err == nil {
				r.openTrades = append(r.openTrades, openTrade{rowID: id, outcome: intent.Outcome, price: price, size: size})
			}
		}
		r.logEvent("order_placed", map[string]any{"token_id": intent.TokenID, "price": intent.Price, "size": intent.Size, "reason": reason})
	}
	return filled
}

// lookupOrSign returns a pre-signed order matching the requested cell if
// the cache has one, otherwise signs on demand.
func (r *Runner) lookupOrSign(tokenID string, price, size decimal.Decimal, side types.Side) *types.SignedOrder {
	priceCents := int(price.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	key := presign.OrderKey{TokenID: tokenID, PriceCents: priceCents, Bucket: presign.BucketForSize(size), Side: side}
	if cached := r.presign.GetOrder(key); cached != nil {
		return cached
	}

	signed, err := r.signer.Sign(tokenID, price, size, side, r.market.TickSize, r.market.NegRisk)
	if err != nil {
		r.logger.Error("on-demand order signing failed", "error", err)
		return nil
	}
	return signed
}

// exitPosition liquidates the current position at the best available bid
// on whichever side is held, used by strategies (e.g. Scalper) that exit
// outright rather than hold to resolution.
func (r *Runner) exitPosition(ctx context.Context, reason string) {
	if r.position.UpShares.IsPositive() {
		r.sellSide(ctx, r.market.UpTokenID, types.Up, r.position.UpShares, reason)
	}
	if r.position.DownShares.IsPositive() {
		r.sellSide(ctx, r.market.DownTokenID, types.Down, r.position.DownShares, reason)
	}
}

func (r *Runner) sellSide(ctx context.Context, tokenID string, outcome types.Outcome, size decimal.Decimal, reason string) {
	bid, _, ok := r.books.Book(tokenID).BestBid()
	if !ok {
		return
	}
	signed, err := r.signer.Sign(tokenID, bid, size, types.SELL, r.market.TickSize, r.market.NegRisk)
	if err != nil {
		r.logger.Error("exit signing failed", "error", err)
		return
	}
	resp, err := r.client.SubmitOrder(ctx, *signed, r.signer.Funder().Hex())
	if err != nil || !resp.Success {
		r.logger.Error("exit submission failed", "error", err)
		return
	}
	r.position.ApplyFill(outcome, types.SELL, bid, size)
	r.logEvent("position_exit", map[string]any{"token_id": tokenID, "reason": reason})
}

// snapshot builds the read-only MarketState the strategy consults this
// tick. The reads of feed/book/position are a best-effort consistent
// snapshot, matching the concurrency model's post-condition guarantees
// rather than a transactional one.
func (r *Runner) snapshot() strategy.MarketState {
	return strategy.MarketState{
		Market:             r.market,
		PriceFeed:          r.priceFeed,
		Books:              r.books,
		Now:                time.Now().UTC(),
		MinutesIntoSession: time.Since(r.started).Minutes(),
	}
}

func (r *Runner) logEvent(kind string, data any) {
	if r.events == nil {
		return
	}
	if err := r.events.Append(kind, data); err != nil {
		r.logger.Warn("session log write failed", "kind", kind, "error", err)
	}
}

// Imbalance exposes the rebalance threshold logic for tests and for
// strategies that want to read the same constants the runner enforces.
func Imbalance(p types.PositionState) (ratio float64, needsAggressive bool) {
	imb := p.Imbalance()
	f, _ := imb.Float64()
	return f, f > imbalanceAggressiveThreshold
}
