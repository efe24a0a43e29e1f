package reputation

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

const (
	executorInterval = 3 * time.Second
	drainLimit       = 10
	signalLookback   = 5 * time.Minute
)

// ExecutorStore is the persistence boundary the executor drains pending
// signals from and transitions to their terminal state; satisfied by
// *store.Store.
type ExecutorStore interface {
	DrainPending(minConfidence float64, since time.Time, limit int) ([]types.OrderFlowSignal, error)
	TransitionSignal(id int64, status types.SignalStatus) error
}

// Submitter routes an executable signal to the CLOB, or simulates it in
// paper mode; satisfied by the session's exchange.Client wrapped with the
// signer/presign path the caller already owns.
type Submitter interface {
	SubmitSignal(ctx context.Context, sig types.OrderFlowSignal, sizeUSD decimal.Decimal) error
}

// Executor drains up to 10 PENDING signals every 3s, gates each through the
// risk manager, and routes executable ones to paper or live submission per
// spec §4.11.
type Executor struct {
	store          ExecutorStore
	gate           *Gate
	submitter      Submitter
	cfg            config.OrderFlowConfig
	kellyFraction  decimal.Decimal
	maxPositionUSD decimal.Decimal
	logger         *slog.Logger
}

// NewExecutor creates a signal executor. maxPositionUSD is the same
// account-level cap the directional strategy sizes against
// (config.StrategyConfig.MaxPositionUSD); the order-flow executor shares it
// rather than carrying a second notion of position size.
func NewExecutor(st ExecutorStore, gate *Gate, submitter Submitter, cfg config.OrderFlowConfig, kellyFraction, maxPositionUSD float64, logger *slog.Logger) *Executor {
	return &Executor{
		store:          st,
		gate:           gate,
		submitter:      submitter,
		cfg:            cfg,
		kellyFraction:  decimal.NewFromFloat(kellyFraction),
		maxPositionUSD: decimal.NewFromFloat(maxPositionUSD),
		logger:         logger.With("component", "signal_executor"),
	}
}

// Run ticks the executor every 3s until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(executorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.drainOnce(ctx)
		}
	}
}

func (e *Executor) drainOnce(ctx context.Context) {
	now := time.Now().UTC()
	signals, err := e.store.DrainPending(e.cfg.MinSignalConfidence, now.Add(-signalLookback), drainLimit)
	if err != nil {
		e.logger.Warn("drain pending signals failed", "error", err)
		return
	}

	for _, sig := range signals {
		if !e.gate.CanOpenPosition(now) {
			e.skip(sig.ID, "Risk limits reached")
			continue
		}

		price, _ := decimal.NewFromString(sig.MaxPrice)
		sizeUSD := KellySize(price, decimal.NewFromFloat(sig.Confidence), e.kellyFraction, e.maxPositionUSD)
		if sizeUSD.IsZero() {
			e.skip(sig.ID, "Kelly sizing produced zero allocation")
			continue
		}

		if e.cfg.EnablePaperTrading {
			e.execute(sig.ID)
			e.gate.RecordOpen()
			continue
		}

		if err := e.submitter.SubmitSignal(ctx, sig, sizeUSD); err != nil {
			e.logger.Warn("signal submission failed", "error", err, "signal_id", sig.ID)
			e.skip(sig.ID, "submission failed: "+err.Error())
			continue
		}
		e.execute(sig.ID)
		e.gate.RecordOpen()
	}
}

func (e *Executor) execute(id int64) {
	if err := e.store.TransitionSignal(id, types.SignalExecuted); err != nil {
		e.logger.Warn("transition to EXECUTED failed", "error", err, "signal_id", id)
	}
}

func (e *Executor) skip(id int64, reason string) {
	e.logger.Info("signal skipped", "signal_id", id, "reason", reason)
	if err := e.store.TransitionSignal(id, types.SignalSkipped); err != nil {
		e.logger.Warn("transition to SKIPPED failed", "error", err, "signal_id", id)
	}
}
