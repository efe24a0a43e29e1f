package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

type fakeExecutorStore struct {
	pending     []types.OrderFlowSignal
	transitions map[int64]types.SignalStatus
}

func (f *fakeExecutorStore) DrainPending(minConfidence float64, since time.Time, limit int) ([]types.OrderFlowSignal, error) {
	return f.pending, nil
}

func (f *fakeExecutorStore) TransitionSignal(id int64, status types.SignalStatus) error {
	if f.transitions == nil {
		f.transitions = map[int64]types.SignalStatus{}
	}
	f.transitions[id] = status
	return nil
}

type fakeSubmitter struct {
	calls int
	err   error
}

func (f *fakeSubmitter) SubmitSignal(ctx context.Context, sig types.OrderFlowSignal, sizeUSD decimal.Decimal) error {
	f.calls++
	return f.err
}

func TestExecutorSkipsWhenRiskGateClosed(t *testing.T) {
	t.Parallel()
	st := &fakeExecutorStore{pending: []types.OrderFlowSignal{
		{ID: 1, Confidence: 0.8, MaxPrice: "0.5"},
	}}
	gate := NewGate(config.RiskConfig{MaxOpenPositions: 0}, discardLogger())
	sub := &fakeSubmitter{}
	ex := NewExecutor(st, gate, sub, config.OrderFlowConfig{EnablePaperTrading: false}, 1.0, 1000, discardLogger())

	ex.drainOnce(context.Background())

	if st.transitions[1] != types.SignalSkipped {
		t.Errorf("expected signal 1 skipped, got %v", st.transitions[1])
	}
	if sub.calls != 0 {
		t.Errorf("expected no submission when risk gate is closed, got %d calls", sub.calls)
	}
}

func TestExecutorPaperTradesWhenGateOpen(t *testing.T) {
	t.Parallel()
	st := &fakeExecutorStore{pending: []types.OrderFlowSignal{
		{ID: 2, Confidence: 0.9, MaxPrice: "0.4"},
	}}
	gate := NewGate(config.RiskConfig{MaxOpenPositions: 10}, discardLogger())
	sub := &fakeSubmitter{}
	ex := NewExecutor(st, gate, sub, config.OrderFlowConfig{EnablePaperTrading: true}, 1.0, 1000, discardLogger())

	ex.drainOnce(context.Background())

	if st.transitions[2] != types.SignalExecuted {
		t.Errorf("expected signal 2 executed in paper mode, got %v", st.transitions[2])
	}
	if sub.calls != 0 {
		t.Errorf("expected no live submission in paper mode, got %d calls", sub.calls)
	}
}

func TestExecutorRoutesToSubmitterWhenLive(t *testing.T) {
	t.Parallel()
	st := &fakeExecutorStore{pending: []types.OrderFlowSignal{
		{ID: 3, Confidence: 0.9, MaxPrice: "0.4"},
	}}
	gate := NewGate(config.RiskConfig{MaxOpenPositions: 10}, discardLogger())
	sub := &fakeSubmitter{}
	ex := NewExecutor(st, gate, sub, config.OrderFlowConfig{EnablePaperTrading: false}, 1.0, 1000, discardLogger())

	ex.drainOnce(context.Background())

	if sub.calls != 1 {
		t.Errorf("expected one live submission, got %d", sub.calls)
	}
	if st.transitions[3] != types.SignalExecuted {
		t.Errorf("expected signal 3 executed, got %v", st.transitions[3])
	}
}
