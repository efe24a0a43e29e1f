package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTradesRecordOpenAndClose(t *testing.T) {
	t.Parallel()
	tr, err := OpenTrades(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("OpenTrades: %v", err)
	}
	defer tr.Close()

	now := time.Now().UTC()
	id, err := tr.RecordOpen("market-1", "directional", "UP", "BUY", 0.45, 100, now)
	if err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero row id")
	}

	if err := tr.RecordClose(id, 5.5, TradeWin, now.Add(time.Hour)); err != nil {
		t.Fatalf("RecordClose: %v", err)
	}

	closed, err := tr.ClosedSince("directional", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ClosedSince: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("len(closed) = %d, want 1", len(closed))
	}
	if closed[0].Result != TradeWin {
		t.Errorf("Result = %v, want WIN", closed[0].Result)
	}
	if closed[0].RealizedPnL != 5.5 {
		t.Errorf("RealizedPnL = %v, want 5.5", closed[0].RealizedPnL)
	}
}

func TestTradesClosedSinceExcludesPending(t *testing.T) {
	t.Parallel()
	tr, err := OpenTrades(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("OpenTrades: %v", err)
	}
	defer tr.Close()

	now := time.Now().UTC()
	if _, err := tr.RecordOpen("market-1", "scalper", "DOWN", "BUY", 0.40, 50, now); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}

	closed, err := tr.ClosedSince("scalper", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ClosedSince: %v", err)
	}
	if len(closed) != 0 {
		t.Errorf("len(closed) = %d, want 0 for a still-pending trade", len(closed))
	}
}
