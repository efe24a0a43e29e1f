package orderbook

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

const testAsset = "up-token-123"

func TestApplySnapshotBestBidAsk(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)

	b.ApplySnapshot(
		[]types.PriceLevel{{Price: "0.55", Size: "100"}, {Price: "0.54", Size: "200"}},
		[]types.PriceLevel{{Price: "0.57", Size: "150"}},
		"abc123",
	)

	bid, _, ok := b.BestBid()
	if !ok {
		t.Fatal("BestBid ok=false after snapshot")
	}
	if !bid.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("bid = %s, want 0.55", bid)
	}

	ask, _, ok := b.BestAsk()
	if !ok {
		t.Fatal("BestAsk ok=false after snapshot")
	}
	if !ask.Equal(decimal.RequireFromString("0.57")) {
		t.Errorf("ask = %s, want 0.57", ask)
	}
}

func TestMid(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)

	if _, ok := b.Mid(); ok {
		t.Error("Mid should return false for empty book")
	}

	b.ApplySnapshot(
		[]types.PriceLevel{{Price: "0.50", Size: "100"}},
		[]types.PriceLevel{{Price: "0.60", Size: "100"}},
		"h1",
	)

	mid, ok := b.Mid()
	if !ok {
		t.Fatal("Mid ok=false for populated book")
	}
	if !mid.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("mid = %s, want 0.55", mid)
	}
}

func TestBestBidAskEmpty(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)
	if _, _, ok := b.BestBid(); ok {
		t.Error("BestBid should return ok=false for empty book")
	}
	if _, _, ok := b.BestAsk(); ok {
		t.Error("BestAsk should return ok=false for empty book")
	}
}

func TestUpdateLevelRemovesOnZeroSize(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)
	b.ApplySnapshot(
		[]types.PriceLevel{{Price: "0.50", Size: "100"}, {Price: "0.49", Size: "50"}},
		nil,
		"h1",
	)

	b.UpdateLevel(true, "0.50", "0")

	bid, _, ok := b.BestBid()
	if !ok {
		t.Fatal("expected a remaining bid level")
	}
	if !bid.Equal(decimal.RequireFromString("0.49")) {
		t.Errorf("bid = %s, want 0.49 after top level removed", bid)
	}
}

func TestUpdateLevelInsertsNewLevel(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)
	b.ApplySnapshot([]types.PriceLevel{{Price: "0.50", Size: "100"}}, nil, "h1")

	b.UpdateLevel(true, "0.52", "30")

	bid, size, ok := b.BestBid()
	if !ok {
		t.Fatal("expected a bid")
	}
	if !bid.Equal(decimal.RequireFromString("0.52")) {
		t.Errorf("bid = %s, want 0.52 (new best)", bid)
	}
	if !size.Equal(decimal.RequireFromString("30")) {
		t.Errorf("size = %s, want 30", size)
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()
	b := NewBook(testAsset)

	if !b.IsStale(time.Second) {
		t.Error("new book should be stale")
	}

	b.ApplySnapshot([]types.PriceLevel{{Price: "0.50", Size: "100"}}, []types.PriceLevel{{Price: "0.60", Size: "100"}}, "h1")
	if b.IsStale(time.Second) {
		t.Error("just-updated book should not be stale")
	}

	time.Sleep(50 * time.Millisecond)
	if !b.IsStale(10 * time.Millisecond) {
		t.Error("book should be stale after maxAge")
	}
}

func TestManagerGetDepthPredictsDirection(t *testing.T) {
	t.Parallel()
	m := NewManager()

	upBook := m.Book("up")
	downBook := m.Book("down")

	// Heavy UP bid pressure, heavy DOWN ask pressure -> predicted UP.
	upBook.ApplySnapshot(
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}},
		[]types.PriceLevel{{Price: "0.51", Size: "10"}},
		"h1",
	)
	downBook.ApplySnapshot(
		[]types.PriceLevel{{Price: "0.49", Size: "10"}},
		[]types.PriceLevel{{Price: "0.50", Size: "1000"}},
		"h2",
	)

	depth := m.GetDepth("up", "down", 5)
	if depth.PredictedDirection != "UP" {
		t.Errorf("PredictedDirection = %q, want UP", depth.PredictedDirection)
	}
	if depth.Confidence <= 0 {
		t.Errorf("Confidence = %f, want > 0", depth.Confidence)
	}
}

func TestManagerGetDepthNoSignalWhenBalanced(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Book("up").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.50", Size: "100"}},
		[]types.PriceLevel{{Price: "0.51", Size: "100"}},
		"h1",
	)
	m.Book("down").ApplySnapshot(
		[]types.PriceLevel{{Price: "0.49", Size: "100"}},
		[]types.PriceLevel{{Price: "0.50", Size: "100"}},
		"h2",
	)

	depth := m.GetDepth("up", "down", 5)
	if depth.PredictedDirection != "" {
		t.Errorf("PredictedDirection = %q, want empty (None) for balanced books", depth.PredictedDirection)
	}
}

func TestGetCombinedSpread(t *testing.T) {
	t.Parallel()
	m := NewManager()
	m.Book("up").ApplySnapshot([]types.PriceLevel{{Price: "0.50", Size: "100"}}, []types.PriceLevel{{Price: "0.52", Size: "100"}}, "h1")
	m.Book("down").ApplySnapshot([]types.PriceLevel{{Price: "0.47", Size: "100"}}, []types.PriceLevel{{Price: "0.49", Size: "100"}}, "h2")

	cs, ok := m.GetCombinedSpread("up", "down")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !cs.Sum.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("Sum = %s, want 0.04", cs.Sum)
	}
}
