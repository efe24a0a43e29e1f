package feed

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarkMarketOpenAndPriceChangePct(t *testing.T) {
	t.Parallel()
	s := NewState()
	s.Observe(decimal.NewFromFloat(100000))
	s.MarkMarketOpen()
	s.Observe(decimal.NewFromFloat(100500))

	pct, ok := s.PriceChangePct()
	if !ok {
		t.Fatal("expected PriceChangePct ok=true")
	}
	want := decimal.NewFromFloat(0.5)
	if !pct.Sub(want).Abs().LessThan(decimal.NewFromFloat(0.001)) {
		t.Errorf("PriceChangePct = %s, want ~0.5", pct)
	}
}

func TestPriceChangePctNoOpen(t *testing.T) {
	t.Parallel()
	s := NewState()
	s.Observe(decimal.NewFromFloat(100000))

	if _, ok := s.PriceChangePct(); ok {
		t.Error("expected ok=false with no market-open anchor set")
	}
}

func TestPredictedOutcome(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		open, now float64
		want string
	}{
		{"up", 100000, 100100, "UP"},
		{"down", 100000, 99900, "DOWN"},
		{"equal", 100000, 100000, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState()
			s.Observe(decimal.NewFromFloat(tc.open))
			s.MarkMarketOpen()
			s.Observe(decimal.NewFromFloat(tc.now))

			if got := s.PredictedOutcome(); got != tc.want {
				t.Errorf("PredictedOutcome() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPredictedOutcomeNoOpenIsNone(t *testing.T) {
	t.Parallel()
	s := NewState()
	s.Observe(decimal.NewFromFloat(100000))
	if got := s.PredictedOutcome(); got != "" {
		t.Errorf("PredictedOutcome() = %q, want empty (None)", got)
	}
}

func TestClearMarketOpen(t *testing.T) {
	t.Parallel()
	s := NewState()
	s.Observe(decimal.NewFromFloat(100000))
	s.MarkMarketOpen()
	s.ClearMarketOpen()

	if _, ok := s.PriceChangePct(); ok {
		t.Error("expected ok=false after ClearMarketOpen")
	}
}

func TestDivergence(t *testing.T) {
	t.Parallel()
	s := NewState()
	s.Observe(decimal.NewFromFloat(100000))
	s.ObserveFallback(decimal.NewFromFloat(100100))

	pct, ok := s.Divergence()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if pct <= 0 || pct > 1 {
		t.Errorf("Divergence() = %f, want small positive pct", pct)
	}
}

func TestParseBinanceTicker(t *testing.T) {
	t.Parallel()
	price, err := ParseBinanceTicker([]byte(`{"e":"24hrTicker","c":"100123.45"}`))
	if err != nil {
		t.Fatalf("ParseBinanceTicker: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("100123.45")) {
		t.Errorf("price = %s, want 100123.45", price)
	}
}

func TestParseCoinbase24hrTicker(t *testing.T) {
	t.Parallel()
	price, err := ParseCoinbase24hrTicker([]byte(`{"type":"ticker","price":"100200.10"}`))
	if err != nil {
		t.Fatalf("ParseCoinbase24hrTicker: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("100200.10")) {
		t.Errorf("price = %s, want 100200.10", price)
	}
}

func TestParseCoinbase24hrTickerIgnoresNonTickerFrames(t *testing.T) {
	t.Parallel()
	if _, err := ParseCoinbase24hrTicker([]byte(`{"type":"subscriptions"}`)); err == nil {
		t.Error("expected error for non-ticker frame")
	}
}

func TestParseKrakenTicker(t *testing.T) {
	t.Parallel()
	frame := []byte(`[340,{"c":["100300.5","0.01234567"]},"ticker","XBT/USD"]`)
	price, err := ParseKrakenTicker(frame)
	if err != nil {
		t.Fatalf("ParseKrakenTicker: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("100300.5")) {
		t.Errorf("price = %s, want 100300.5", price)
	}
}
