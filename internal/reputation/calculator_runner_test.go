package reputation

import (
	"testing"
	"time"

	"btcupdown/internal/store"
	"btcupdown/pkg/types"
)

type fakeCalculatorStore struct {
	wallets []string
	pairs   map[string][]store.ClosedTradePair
	upserts []types.WalletStats
}

func (f *fakeCalculatorStore) ActiveWallets(since time.Time) ([]string, error) {
	return f.wallets, nil
}

func (f *fakeCalculatorStore) ClosedPairsForWallet(wallet string) ([]store.ClosedTradePair, error) {
	return f.pairs[wallet], nil
}

func (f *fakeCalculatorStore) UpsertWalletStats(ws types.WalletStats, tradeCount int, calculatedAt time.Time) error {
	f.upserts = append(f.upserts, ws)
	return nil
}

func TestCalculatorRunnerScoresEveryActiveWallet(t *testing.T) {
	t.Parallel()
	now := time.Now()
	buy := store.TradeRecord{Price: "0.50", BlockTime: now.Add(-time.Hour)}
	sell := store.TradeRecord{Price: "0.60", BlockTime: now}

	st := &fakeCalculatorStore{
		wallets: []string{"0xabc"},
		pairs: map[string][]store.ClosedTradePair{
			"0xabc": {{Buy: buy, Sell: sell}},
		},
	}
	r := NewCalculatorRunner(st, time.Hour, discardLogger())
	r.runOnce(now)

	if len(st.upserts) != 1 {
		t.Fatalf("expected one wallet scored, got %d", len(st.upserts))
	}
	if st.upserts[0].WalletAddress != "0xabc" {
		t.Errorf("expected wallet 0xabc scored, got %s", st.upserts[0].WalletAddress)
	}
	if st.upserts[0].ReputationScore <= 0 {
		t.Errorf("expected positive reputation score for a winning pair, got %f", st.upserts[0].ReputationScore)
	}
}

func TestCalculatorRunnerDefaultsIntervalToOneHour(t *testing.T) {
	t.Parallel()
	r := NewCalculatorRunner(&fakeCalculatorStore{}, 0, discardLogger())
	if r.interval != time.Hour {
		t.Errorf("expected default interval of 1h, got %s", r.interval)
	}
}
