package reputation

import (
	"testing"
	"time"
)

func TestSellClusterRequiresFiveDistinctWallets(t *testing.T) {
	t.Parallel()
	c := NewSellCluster(30 * time.Second)
	now := time.Now()

	for i := 0; i < 4; i++ {
		c.Observe("market-1", walletName(i), "token-down", "0.40", now)
	}
	if _, _, ok := c.Cluster("market-1", now); ok {
		t.Error("expected no cluster with only 4 distinct wallets")
	}

	c.Observe("market-1", walletName(4), "token-down", "0.60", now)
	tokenID, avg, ok := c.Cluster("market-1", now)
	if !ok {
		t.Fatal("expected a cluster with 5 distinct wallets")
	}
	if tokenID != "token-down" {
		t.Errorf("tokenID = %q, want token-down", tokenID)
	}
	if avg == "" {
		t.Error("expected a non-empty average price")
	}
}

func TestSellClusterTracksTheSoldSideSeparately(t *testing.T) {
	t.Parallel()
	c := NewSellCluster(30 * time.Second)
	now := time.Now()

	// Five distinct wallets dump token-down; two unrelated wallets sell
	// token-up. Only the down-side dump should qualify as a cluster.
	for i := 0; i < 5; i++ {
		c.Observe("market-1", walletName(i), "token-down", "0.40", now)
	}
	c.Observe("market-1", walletName(5), "token-up", "0.70", now)
	c.Observe("market-1", walletName(6), "token-up", "0.70", now)

	tokenID, _, ok := c.Cluster("market-1", now)
	if !ok {
		t.Fatal("expected a cluster from the five-wallet down-side dump")
	}
	if tokenID != "token-down" {
		t.Errorf("tokenID = %q, want token-down (the side with 5 distinct sellers)", tokenID)
	}
}

func TestSellClusterEvictsStaleEntries(t *testing.T) {
	t.Parallel()
	c := NewSellCluster(30 * time.Second)
	base := time.Now()

	for i := 0; i < 5; i++ {
		c.Observe("market-1", walletName(i), "token-down", "0.40", base)
	}
	if _, _, ok := c.Cluster("market-1", base.Add(time.Second)); !ok {
		t.Fatal("expected cluster still present just after observation")
	}

	if _, _, ok := c.Cluster("market-1", base.Add(time.Minute)); ok {
		t.Error("expected cluster to have decayed after the window elapsed")
	}
}

func TestSellClusterIgnoresSameWalletRepeats(t *testing.T) {
	t.Parallel()
	c := NewSellCluster(30 * time.Second)
	now := time.Now()

	for i := 0; i < 10; i++ {
		c.Observe("market-1", "wallet-a", "token-down", "0.40", now)
	}
	if _, _, ok := c.Cluster("market-1", now); ok {
		t.Error("expected no cluster from a single repeated wallet")
	}
}

func walletName(i int) string {
	return string(rune('a' + i))
}
