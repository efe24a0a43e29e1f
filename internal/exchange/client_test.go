package exchange

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"testing"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

func newDryRunClient() *Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &Client{
		dryRun: true,
		rl:     NewRateLimiter(),
		logger: logger,
	}
}

func testOrder(tokenID string) types.SignedOrder {
	return types.SignedOrder{
		Salt:        "1",
		Maker:       "0xabc",
		Signer:      "0xabc",
		Taker:       "0x0",
		TokenID:     tokenID,
		MakerAmount: big.NewInt(50_000_000),
		TakerAmount: big.NewInt(100_000_000),
		Side:        types.BUY,
	}
}

func TestDryRunSubmitOrder(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.SubmitOrder(context.Background(), testOrder("tok1"), "owner-key")
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if !resp.Success {
		t.Error("resp.Success = false, want true")
	}
}

func TestDryRunPostOrders(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	orders := []types.SignedOrder{testOrder("tok1"), testOrder("tok2")}

	results, err := c.PostOrders(context.Background(), orders, "owner-key")
	if err != nil {
		t.Fatalf("PostOrders: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("result[%d].Success = false, want true", i)
		}
		if r.OrderID == "" {
			t.Errorf("result[%d].OrderID is empty", i)
		}
	}
}

func TestDryRunPostOrdersEmpty(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	results, err := c.PostOrders(context.Background(), nil, "owner-key")
	if err != nil {
		t.Fatalf("PostOrders: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil for empty orders, got %v", results)
	}
}

func TestDryRunPostOrdersRejectsOversizedBatch(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()
	c.dryRun = false // batch-size check happens before the dry-run short-circuit
	c.dryRun = true

	orders := make([]types.SignedOrder, 16)
	for i := range orders {
		orders[i] = testOrder("tok1")
	}
	if _, err := c.PostOrders(context.Background(), orders, "owner-key"); err == nil {
		t.Error("expected error for batch > 15 orders")
	}
}

func TestDryRunCancelOrders(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.CancelOrders(context.Background(), []string{"order-1", "order-2"})
	if err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if len(resp.Canceled) != 2 {
		t.Errorf("expected 2 canceled, got %d", len(resp.Canceled))
	}
}

func TestDryRunCancelOrdersEmpty(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.CancelOrders(context.Background(), nil)
	if err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if len(resp.Canceled) != 0 {
		t.Errorf("expected 0 canceled, got %d", len(resp.Canceled))
	}
}

func TestDryRunCancelMarketOrders(t *testing.T) {
	t.Parallel()
	c := newDryRunClient()

	resp, err := c.CancelMarketOrders(context.Background(), "condition-123")
	if err != nil {
		t.Fatalf("CancelMarketOrders: %v", err)
	}
	if resp == nil {
		t.Fatal("expected non-nil response")
	}
}

func TestNewClientDryRunFromConfig(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := config.Config{DryRun: true, API: config.APIConfig{CLOBBaseURL: "http://localhost"}}
	auth := &Auth{}
	c := NewClient(cfg, auth, logger)

	if !c.dryRun {
		t.Error("client.dryRun should be true when config.DryRun is true")
	}
}
