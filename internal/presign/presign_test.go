package presign

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/internal/signer"
	"btcupdown/pkg/types"
)

const testPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := signer.New(testPrivateKey, "0x0000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}
	return New(s)
}

func TestPopulateAndGetOrder(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)

	err := c.Populate(context.Background(), "up-token", "down-token", types.Tick01, false)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}

	key := OrderKey{TokenID: "up-token", PriceCents: 50, Bucket: Medium, Side: types.BUY}
	order := c.GetOrder(key)
	if order == nil {
		t.Fatal("expected a cached order for a populated key")
	}
	if order.TokenID != "up-token" {
		t.Errorf("TokenID = %s, want up-token", order.TokenID)
	}
}

func TestGetOrderMissReturnsNil(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)

	order := c.GetOrder(OrderKey{TokenID: "nonexistent", PriceCents: 50, Bucket: Small, Side: types.BUY})
	if order != nil {
		t.Error("expected nil for an unpopulated key")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestGetOrderReturnsClone(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	if err := c.Populate(context.Background(), "up-token", "down-token", types.Tick01, false); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	key := OrderKey{TokenID: "up-token", PriceCents: 50, Bucket: Medium, Side: types.BUY}
	first := c.GetOrder(key)
	first.TokenID = "mutated"

	second := c.GetOrder(key)
	if second.TokenID != "up-token" {
		t.Error("mutating a returned order should not affect the cached copy")
	}
}

func TestClearEmptiesCache(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	if err := c.Populate(context.Background(), "up-token", "down-token", types.Tick01, false); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	c.Clear()

	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("Size = %d after Clear, want 0", stats.Size)
	}
}

func TestBucketForSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		size decimal.Decimal
		want SizeBucket
	}{
		{decimal.NewFromInt(100), Small},
		{decimal.NewFromInt(500), Medium},
		{decimal.NewFromInt(1000), Large},
		{decimal.NewFromInt(2000), XLarge},
	}
	for _, tc := range cases {
		if got := BucketForSize(tc.size); got != tc.want {
			t.Errorf("BucketForSize(%s) = %s, want %s", tc.size, got, tc.want)
		}
	}
}
