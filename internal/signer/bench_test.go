package signer

import (
	"testing"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

// BenchmarkSign measures EIP-712 order signing latency, the CPU-only half of
// the round trip the cmd/bench tool reports alongside network latency.
func BenchmarkSign(b *testing.B) {
	s, err := New(testPrivateKey, "")
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	price := decimal.NewFromFloat(0.50)
	size := decimal.NewFromInt(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Sign("1234", price, size, types.BUY, types.Tick001, false); err != nil {
			b.Fatalf("Sign() error = %v", err)
		}
	}
}
