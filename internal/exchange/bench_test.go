package exchange

import (
	"testing"

	"btcupdown/internal/config"
)

// BenchmarkL2Headers measures HMAC auth-header construction latency, the
// other CPU-only half of the round trip cmd/bench reports.
func BenchmarkL2Headers(b *testing.B) {
	cfg := config.Config{
		Wallet: config.WalletConfig{
			PrivateKey: "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690",
			ChainID:    137,
		},
		API: config.APIConfig{
			ApiKey:     "bench-key",
			Secret:     "c2VjcmV0LWJlbmNoLWhtYWMta2V5",
			Passphrase: "bench-pass",
		},
	}
	auth, err := NewAuth(cfg)
	if err != nil {
		b.Fatalf("NewAuth() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := auth.L2Headers("POST", "/order", `{"test":true}`); err != nil {
			b.Fatalf("L2Headers() error = %v", err)
		}
	}
}
