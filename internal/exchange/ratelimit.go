// ratelimit.go implements token-bucket rate limiting for the three
// documented CLOB REST categories this client actually calls: order
// placement from the session runner's ladder and the reputation pipeline's
// executor, cancellation from the session runner's pre-resolution sweep,
// and the client's public book/price/tick-size/neg-risk reads.
//
// Polymarket enforces per-category limits measured in requests per
// 10-second windows. This bucket refills continuously (rather than in 10s
// bursts) to avoid bursting into the hard limit right at a window boundary.
// Unlike these three documented categories, the residential-proxy and
// unblocker fall-through paths in submit.go have no published bucket of
// their own and are paced separately with x/time/rate.
//
// Three buckets are maintained (burst capacity / continuous refill):
//   - Order:  350 burst / 50 per sec (500 per 10s sustained)
//   - Cancel: 300 burst / 30 per sec (300 per 10s sustained)
//   - Book:   150 burst / 15 per sec (150 per 10s sustained)
package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next token
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// RateLimiter groups the token buckets client.go's REST calls draw from
// before issuing each request, one per documented CLOB endpoint category.
type RateLimiter struct {
	Order  *TokenBucket // SubmitOrder, PostOrders
	Cancel *TokenBucket // CancelOrders, CancelMarketOrders
	Book   *TokenBucket // GetOrderBook, GetOrderBooks, GetPrice, GetTickSize, GetNegRisk
}

// NewRateLimiter creates the three category buckets. Capacities set the
// burst size; rates set the continuous per-second refill.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  NewTokenBucket(350, 50),  // 500 per 10s sustained
		Cancel: NewTokenBucket(300, 30),  // 300 per 10s sustained
		Book:   NewTokenBucket(150, 15),  // 150 per 10s sustained
	}
}
