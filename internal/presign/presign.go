// Package presign pre-signs a grid of candidate orders at session start so
// the hot entry path never pays EIP-712 signing latency. Pre-signing fans
// out across a grid of BUY orders over (price x bucket x asset) using a
// bounded errgroup, since signing is pure CPU and safely parallelizable.
package presign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"btcupdown/internal/signer"
	"btcupdown/pkg/types"
)

// SizeBucket names one of the four pre-signed size tiers.
type SizeBucket string

const (
	Small  SizeBucket = "small"  // ~100
	Medium SizeBucket = "medium" // ~500
	Large  SizeBucket = "large"  // ~1000
	XLarge SizeBucket = "xlarge" // ~2000

	minPriceCents = 35
	maxPriceCents = 65

	fanOutLimit = 8
)

var bucketSizes = map[SizeBucket]decimal.Decimal{
	Small:  decimal.NewFromInt(100),
	Medium: decimal.NewFromInt(500),
	Large:  decimal.NewFromInt(1000),
	XLarge: decimal.NewFromInt(2000),
}

// OrderKey identifies one cell of the pre-sign grid.
type OrderKey struct {
	TokenID    string
	PriceCents int
	Bucket     SizeBucket
	Side       types.Side
}

// Cache holds pre-signed orders keyed by OrderKey, populated once at session
// start and read throughout the 15-minute session (orders expire after 1h,
// longer than any session, so no mid-session rotation is needed).
type Cache struct {
	m       sync.Map // OrderKey -> *types.SignedOrder
	signer  *signer.Signer
	hits    int64
	misses  int64
	countMu sync.Mutex
}

// New creates an empty pre-sign cache.
func New(s *signer.Signer) *Cache {
	return &Cache{signer: s}
}

// Populate signs the full grid for both tokens concurrently, bounded by
// fanOutLimit in-flight signing goroutines.
func (c *Cache) Populate(ctx context.Context, upTokenID, downTokenID string, tick types.TickSize, negRisk bool) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)

	for _, tokenID := range []string{upTokenID, downTokenID} {
		tokenID := tokenID
		for cents := minPriceCents; cents <= maxPriceCents; cents++ {
			cents := cents
			for bucket, size := range bucketSizes {
				bucket, size := bucket, size
				g.Go(func() error {
					price := decimal.New(int64(cents), -2)
					order, err := c.signer.Sign(tokenID, price, size, types.BUY, tick, negRisk)
					if err != nil {
						return fmt.Errorf("presign %s@%d (%s): %w", tokenID, cents, bucket, err)
					}
					key := OrderKey{TokenID: tokenID, PriceCents: cents, Bucket: bucket, Side: types.BUY}
					c.m.Store(key, order)
					return nil
				})
			}
		}
	}

	return g.Wait()
}

// GetOrder returns a clone of the cached order for key, or nil if absent
// (the caller signs on demand in that case).
func (c *Cache) GetOrder(key OrderKey) *types.SignedOrder {
	v, ok := c.m.Load(key)
	c.countMu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.countMu.Unlock()

	if !ok {
		return nil
	}
	order := v.(*types.SignedOrder)
	clone := *order
	return &clone
}

// Stats reports cache hit/miss counters since creation or last Clear.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Stats returns current hit/miss counters and grid size.
func (c *Cache) Stats() Stats {
	c.countMu.Lock()
	defer c.countMu.Unlock()

	size := 0
	c.m.Range(func(_, _ any) bool { size++; return true })
	return Stats{Hits: c.hits, Misses: c.misses, Size: size}
}

// Clear empties the cache, e.g. between sessions.
func (c *Cache) Clear() {
	c.m.Range(func(k, _ any) bool { c.m.Delete(k); return true })
	c.countMu.Lock()
	c.hits, c.misses = 0, 0
	c.countMu.Unlock()
}

// BucketForSize returns the nearest size bucket for a requested order size,
// used as a refresh hint when a strategy wants a size the grid doesn't
// exactly contain.
func BucketForSize(size decimal.Decimal) SizeBucket {
	switch {
	case size.LessThanOrEqual(decimal.NewFromInt(250)):
		return Small
	case size.LessThanOrEqual(decimal.NewFromInt(750)):
		return Medium
	case size.LessThanOrEqual(decimal.NewFromInt(1500)):
		return Large
	default:
		return XLarge
	}
}

// expiryHorizon is documented here for reference: pre-signed orders carry a
// 1-hour EIP-712 expiration (signer.OrderExpiry), comfortably longer than
// any 15-minute session.
const expiryHorizon = time.Hour
