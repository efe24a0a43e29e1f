// Command bench is a latency probe for the CLOB's read/write round trip and
// the CPU-only signing path, grounded on the teacher project's
// latency_bench tool: it warms a pooled connection, samples fetch and POST
// round trips, reports p50/p95/p99, and checks them against the same
// targets (orderbook fetch p95 < 100ms, order POST p50 < 150ms).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"btcupdown/internal/signer"
	"btcupdown/pkg/types"
)

const (
	defaultCLOBURL = "https://clob.polymarket.com"
	defaultTokenID = "21742633143463906290569050155826241533067272736897614950488156847949938836455"

	fetchTarget   = 100 * time.Millisecond
	postP50Target = 150 * time.Millisecond
)

func main() {
	clobURL := flag.String("clob-url", defaultCLOBURL, "CLOB base URL")
	tokenID := flag.String("token-id", defaultTokenID, "token ID to fetch the book for")
	fetchN := flag.Int("fetch-n", 50, "number of orderbook fetch samples")
	postN := flag.Int("post-n", 10, "number of POST round-trip samples")
	signN := flag.Int("sign-n", 1000, "number of EIP-712 signing iterations")
	flag.Parse()

	client := resty.New().
		SetBaseURL(*clobURL).
		SetTimeout(10 * time.Second).
		SetTransport(&http.Transport{MaxIdleConnsPerHost: 10, IdleConnTimeout: 90 * time.Second})

	ctx := context.Background()

	fmt.Println("=== latency bench ===")
	fmt.Println("warming connection pool...")
	_, _ = client.R().SetContext(ctx).Get("/")

	fetchTimes := sampleFetch(ctx, client, *tokenID, *fetchN)
	reportDurations("orderbook fetch", fetchTimes, fetchTarget, "p95")

	postTimes := samplePost(ctx, client, *postN)
	reportDurations("order POST round-trip", postTimes, postP50Target, "p50")

	signAvg := sampleSigning(*signN)
	fmt.Printf("\n--- order signing (%d iterations) ---\n", *signN)
	fmt.Printf("per-sign avg: %s\n", signAvg)

	fmt.Println("\n--- summary ---")
	sort.Slice(fetchTimes, func(i, j int) bool { return fetchTimes[i] < fetchTimes[j] })
	sort.Slice(postTimes, func(i, j int) bool { return postTimes[i] < postTimes[j] })
	p95 := percentile(fetchTimes, 0.95)
	p50 := percentile(postTimes, 0.50)
	estimate := p95 + p50 + signAvg
	fmt.Printf("estimated end-to-end: %s\n", estimate)
	if estimate < 300*time.Millisecond {
		fmt.Println("overall: within the 300ms execution budget")
	} else {
		fmt.Println("overall: exceeds the 300ms execution budget, investigate")
	}
}

func sampleFetch(ctx context.Context, client *resty.Client, tokenID string, n int) []time.Duration {
	times := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		_, _ = client.R().SetContext(ctx).SetQueryParam("token_id", tokenID).Get("/book")
		times = append(times, time.Since(start))
	}
	return times
}

func samplePost(ctx context.Context, client *resty.Client, n int) []time.Duration {
	times := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		_, _ = client.R().SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(strings.NewReader(`{"test":true}`)).
			Post("/order")
		times = append(times, time.Since(start))
	}
	return times
}

// sampleSigning times n EIP-712 signs with a throwaway key and returns the
// per-sign average; it never touches the network.
func sampleSigning(n int) time.Duration {
	s, err := signer.New("59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer init failed: %v\n", err)
		return 0
	}
	price := decimal.NewFromFloat(0.5)
	size := decimal.NewFromInt(100)

	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := s.Sign("1234", price, size, types.BUY, types.Tick001, false); err != nil {
			fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
			return 0
		}
	}
	elapsed := time.Since(start)
	if n == 0 {
		return 0
	}
	return elapsed / time.Duration(n)
}

func reportDurations(label string, times []time.Duration, target time.Duration, targetPercentile string) {
	if len(times) == 0 {
		fmt.Printf("\n--- %s ---\nno samples\n", label)
		return
	}
	sorted := append([]time.Duration(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg := sum / time.Duration(len(sorted))

	fmt.Printf("\n--- %s (%d samples) ---\n", label, len(sorted))
	fmt.Printf("min: %s  avg: %s  p50: %s  p95: %s  p99: %s  max: %s\n",
		sorted[0], avg, percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99), sorted[len(sorted)-1])

	var measured time.Duration
	switch targetPercentile {
	case "p50":
		measured = percentile(sorted, 0.50)
	case "p95":
		measured = percentile(sorted, 0.95)
	default:
		measured = avg
	}
	if measured < target {
		fmt.Printf("%s %s < target %s\n", targetPercentile, measured, target)
	} else {
		fmt.Printf("%s %s exceeds target %s\n", targetPercentile, measured, target)
	}
}

// percentile assumes times is already sorted ascending.
func percentile(times []time.Duration, p float64) time.Duration {
	if len(times) == 0 {
		return 0
	}
	idx := int(float64(len(times)) * p)
	if idx >= len(times) {
		idx = len(times) - 1
	}
	return times[idx]
}
