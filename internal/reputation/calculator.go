// Package reputation scores wallets by their closed BUY→SELL trade pairs,
// bands them into tiers, and turns high-confidence whale/degen behavior into
// follow and fade signals. The weighted sub-score/banding shape follows the
// teacher's general approach to strategy tuning (named constants, weighted
// components, clamp-and-band switches) generalized from a market-making risk
// surface to a per-wallet reputation surface.
package reputation

import "math"

// Sub-score weights, summing to 1.0.
const (
	weightWinRate      = 0.40
	weightProfitFactor = 0.30
	weightConsistency  = 0.15
	weightVolume       = 0.10
	weightTiming       = 0.05

	minTradesForFullConfidence = 5
	confidenceDivisor          = 2.7
	lowTradeConfidenceFloor    = 0.2

	hoursPerWeek = 168
)

// ClosedPair is one closed BUY->SELL position on the same market and token,
// the atomic unit the calculator scores a wallet from.
type ClosedPair struct {
	BuyPrice  float64
	SellPrice float64
	HoldHours float64
}

// pnlPct is (sell-buy)/buy for this pair.
func (p ClosedPair) pnlPct() float64 {
	if p.BuyPrice == 0 {
		return 0
	}
	return (p.SellPrice - p.BuyPrice) / p.BuyPrice
}

func (p ClosedPair) isWin() bool {
	return p.SellPrice-p.BuyPrice > 0
}

// Score is the composite reputation result for one wallet.
type Score struct {
	WinRate         float64
	ProfitFactor    float64
	Consistency     float64
	Volume          float64
	Timing          float64
	Composite       float64 // weighted sum in [0,1]
	ReputationScore float64 // Composite*10, in [0,10]
	Confidence      float64 // [0,1], floored for low trade counts
	TradeCount      int
}

// Calculate scores a wallet's closed pairs per spec §4.11's weighted
// sub-score table.
func Calculate(pairs []ClosedPair) Score {
	n := len(pairs)
	if n == 0 {
		return Score{WinRate: 0.5}
	}

	var wins int
	var pnlSum, holdSum float64
	pnls := make([]float64, n)
	for i, p := range pairs {
		pnls[i] = p.pnlPct()
		pnlSum += pnls[i]
		holdSum += p.HoldHours
		if p.isWin() {
			wins++
		}
	}

	winRate := float64(wins) / float64(n)
	meanPnLPct := pnlSum / float64(n)
	profitFactor := clamp01(meanPnLPct + 0.5)
	consistency := clamp01(1 - stddevIsWin(pairs))
	volume := clamp01(math.Log10(float64(n)) / 3)
	avgHoldHours := holdSum / float64(n)
	timing := 1 - math.Min(avgHoldHours/hoursPerWeek, 1)

	composite := weightWinRate*winRate +
		weightProfitFactor*profitFactor +
		weightConsistency*consistency +
		weightVolume*volume +
		weightTiming*timing

	confidence := clamp01(math.Log10(float64(n)) / confidenceDivisor)
	if n < minTradesForFullConfidence && confidence < lowTradeConfidenceFloor {
		confidence = lowTradeConfidenceFloor
	}

	return Score{
		WinRate:         winRate,
		ProfitFactor:    profitFactor,
		Consistency:     consistency,
		Volume:          volume,
		Timing:          timing,
		Composite:       composite,
		ReputationScore: composite * 10,
		Confidence:      confidence,
		TradeCount:      n,
	}
}

// stddevIsWin is the population standard deviation of the {0,1} win
// indicator across pairs.
func stddevIsWin(pairs []ClosedPair) float64 {
	n := float64(len(pairs))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, p := range pairs {
		if p.isWin() {
			sum++
		}
	}
	mean := sum / n
	var sq float64
	for _, p := range pairs {
		v := 0.0
		if p.isWin() {
			v = 1.0
		}
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
