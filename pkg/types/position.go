package types

import "github.com/shopspring/decimal"

// PositionState is a per-market, per-strategy virtual or real position in
// the UP/DOWN pair. Cost fields are cumulative USD paid for the shares held.
type PositionState struct {
	UpShares   decimal.Decimal
	DownShares decimal.Decimal
	UpCost     decimal.Decimal
	DownCost   decimal.Decimal
}

// TotalCost is the combined USD cost of both sides.
func (p PositionState) TotalCost() decimal.Decimal {
	return p.UpCost.Add(p.DownCost)
}

// MinShares is the smaller of the two sides — the number of shares with a
// guaranteed $1 payout regardless of which side resolves true.
func (p PositionState) MinShares() decimal.Decimal {
	if p.UpShares.Cmp(p.DownShares) <= 0 {
		return p.UpShares
	}
	return p.DownShares
}

// GuaranteedPayout is MinShares x $1.
func (p PositionState) GuaranteedPayout() decimal.Decimal {
	return p.MinShares()
}

// LockedProfit is the guaranteed payout minus what was paid for it.
// Invariant: LockedProfit + TotalCost == GuaranteedPayout.
func (p PositionState) LockedProfit() decimal.Decimal {
	return p.GuaranteedPayout().Sub(p.TotalCost())
}

// IsBalanced reports whether the two sides differ by less than 20% of their
// average size — the same modest-imbalance trigger point the session
// runner's rebalance routine is tuned to. An empty position is balanced.
func (p PositionState) IsBalanced() bool {
	avg := p.UpShares.Add(p.DownShares).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return true
	}
	diff := p.UpShares.Sub(p.DownShares).Abs()
	return diff.Div(avg).LessThan(decimal.NewFromFloat(0.2))
}

// Imbalance is |up-down|/avg, used by the rebalance routine's thresholds.
func (p PositionState) Imbalance() decimal.Decimal {
	avg := p.UpShares.Add(p.DownShares).Div(decimal.NewFromInt(2))
	if avg.IsZero() {
		return decimal.Zero
	}
	return p.UpShares.Sub(p.DownShares).Abs().Div(avg)
}

// ApplyFill updates cost/shares for a fill on the given outcome: a BUY adds
// size to its shares and price*size to its cost, a SELL subtracts both.
func (p *PositionState) ApplyFill(outcome Outcome, side Side, price, size decimal.Decimal) {
	cost := price.Mul(size)
	switch outcome {
	case Up:
		if side == BUY {
			p.UpShares = p.UpShares.Add(size)
			p.UpCost = p.UpCost.Add(cost)
		} else {
			p.UpShares = p.UpShares.Sub(size)
			p.UpCost = p.UpCost.Sub(cost)
		}
	case Down:
		if side == BUY {
			p.DownShares = p.DownShares.Add(size)
			p.DownCost = p.DownCost.Add(cost)
		} else {
			p.DownShares = p.DownShares.Sub(size)
			p.DownCost = p.DownCost.Sub(cost)
		}
	}
}
