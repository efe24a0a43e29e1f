// Package decimalx collects the fixed-point decimal helpers shared by the
// signer, strategy, and reputation packages. Money, price, and probability
// quantities are decimal.Decimal everywhere in this codebase; float64 is
// reserved for statistical quantities (variance, CV%, log10) and only after
// an explicit, localized conversion at the point of use.
package decimalx

import (
	"math/big"

	"github.com/shopspring/decimal"

	"btcupdown/pkg/types"
)

// USDCScale is the integer scale applied to on-chain USDC-like amounts.
const USDCScale = 1_000_000

// WeiScale is the integer scale applied to on-chain wei-denominated amounts.
var WeiScale = decimal.New(1, 18)

func init() {
	decimal.DivisionPrecision = 24
}

// RoundDownToTick floors price to the nearest multiple of tick, clamping the
// result into (0, 1) so a limit order never prices at or beyond the bounds.
func RoundDownToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick).Floor()
	snapped := steps.Mul(tick)
	return ClampOpenUnit(snapped, tick)
}

// RoundUpToTick ceils price to the nearest multiple of tick, clamped into
// (0, 1).
func RoundUpToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick).Ceil()
	snapped := steps.Mul(tick)
	return ClampOpenUnit(snapped, tick)
}

// ClampOpenUnit clamps a decimal price into [tick, 1-tick] so it never
// settles exactly at the degenerate 0 or 1 price.
func ClampOpenUnit(price, tick decimal.Decimal) decimal.Decimal {
	floor := tick
	ceil := decimal.NewFromInt(1).Sub(tick)
	if price.LessThan(floor) {
		return floor
	}
	if price.GreaterThan(ceil) {
		return ceil
	}
	return price
}

// ToUSDCAmount scales a decimal quantity by 1e6 and truncates to an integer,
// matching the on-chain maker/taker amount encoding.
func ToUSDCAmount(v decimal.Decimal) *big.Int {
	scaled := v.Mul(decimal.NewFromInt(USDCScale)).Truncate(0)
	return scaled.BigInt()
}

// WeiToDecimal converts a raw wei-scaled *big.Int into a decimal value,
// retaining full precision (the integer form is never narrowed to float64
// before this conversion, unlike the float-based wei/1e18 shortcuts that
// lose precision above 2^53).
func WeiToDecimal(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(WeiScale)
}

// Min returns the smaller of two decimals.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of two decimals.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// TickDecimal converts a types.TickSize string enum into its decimal value.
func TickDecimal(tick types.TickSize) decimal.Decimal {
	return decimal.RequireFromString(string(tick))
}

// ClampRange clamps v into [lo, hi].
func ClampRange(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
