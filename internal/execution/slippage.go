// Package execution holds the pluggable slippage and fee policies the
// broker composes. Policies are pure and deterministic: identical
// inputs always produce identical prices and fees, which is what makes
// replayed runs reproducible.
package execution

import (
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/shopspring/decimal"
)

// SlippagePolicy transforms a reference price into a realized execution
// price. Implementations must be deterministic given identical inputs.
type SlippagePolicy interface {
	// Apply returns the adjusted execution price for the order against
	// the given bar and reference price.
	Apply(bar types.Bar, order types.Order, referencePrice float64) float64
}

// NoSlippage fills at the reference price. Used in tests to isolate
// portfolio math.
type NoSlippage struct{}

// NewNoSlippage creates a pass-through slippage policy.
func NewNoSlippage() SlippagePolicy {
	return &NoSlippage{}
}

// Apply returns the reference price unchanged.
func (s *NoSlippage) Apply(bar types.Bar, order types.Order, referencePrice float64) float64 {
	return referencePrice
}

// BpsSlippage shifts the fill against the order by a fixed number of
// basis points: buys fill above the reference, sells below.
type BpsSlippage struct {
	bps float64
}

// NewBpsSlippage creates a basis-point slippage policy.
func NewBpsSlippage(bps float64) SlippagePolicy {
	return &BpsSlippage{bps: bps}
}

// Apply shifts the reference price against the order side.
func (s *BpsSlippage) Apply(bar types.Bar, order types.Order, referencePrice float64) float64 {
	ref := decimal.NewFromFloat(referencePrice)
	shift := ref.Mul(decimal.NewFromFloat(s.bps)).Div(decimal.NewFromInt(10000))

	var adjusted decimal.Decimal
	if order.Side == types.SideBuy {
		adjusted = ref.Add(shift)
	} else {
		adjusted = ref.Sub(shift)
	}

	result, _ := adjusted.Float64()

	return result
}
