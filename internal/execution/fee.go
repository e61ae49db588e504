package execution

import (
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/shopspring/decimal"
)

// FeePolicy computes the commission charged for a fill. The returned
// fee is always >= 0.
type FeePolicy interface {
	Compute(symbol string, quantity float64, price float64, side types.Side) float64
}

// ZeroFee charges nothing. Used in tests to isolate portfolio math.
type ZeroFee struct{}

// NewZeroFee creates a zero commission policy.
func NewZeroFee() FeePolicy {
	return &ZeroFee{}
}

// Compute returns 0 for any fill.
func (f *ZeroFee) Compute(symbol string, quantity float64, price float64, side types.Side) float64 {
	return 0.0
}

// RateFee charges a fixed fraction of the traded notional, e.g. 0.001
// for 10 bps per side.
type RateFee struct {
	rate float64
}

// NewRateFee creates a notional-rate commission policy.
func NewRateFee(rate float64) FeePolicy {
	return &RateFee{rate: rate}
}

// Compute returns rate * quantity * price.
func (f *RateFee) Compute(symbol string, quantity float64, price float64, side types.Side) float64 {
	fee := decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(price)).
		Mul(decimal.NewFromFloat(f.rate))

	result, _ := fee.Float64()
	if result < 0 {
		return 0
	}

	return result
}

// PerShareFee charges a flat amount per share with a minimum per order,
// matching a typical US retail broker schedule.
type PerShareFee struct {
	perShare float64
	minimum  float64
}

// NewPerShareFee creates a per-share commission policy.
func NewPerShareFee(perShare, minimum float64) FeePolicy {
	return &PerShareFee{perShare: perShare, minimum: minimum}
}

// NewInteractiveBrokerFee returns the fixed IBKR-style schedule:
// $0.005 per share with a $1 minimum.
func NewInteractiveBrokerFee() FeePolicy {
	return &PerShareFee{perShare: 0.005, minimum: 1.0}
}

// Compute returns max(perShare * quantity, minimum).
func (f *PerShareFee) Compute(symbol string, quantity float64, price float64, side types.Side) float64 {
	fee := f.perShare * quantity
	if fee < f.minimum {
		return f.minimum
	}

	return fee
}
