// Package strategy defines the trading-strategy contract and the
// registry the runner resolves strategy ids against. Strategies are
// pure signal generators: they read account state through a Context
// and emit orders, never touching the portfolio directly.
package strategy

import (
	"github.com/quantsim-lab/quantsim/internal/types"
)

// Context is the read-only account view handed to a strategy on every
// bar.
type Context interface {
	// GetCash returns the current cash balance.
	GetCash() float64
	// GetPosition returns the open position for a symbol, if any.
	GetPosition(symbol string) (types.Position, bool)
	// Equity returns cash plus open position value at the latest marks.
	Equity() float64
}

// Strategy receives bars one at a time and responds with orders.
type Strategy interface {
	// ID is the identifier the strategy registers under.
	ID() string
	// OnStart resets internal state for a new run.
	OnStart(universe []string, params map[string]float64) error
	// OnBar processes one bar. Returned orders are submitted to the
	// broker in slice order. An error fails the run.
	OnBar(bar types.Bar, ctx Context) ([]types.Order, error)
	// OnEnd is called once after the last bar of a completed run.
	OnEnd(ctx Context) error
}

// paramOr reads a named parameter with a fallback.
func paramOr(params map[string]float64, name string, fallback float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}

	return fallback
}

// sizeOrder converts a quantity parameter into share count. A zero or
// absent quantity means "size to available cash", holding back 1% for
// commission.
func sizeOrder(quantity, cash, price float64) float64 {
	if quantity > 0 {
		return quantity
	}

	if price <= 0 {
		return 0
	}

	shares := float64(int(cash * 0.99 / price))
	if shares < 0 {
		return 0
	}

	return shares
}
