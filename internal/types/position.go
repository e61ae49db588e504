package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

type Direction string

type PositionStatus string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// Position is an open or closed holding in one symbol. Direction is
// fixed at open and never mutated; a fill that flips the sign of the
// exposure closes the position and opens a new one.
type Position struct {
	ID         string    `yaml:"id" json:"id" csv:"id"`
	Symbol     string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Direction  Direction `yaml:"direction" json:"direction" csv:"direction"`
	Quantity   float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`

	// EntryCommission accumulates the fees paid opening and increasing
	// the position; it is charged against realized P&L pro rata on close.
	EntryCommission float64                    `yaml:"entry_commission" json:"entry_commission" csv:"entry_commission"`
	ExitPrice       optional.Option[float64]   `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	OpenedAt        time.Time                  `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
	ClosedAt        optional.Option[time.Time] `yaml:"closed_at" json:"closed_at" csv:"closed_at"`
	Status          PositionStatus             `yaml:"status" json:"status" csv:"status"`
	RealizedPnL     float64                    `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	StrategyID      string                     `yaml:"strategy_id" json:"strategy_id" csv:"strategy_id"`
}

// DirectionSign returns +1 for long positions and -1 for short positions.
func (p *Position) DirectionSign() float64 {
	if p.Direction == DirectionShort {
		return -1
	}

	return 1
}

// UnrealizedPnL computes the mark-to-market profit of the open quantity
// against the given price.
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p.Status == PositionStatusClosed || p.Quantity == 0 {
		return 0
	}

	mark := decimal.NewFromFloat(markPrice)
	entry := decimal.NewFromFloat(p.EntryPrice)
	qty := decimal.NewFromFloat(p.Quantity)

	pnl := mark.Sub(entry).Mul(qty).Mul(decimal.NewFromFloat(p.DirectionSign()))
	result, _ := pnl.Float64()

	return result
}

// MarketValue is the signed exposure of the position at the given
// price: positive for longs, negative for shorts.
func (p *Position) MarketValue(markPrice float64) float64 {
	if p.Status == PositionStatusClosed {
		return 0
	}

	value := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(markPrice))
	result, _ := value.Float64()

	return result * p.DirectionSign()
}

// Snapshot is the point-in-time account state emitted once per
// processed bar. The ordered snapshots form the equity curve.
type Snapshot struct {
	Time          time.Time `yaml:"time" json:"time" csv:"time"`
	Cash          float64   `yaml:"cash" json:"cash" csv:"cash"`
	PositionValue float64   `yaml:"position_value" json:"position_value" csv:"position_value"`
	Equity        float64   `yaml:"equity" json:"equity" csv:"equity"`
}
