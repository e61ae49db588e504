// Package portfolio is the account ledger: cash, positions, realized
// and unrealized P&L, and the per-bar equity snapshots that become the
// equity curve. The Broker is the only writer; strategies read it
// through their context.
package portfolio

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"github.com/shopspring/decimal"
)

// Portfolio tracks cash and at most one open position per symbol.
type Portfolio struct {
	mu sync.RWMutex

	cash   decimal.Decimal
	open   map[string]*types.Position
	closed []types.Position
	marks  map[string]float64
	curve  []types.Snapshot
}

// NewPortfolio creates a ledger funded with the given capital.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		cash:  decimal.NewFromFloat(initialCapital),
		open:  make(map[string]*types.Position),
		marks: make(map[string]float64),
	}
}

// GetCash returns the current cash balance.
func (p *Portfolio) GetCash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cash, _ := p.cash.Float64()

	return cash
}

// GetPosition returns the open position for a symbol, if any.
func (p *Portfolio) GetPosition(symbol string) (types.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.open[symbol]
	if !ok {
		return types.Position{}, false
	}

	return *pos, true
}

// OpenPositions returns a copy of all open positions.
func (p *Portfolio) OpenPositions() []types.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]types.Position, 0, len(p.open))
	for _, pos := range p.open {
		positions = append(positions, *pos)
	}

	return positions
}

// ClosedPositions returns a copy of all closed positions in close order.
func (p *Portfolio) ClosedPositions() []types.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]types.Position, len(p.closed))
	copy(positions, p.closed)

	return positions
}

// MarkPrice records the latest close for a symbol. Unrealized P&L and
// equity snapshots are valued against these marks.
func (p *Portfolio) MarkPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.marks[symbol] = price
}

// Equity returns cash plus the signed market value of every open
// position at the latest marks.
func (p *Portfolio) Equity() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	equity, _ := p.cash.Add(p.positionValueLocked()).Float64()

	return equity
}

func (p *Portfolio) positionValueLocked() decimal.Decimal {
	value := decimal.Zero

	for symbol, pos := range p.open {
		mark, ok := p.marks[symbol]
		if !ok {
			mark = pos.EntryPrice
		}

		value = value.Add(decimal.NewFromFloat(pos.MarketValue(mark)))
	}

	return value
}

// ApplyFill updates cash and positions for one fill as a single
// logical transaction. A fill against an opposite-direction position
// reduces it first; any remaining quantity flips into a fresh position
// rather than merging.
func (p *Portfolio) ApplyFill(fill types.Fill) error {
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder,
			"fill must have positive quantity and price, got qty=%f price=%f", fill.Quantity, fill.Price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fillDirection := types.DirectionLong
	if fill.Side == types.SideSell {
		fillDirection = types.DirectionShort
	}

	pos, exists := p.open[fill.Symbol]

	switch {
	case !exists:
		p.openPosition(fill, fillDirection, fill.Quantity, fill.Commission)
	case pos.Direction == fillDirection:
		p.increasePosition(pos, fill)
	default:
		p.reducePosition(pos, fill, fillDirection)
	}

	return nil
}

func (p *Portfolio) openPosition(fill types.Fill, direction types.Direction, quantity, commission float64) {
	pos := &types.Position{
		ID:              uuid.NewString(),
		Symbol:          fill.Symbol,
		Direction:       direction,
		Quantity:        quantity,
		EntryPrice:      fill.Price,
		EntryCommission: commission,
		OpenedAt:        fill.ExecutedAt,
		Status:          types.PositionStatusOpen,
		StrategyID:      fill.StrategyID,
	}

	p.open[fill.Symbol] = pos
	p.settle(direction == types.DirectionLong, fill.Price, quantity, commission)
}

func (p *Portfolio) increasePosition(pos *types.Position, fill types.Fill) {
	oldQty := decimal.NewFromFloat(pos.Quantity)
	addQty := decimal.NewFromFloat(fill.Quantity)
	totalQty := oldQty.Add(addQty)

	oldNotional := oldQty.Mul(decimal.NewFromFloat(pos.EntryPrice))
	addNotional := addQty.Mul(decimal.NewFromFloat(fill.Price))

	pos.EntryPrice, _ = oldNotional.Add(addNotional).Div(totalQty).Float64()
	pos.Quantity, _ = totalQty.Float64()
	pos.EntryCommission += fill.Commission

	p.settle(pos.Direction == types.DirectionLong, fill.Price, fill.Quantity, fill.Commission)
}

func (p *Portfolio) reducePosition(pos *types.Position, fill types.Fill, fillDirection types.Direction) {
	closedQty := fill.Quantity
	if closedQty > pos.Quantity {
		closedQty = pos.Quantity
	}

	closeFraction := decimal.NewFromFloat(closedQty).Div(decimal.NewFromFloat(pos.Quantity))
	entryFeeShare := decimal.NewFromFloat(pos.EntryCommission).Mul(closeFraction)

	exitFraction := decimal.NewFromFloat(closedQty).Div(decimal.NewFromFloat(fill.Quantity))
	exitFeeShare := decimal.NewFromFloat(fill.Commission).Mul(exitFraction)

	gross := decimal.NewFromFloat(fill.Price).
		Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromFloat(closedQty)).
		Mul(decimal.NewFromFloat(pos.DirectionSign()))
	realized := gross.Sub(entryFeeShare).Sub(exitFeeShare)

	pos.RealizedPnL, _ = decimal.NewFromFloat(pos.RealizedPnL).Add(realized).Float64()
	pos.Quantity, _ = decimal.NewFromFloat(pos.Quantity).Sub(decimal.NewFromFloat(closedQty)).Float64()
	pos.EntryCommission, _ = decimal.NewFromFloat(pos.EntryCommission).Sub(entryFeeShare).Float64()

	// Closing a long sells at the fill price; closing a short buys back.
	closingIsBuy := pos.Direction == types.DirectionShort
	exitFee, _ := exitFeeShare.Float64()
	p.settle(closingIsBuy, fill.Price, closedQty, exitFee)

	if pos.Quantity == 0 {
		pos.Status = types.PositionStatusClosed
		pos.ExitPrice = optional.Some(fill.Price)
		pos.ClosedAt = optional.Some(fill.ExecutedAt)
		p.closed = append(p.closed, *pos)
		delete(p.open, fill.Symbol)
	}

	remainder := fill.Quantity - closedQty
	if remainder > 0 {
		remainderFee, _ := decimal.NewFromFloat(fill.Commission).Sub(exitFeeShare).Float64()
		p.openPosition(fill, fillDirection, remainder, remainderFee)
	}
}

// settle moves cash for one leg. Buying spends notional plus fee,
// selling collects notional minus fee.
func (p *Portfolio) settle(isBuy bool, price, quantity, fee float64) {
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))
	feeDec := decimal.NewFromFloat(fee)

	if isBuy {
		p.cash = p.cash.Sub(notional).Sub(feeDec)
	} else {
		p.cash = p.cash.Add(notional).Sub(feeDec)
	}
}

// Snapshot records the account state at the given bar time and appends
// it to the equity curve. The runner calls it exactly once per bar.
func (p *Portfolio) Snapshot(t time.Time) types.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	cash, _ := p.cash.Float64()
	positionValue, _ := p.positionValueLocked().Float64()

	snapshot := types.Snapshot{
		Time:          t,
		Cash:          cash,
		PositionValue: positionValue,
		Equity:        cash + positionValue,
	}

	p.curve = append(p.curve, snapshot)

	return snapshot
}

// EquityCurve returns a copy of all snapshots taken so far.
func (p *Portfolio) EquityCurve() []types.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	curve := make([]types.Snapshot, len(p.curve))
	copy(curve, p.curve)

	return curve
}
