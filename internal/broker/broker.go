// Package broker routes orders into fills. It owns the only write path
// into the portfolio: resolve a reference price from the current bar,
// apply the slippage and fee policies, enforce the no-margin funds
// check, and apply the resulting fill atomically. A rejected order
// produces a Rejection with a reason code, never an error.
package broker

import (
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/execution"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/portfolio"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Broker struct {
	portfolio *portfolio.Portfolio
	slippage  execution.SlippagePolicy
	fee       execution.FeePolicy
	log       *logger.Logger
}

// NewBroker wires a broker over the portfolio it exclusively mutates.
func NewBroker(p *portfolio.Portfolio, slippage execution.SlippagePolicy, fee execution.FeePolicy, log *logger.Logger) *Broker {
	return &Broker{
		portfolio: p,
		slippage:  slippage,
		fee:       fee,
		log:       log,
	}
}

// Portfolio exposes the ledger for read access.
func (b *Broker) Portfolio() *portfolio.Portfolio {
	return b.portfolio
}

// Submit executes one order against the current bar. Exactly one of
// the returned options is set: a fill when the order executed, a
// rejection otherwise. An error means the ledger update itself failed
// and the run must stop.
func (b *Broker) Submit(bar types.Bar, order types.Order) (optional.Option[types.Fill], optional.Option[types.Rejection], error) {
	if err := order.Validate(); err != nil {
		reason := types.RejectReasonInvalidOrder
		if errors.HasCode(err, errors.ErrCodeInvalidLimitPrice) {
			reason = types.RejectReasonInvalidLimitPrice
		}

		return optional.None[types.Fill](), b.reject(bar, order, reason, err.Error()), nil
	}

	if order.Symbol != bar.Symbol {
		return optional.None[types.Fill](), b.reject(bar, order, types.RejectReasonInvalidOrder,
			"order symbol does not match current bar"), nil
	}

	referencePrice, reason, message := resolveReferencePrice(bar, order)
	if reason != "" {
		return optional.None[types.Fill](), b.reject(bar, order, reason, message), nil
	}

	price := b.slippage.Apply(bar, order, referencePrice)
	commission := b.fee.Compute(order.Symbol, order.Quantity, price, order.Side)

	if !b.fundsSufficient(order, price, commission) {
		return optional.None[types.Fill](), b.reject(bar, order, types.RejectReasonInsufficientFunds,
			"order cost exceeds available cash"), nil
	}

	fill := types.Fill{
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      price,
		Commission: commission,
		Slippage:   price - referencePrice,
		ExecutedAt: bar.Time,
		StrategyID: order.StrategyID,
		Reason:     order.Reason,
	}

	if err := b.portfolio.ApplyFill(fill); err != nil {
		return optional.None[types.Fill](), optional.None[types.Rejection](), err
	}

	b.log.Debug("Order filled",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity))

	return optional.Some(fill), optional.None[types.Rejection](), nil
}

// resolveReferencePrice returns the pre-slippage execution price, or a
// rejection reason when the order cannot execute on this bar. Market
// orders trade at the close. Limit orders have no resting book: they
// fill on the current bar or are rejected.
func resolveReferencePrice(bar types.Bar, order types.Order) (price float64, reason string, message string) {
	if order.Type == types.OrderTypeMarket {
		return bar.Close, "", ""
	}

	limit := order.LimitPrice.Unwrap()

	if order.Side == types.SideBuy {
		if bar.Low > limit {
			return 0, types.RejectReasonLimitNotReached, "bar low above buy limit"
		}

		// Filled at the better of limit and close.
		if bar.Close < limit {
			return bar.Close, "", ""
		}

		return limit, "", ""
	}

	if bar.High < limit {
		return 0, types.RejectReasonLimitNotReached, "bar high below sell limit"
	}

	return limit, "", ""
}

// fundsSufficient applies the no-margin policy: the cash delta of the
// fill, fee included, must not take the balance negative.
func (b *Broker) fundsSufficient(order types.Order, price, commission float64) bool {
	cash := decimal.NewFromFloat(b.portfolio.GetCash())
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(order.Quantity))
	fee := decimal.NewFromFloat(commission)

	var after decimal.Decimal
	if order.Side == types.SideBuy {
		after = cash.Sub(notional).Sub(fee)
	} else {
		after = cash.Add(notional).Sub(fee)
	}

	return !after.IsNegative()
}

func (b *Broker) reject(bar types.Bar, order types.Order, reason, message string) optional.Option[types.Rejection] {
	b.log.Debug("Order rejected",
		zap.String("symbol", order.Symbol),
		zap.String("reason", reason),
		zap.String("message", message))

	return optional.Some(types.Rejection{
		Order:   order,
		Reason:  reason,
		Message: message,
		At:      bar.Time,
	})
}
