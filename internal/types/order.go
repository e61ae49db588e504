package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

type Side string

type OrderType string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Rejection reason codes recorded with every rejected order.
const (
	RejectReasonInsufficientFunds string = "insufficient_funds"
	RejectReasonInvalidOrder      string = "invalid_order"
	RejectReasonInvalidLimitPrice string = "invalid_limit_price"
	RejectReasonLimitNotReached   string = "limit_not_reached"
)

// Reason carries the strategy's intent for an order, e.g. "golden_cross".
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// Order is a strategy-issued trade request. It is terminal: the broker
// either fills or rejects it, never both.
type Order struct {
	ID         string                   `yaml:"id" json:"id" csv:"id"`
	Symbol     string                   `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side       Side                     `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type       OrderType                `yaml:"order_type" json:"order_type" csv:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity   float64                  `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	CreatedAt  time.Time                `yaml:"created_at" json:"created_at" csv:"created_at" validate:"required"`
	StrategyID string                   `yaml:"strategy_id" json:"strategy_id" csv:"strategy_id" validate:"required"`
	Reason     Reason                   `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
}

// Validate validates the Order struct. A limit price is required iff the
// order type is LIMIT.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.Type == OrderTypeLimit {
		if o.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidLimitPrice, "limit order requires a limit price")
		}

		if o.LimitPrice.Unwrap() <= 0 {
			return errors.Newf(errors.ErrCodeInvalidLimitPrice, "limit price must be positive: %f", o.LimitPrice.Unwrap())
		}
	}

	if o.Type == OrderTypeMarket && o.LimitPrice.IsSome() {
		return errors.New(errors.ErrCodeInvalidOrder, "market order must not carry a limit price")
	}

	return nil
}

// Fill is the realized result of an order. Created by the broker at
// most once per order and immutable thereafter.
type Fill struct {
	OrderID    string  `yaml:"order_id" json:"order_id" csv:"order_id" validate:"required"`
	Symbol     string  `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side       Side    `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Quantity   float64 `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Price      float64 `yaml:"price" json:"price" csv:"price" validate:"required,gt=0"`
	Commission float64 `yaml:"commission" json:"commission" csv:"commission" validate:"gte=0"`

	// Slippage is the signed difference between the fill price and the
	// reference price the broker resolved from the bar.
	Slippage   float64   `yaml:"slippage" json:"slippage" csv:"slippage"`
	ExecutedAt time.Time `yaml:"executed_at" json:"executed_at" csv:"executed_at" validate:"required"`
	StrategyID string    `yaml:"strategy_id" json:"strategy_id" csv:"strategy_id"`
	Reason     Reason    `yaml:"reason" json:"reason" csv:"reason"`
}

// Rejection records a broker rejection. Rejections are reported, never
// thrown: a rejected order simply produces no fill.
type Rejection struct {
	Order   Order     `yaml:"order" json:"order"`
	Reason  string    `yaml:"reason" json:"reason" csv:"reason"`
	Message string    `yaml:"message" json:"message" csv:"message"`
	At      time.Time `yaml:"at" json:"at" csv:"at"`
}
