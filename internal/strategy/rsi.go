package strategy

import (
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/indicator"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// IDRSI identifies the RSI mean-reversion strategy.
const IDRSI = "rsi"

// RSI buys when the relative strength index crosses below the oversold
// threshold while flat and sells the whole position when it crosses
// above the overbought threshold. Crossings need a previous value, so
// the first ready reading never trades even if it is already past a
// threshold.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
	quantity   float64

	rsi       *indicator.RSI
	prevValue float64
	warmedUp  bool
}

// NewRSI returns an unconfigured instance; OnStart applies parameters.
func NewRSI() *RSI {
	return &RSI{}
}

// ID implements Strategy.
func (s *RSI) ID() string {
	return IDRSI
}

// OnStart implements Strategy. Parameters: period (default 14),
// oversold (default 30), overbought (default 70), quantity (default
// 0 = size to cash).
func (s *RSI) OnStart(universe []string, params map[string]float64) error {
	s.period = int(paramOr(params, "period", 14))
	s.oversold = paramOr(params, "oversold", 30)
	s.overbought = paramOr(params, "overbought", 70)
	s.quantity = paramOr(params, "quantity", 0)

	if s.oversold >= s.overbought {
		return errors.Newf(errors.ErrCodeStrategyConfig,
			"oversold %f must be below overbought %f", s.oversold, s.overbought)
	}

	var err error

	s.rsi, err = indicator.NewRSI(s.period)
	if err != nil {
		return err
	}

	s.warmedUp = false

	return nil
}

// OnBar implements Strategy.
func (s *RSI) OnBar(bar types.Bar, ctx Context) ([]types.Order, error) {
	s.rsi.Add(bar.Close)

	if !s.rsi.Ready() {
		return nil, nil
	}

	value, err := s.rsi.Value()
	if err != nil {
		return nil, err
	}

	defer func() {
		s.prevValue = value
		s.warmedUp = true
	}()

	if !s.warmedUp {
		return nil, nil
	}

	crossedBelow := s.prevValue >= s.oversold && value < s.oversold
	crossedAbove := s.prevValue <= s.overbought && value > s.overbought

	position, holding := ctx.GetPosition(bar.Symbol)

	if crossedBelow && !holding {
		quantity := sizeOrder(s.quantity, ctx.GetCash(), bar.Close)
		if quantity <= 0 {
			return nil, nil
		}

		return []types.Order{s.order(bar, types.SideBuy, quantity, "oversold")}, nil
	}

	if crossedAbove && holding && position.Direction == types.DirectionLong {
		return []types.Order{s.order(bar, types.SideSell, position.Quantity, "overbought")}, nil
	}

	return nil, nil
}

// OnEnd implements Strategy.
func (s *RSI) OnEnd(ctx Context) error {
	return nil
}

func (s *RSI) order(bar types.Bar, side types.Side, quantity float64, signal string) types.Order {
	return types.Order{
		ID:         uuid.NewString(),
		Symbol:     bar.Symbol,
		Side:       side,
		Type:       types.OrderTypeMarket,
		Quantity:   quantity,
		LimitPrice: optional.None[float64](),
		CreatedAt:  bar.Time,
		StrategyID: IDRSI,
		Reason: types.Reason{
			Reason:  signal,
			Message: "rsi threshold",
		},
	}
}
