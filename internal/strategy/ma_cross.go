package strategy

import (
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/indicator"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// IDMACross identifies the moving-average crossover strategy.
const IDMACross = "ma_cross"

// MACross trades golden and death crosses of two simple moving
// averages. It buys when the short average crosses above the long one
// while flat, and closes the position on the opposite cross. No signal
// fires before both averages have a full window.
type MACross struct {
	shortPeriod int
	longPeriod  int
	quantity    float64

	short *indicator.SMA
	long  *indicator.SMA

	prevShort float64
	prevLong  float64
	warmedUp  bool
}

// NewMACross returns an unconfigured instance; OnStart applies
// parameters.
func NewMACross() *MACross {
	return &MACross{}
}

// ID implements Strategy.
func (s *MACross) ID() string {
	return IDMACross
}

// OnStart implements Strategy. Parameters: short_period (default 10),
// long_period (default 50), quantity (default 0 = size to cash).
func (s *MACross) OnStart(universe []string, params map[string]float64) error {
	s.shortPeriod = int(paramOr(params, "short_period", 10))
	s.longPeriod = int(paramOr(params, "long_period", 50))
	s.quantity = paramOr(params, "quantity", 0)

	if s.shortPeriod <= 0 || s.longPeriod <= 0 {
		return errors.Newf(errors.ErrCodeStrategyConfig,
			"periods must be positive, got short=%d long=%d", s.shortPeriod, s.longPeriod)
	}

	if s.shortPeriod >= s.longPeriod {
		return errors.Newf(errors.ErrCodeStrategyConfig,
			"short period %d must be below long period %d", s.shortPeriod, s.longPeriod)
	}

	var err error

	s.short, err = indicator.NewSMA(s.shortPeriod)
	if err != nil {
		return err
	}

	s.long, err = indicator.NewSMA(s.longPeriod)
	if err != nil {
		return err
	}

	s.warmedUp = false

	return nil
}

// OnBar implements Strategy.
func (s *MACross) OnBar(bar types.Bar, ctx Context) ([]types.Order, error) {
	s.short.Add(bar.Close)
	s.long.Add(bar.Close)

	if !s.long.Ready() {
		return nil, nil
	}

	shortVal, err := s.short.Value()
	if err != nil {
		return nil, err
	}

	longVal, err := s.long.Value()
	if err != nil {
		return nil, err
	}

	defer func() {
		s.prevShort = shortVal
		s.prevLong = longVal
		s.warmedUp = true
	}()

	if !s.warmedUp {
		return nil, nil
	}

	goldenCross := s.prevShort <= s.prevLong && shortVal > longVal
	deathCross := s.prevShort >= s.prevLong && shortVal < longVal

	position, holding := ctx.GetPosition(bar.Symbol)

	if goldenCross && !holding {
		quantity := sizeOrder(s.quantity, ctx.GetCash(), bar.Close)
		if quantity <= 0 {
			return nil, nil
		}

		return []types.Order{s.order(bar, types.SideBuy, quantity, "golden_cross")}, nil
	}

	if deathCross && holding && position.Direction == types.DirectionLong {
		return []types.Order{s.order(bar, types.SideSell, position.Quantity, "death_cross")}, nil
	}

	return nil, nil
}

// OnEnd implements Strategy.
func (s *MACross) OnEnd(ctx Context) error {
	return nil
}

func (s *MACross) order(bar types.Bar, side types.Side, quantity float64, signal string) types.Order {
	return types.Order{
		ID:         uuid.NewString(),
		Symbol:     bar.Symbol,
		Side:       side,
		Type:       types.OrderTypeMarket,
		Quantity:   quantity,
		LimitPrice: optional.None[float64](),
		CreatedAt:  bar.Time,
		StrategyID: IDMACross,
		Reason: types.Reason{
			Reason:  signal,
			Message: "moving average crossover",
		},
	}
}
