package portfolio

import (
	"testing"
	"time"

	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PortfolioTestSuite struct {
	suite.Suite

	portfolio *Portfolio
	now       time.Time
}

func TestPortfolioSuite(t *testing.T) {
	suite.Run(t, new(PortfolioTestSuite))
}

func (s *PortfolioTestSuite) SetupTest() {
	s.portfolio = NewPortfolio(10000)
	s.now = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
}

func (s *PortfolioTestSuite) fill(side types.Side, qty, price, commission float64) types.Fill {
	s.now = s.now.Add(time.Minute)

	return types.Fill{
		OrderID:    "order-1",
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		ExecutedAt: s.now,
		StrategyID: "ma_cross",
	}
}

func (s *PortfolioTestSuite) TestOpenLongPosition() {
	err := s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 1))
	s.Require().NoError(err)

	s.InDelta(10000-1001, s.portfolio.GetCash(), 1e-9)

	pos, ok := s.portfolio.GetPosition("AAPL")
	s.Require().True(ok)
	s.Equal(types.DirectionLong, pos.Direction)
	s.Equal(10.0, pos.Quantity)
	s.Equal(100.0, pos.EntryPrice)
	s.Equal(types.PositionStatusOpen, pos.Status)
}

func (s *PortfolioTestSuite) TestOpenShortPosition() {
	err := s.portfolio.ApplyFill(s.fill(types.SideSell, 10, 100, 1))
	s.Require().NoError(err)

	// Short sale proceeds are credited minus the fee.
	s.InDelta(10000+999, s.portfolio.GetCash(), 1e-9)

	pos, ok := s.portfolio.GetPosition("AAPL")
	s.Require().True(ok)
	s.Equal(types.DirectionShort, pos.Direction)
}

func (s *PortfolioTestSuite) TestIncreaseAveragesEntryPrice() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 1)))
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 110, 1)))

	pos, ok := s.portfolio.GetPosition("AAPL")
	s.Require().True(ok)
	s.Equal(20.0, pos.Quantity)
	s.InDelta(105, pos.EntryPrice, 1e-9)
	s.InDelta(2, pos.EntryCommission, 1e-9)
}

func (s *PortfolioTestSuite) TestRoundTripLosesExactlyTheCommissions() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 1.5)))
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideSell, 10, 100, 2.5)))

	s.InDelta(10000-4, s.portfolio.GetCash(), 1e-9)

	_, ok := s.portfolio.GetPosition("AAPL")
	s.False(ok)

	closed := s.portfolio.ClosedPositions()
	s.Require().Len(closed, 1)
	s.InDelta(-4, closed[0].RealizedPnL, 1e-9)
	s.Equal(types.PositionStatusClosed, closed[0].Status)
	s.Equal(100.0, closed[0].ExitPrice.Unwrap())
}

func (s *PortfolioTestSuite) TestPartialCloseChargesEntryFeeProRata() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 2)))
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideSell, 5, 110, 1)))

	pos, ok := s.portfolio.GetPosition("AAPL")
	s.Require().True(ok)
	s.Equal(5.0, pos.Quantity)
	// Half the entry fee remains against the open half.
	s.InDelta(1, pos.EntryCommission, 1e-9)
	// (110-100)*5 - 1 (entry share) - 1 (exit fee) = 48.
	s.InDelta(48, pos.RealizedPnL, 1e-9)
}

func (s *PortfolioTestSuite) TestShortProfitsWhenPriceFalls() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideSell, 10, 100, 0)))
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 90, 0)))

	closed := s.portfolio.ClosedPositions()
	s.Require().Len(closed, 1)
	s.InDelta(100, closed[0].RealizedPnL, 1e-9)
	s.InDelta(10100, s.portfolio.GetCash(), 1e-9)
}

func (s *PortfolioTestSuite) TestFlipClosesOldAndOpensOpposite() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 0)))
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideSell, 15, 110, 3)))

	closed := s.portfolio.ClosedPositions()
	s.Require().Len(closed, 1)
	s.Equal(types.DirectionLong, closed[0].Direction)
	// (110-100)*10 - 0 - 2 (10/15 of the exit fee) = 98.
	s.InDelta(98, closed[0].RealizedPnL, 1e-9)

	pos, ok := s.portfolio.GetPosition("AAPL")
	s.Require().True(ok)
	s.Equal(types.DirectionShort, pos.Direction)
	s.Equal(5.0, pos.Quantity)
	s.Equal(110.0, pos.EntryPrice)
	s.InDelta(1, pos.EntryCommission, 1e-9)
}

func (s *PortfolioTestSuite) TestSnapshotBuildsEquityCurve() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 0)))

	s.portfolio.MarkPrice("AAPL", 105)
	first := s.portfolio.Snapshot(s.now)

	s.InDelta(9000, first.Cash, 1e-9)
	s.InDelta(1050, first.PositionValue, 1e-9)
	s.InDelta(10050, first.Equity, 1e-9)

	s.portfolio.MarkPrice("AAPL", 95)
	second := s.portfolio.Snapshot(s.now.Add(time.Minute))
	s.InDelta(9950, second.Equity, 1e-9)

	curve := s.portfolio.EquityCurve()
	s.Require().Len(curve, 2)
	s.True(curve[0].Time.Before(curve[1].Time))
}

func (s *PortfolioTestSuite) TestShortPositionValueIsNegative() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideSell, 10, 100, 0)))

	s.portfolio.MarkPrice("AAPL", 110)
	snap := s.portfolio.Snapshot(s.now)

	s.InDelta(11000, snap.Cash, 1e-9)
	s.InDelta(-1100, snap.PositionValue, 1e-9)
	s.InDelta(9900, snap.Equity, 1e-9)
}

func (s *PortfolioTestSuite) TestEquityUsesEntryPriceBeforeFirstMark() {
	s.Require().NoError(s.portfolio.ApplyFill(s.fill(types.SideBuy, 10, 100, 0)))

	s.InDelta(10000, s.portfolio.Equity(), 1e-9)
}

func TestApplyFillRejectsNonPositiveQuantity(t *testing.T) {
	p := NewPortfolio(10000)

	err := p.ApplyFill(types.Fill{Symbol: "AAPL", Side: types.SideBuy, Quantity: 0, Price: 100})
	require.Error(t, err)

	err = p.ApplyFill(types.Fill{Symbol: "AAPL", Side: types.SideBuy, Quantity: 10, Price: -1})
	assert.Error(t, err)
}

func TestPositionsAreIndependentPerSymbol(t *testing.T) {
	p := NewPortfolio(100000)
	now := time.Now()

	require.NoError(t, p.ApplyFill(types.Fill{Symbol: "AAPL", Side: types.SideBuy, Quantity: 10, Price: 100, ExecutedAt: now}))
	require.NoError(t, p.ApplyFill(types.Fill{Symbol: "MSFT", Side: types.SideSell, Quantity: 5, Price: 200, ExecutedAt: now}))

	assert.Len(t, p.OpenPositions(), 2)

	aapl, ok := p.GetPosition("AAPL")
	require.True(t, ok)
	assert.Equal(t, types.DirectionLong, aapl.Direction)

	msft, ok := p.GetPosition("MSFT")
	require.True(t, ok)
	assert.Equal(t, types.DirectionShort, msft.Direction)
}
