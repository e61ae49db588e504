package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func curve(equities ...float64) []types.Snapshot {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]types.Snapshot, len(equities))

	for i, equity := range equities {
		points[i] = types.Snapshot{
			Time:   base.AddDate(0, 0, i),
			Equity: equity,
		}
	}

	return points
}

func fill(side types.Side, qty, price, commission float64) types.Fill {
	return types.Fill{
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
	}
}

func TestCalculateEmptyInputs(t *testing.T) {
	metrics := Calculate(nil, nil, 10000)

	assert.Equal(t, 10000.0, metrics.FinalEquity)
	assert.Equal(t, 0.0, metrics.TotalReturn)
	assert.Equal(t, 0.0, metrics.AnnualizedReturn)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Equal(t, 0, metrics.MaxDrawdownDuration)
	assert.Equal(t, 0.0, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.ProfitFactor)
	assert.Equal(t, 0, metrics.TotalTrades)
}

func TestCalculateSinglePointCurve(t *testing.T) {
	metrics := Calculate(nil, curve(10500), 10000)

	assert.InDelta(t, 5, metrics.TotalReturn, 1e-9)
	assert.Equal(t, 0.0, metrics.AnnualizedReturn)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
}

func TestTotalReturn(t *testing.T) {
	metrics := Calculate(nil, curve(10000, 10500, 11000), 10000)

	assert.InDelta(t, 10, metrics.TotalReturn, 1e-9)
	assert.Equal(t, 11000.0, metrics.FinalEquity)
}

func TestAnnualizedReturnOverOneYear(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points := []types.Snapshot{
		{Time: base, Equity: 10000},
		{Time: base.AddDate(0, 0, 365), Equity: 11000},
	}

	metrics := Calculate(nil, points, 10000)
	assert.InDelta(t, 10, metrics.AnnualizedReturn, 1e-6)
}

func TestSharpeZeroOnFlatCurve(t *testing.T) {
	metrics := Calculate(nil, curve(10000, 10000, 10000, 10000), 10000)

	assert.Equal(t, 0.0, metrics.SharpeRatio)
}

func TestSharpePositiveOnSteadyGains(t *testing.T) {
	metrics := Calculate(nil, curve(10000, 10100, 10250, 10400), 10000)

	assert.Greater(t, metrics.SharpeRatio, 0.0)
	assert.False(t, math.IsNaN(metrics.SharpeRatio))
}

func TestMaxDrawdownDepthAndDuration(t *testing.T) {
	metrics := Calculate(nil, curve(10000, 11000, 9500, 9000, 10500), 10000)

	// Peak 11000 to trough 9000.
	assert.InDelta(t, 18.1818, metrics.MaxDrawdown, 1e-3)
	assert.Equal(t, 2, metrics.MaxDrawdownDuration)
}

func TestMaxDrawdownZeroOnMonotonicRise(t *testing.T) {
	metrics := Calculate(nil, curve(10000, 10100, 10200), 10000)

	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Equal(t, 0, metrics.MaxDrawdownDuration)
}

func TestWinRateCountsTradesNotPairs(t *testing.T) {
	// Two round trips: one wins 100, one loses 100. Four fills total.
	trades := []types.Fill{
		fill(types.SideBuy, 10, 100, 0),
		fill(types.SideSell, 10, 110, 0),
		fill(types.SideBuy, 10, 110, 0),
		fill(types.SideSell, 10, 100, 0),
	}

	metrics := Calculate(trades, curve(10000), 10000)

	assert.Equal(t, 4, metrics.TotalTrades)
	assert.Equal(t, 1, metrics.WinningTrades)
	assert.Equal(t, 1, metrics.LosingTrades)
	assert.InDelta(t, 25, metrics.WinRate, 1e-9)
}

func TestCommissionsTurnBreakevenPairIntoLoss(t *testing.T) {
	trades := []types.Fill{
		fill(types.SideBuy, 10, 100, 1),
		fill(types.SideSell, 10, 100, 1),
	}

	metrics := Calculate(trades, curve(10000), 10000)

	assert.Equal(t, 0, metrics.WinningTrades)
	assert.Equal(t, 1, metrics.LosingTrades)
	assert.Equal(t, 0.0, metrics.WinRate)
}

func TestProfitFactorInfiniteWithOnlyWins(t *testing.T) {
	trades := []types.Fill{
		fill(types.SideBuy, 10, 100, 0),
		fill(types.SideSell, 10, 110, 0),
	}

	metrics := Calculate(trades, curve(10000), 10000)
	assert.True(t, math.IsInf(metrics.ProfitFactor, 1))
}

func TestProfitFactorRatioOfWinsToLosses(t *testing.T) {
	trades := []types.Fill{
		fill(types.SideBuy, 10, 100, 0),
		fill(types.SideSell, 10, 120, 0), // +200
		fill(types.SideBuy, 10, 120, 0),
		fill(types.SideSell, 10, 110, 0), // -100
	}

	metrics := Calculate(trades, curve(10000), 10000)
	assert.InDelta(t, 2, metrics.ProfitFactor, 1e-9)
}

func TestUnpairedBuyIsCountedInTotalOnly(t *testing.T) {
	trades := []types.Fill{
		fill(types.SideBuy, 10, 100, 0),
		fill(types.SideSell, 10, 110, 0),
		fill(types.SideBuy, 10, 105, 0),
	}

	metrics := Calculate(trades, curve(10000), 10000)

	assert.Equal(t, 3, metrics.TotalTrades)
	assert.Equal(t, 1, metrics.WinningTrades)
	assert.InDelta(t, 100.0/3.0, metrics.WinRate, 1e-6)
}

func TestDrawdownCurveShape(t *testing.T) {
	equity := curve(10000, 11000, 9500, 9000, 10500)
	dd := DrawdownCurve(equity)

	require.Len(t, dd, len(equity))
	assert.Equal(t, 0.0, dd[0])

	for _, v := range dd {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	assert.InDelta(t, 18.1818, dd[3], 1e-3)
	assert.Equal(t, 0.0, dd[1])
}

func TestDrawdownCurveEmpty(t *testing.T) {
	assert.Empty(t, DrawdownCurve(nil))
}
