// Package analytics turns a finished run's trades and equity curve
// into standardized performance metrics. Everything here is a pure
// function of its inputs so two identical runs always report identical
// numbers.
package analytics

import (
	"math"

	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// Annualized risk-free rate used in the Sharpe calculation.
	riskFreeRate = 0.0

	tradingDaysPerYear  = 252
	calendarDaysPerYear = 365
)

// Calculate derives the full metrics set from a run's fills and equity
// curve. Degenerate inputs produce explicit zeros rather than NaN: an
// empty curve reports zero returns, a flat curve reports Sharpe 0.
func Calculate(trades []types.Fill, equityCurve []types.Snapshot, initialCapital float64) types.PerformanceMetrics {
	metrics := types.PerformanceMetrics{
		FinalEquity: initialCapital,
		TotalTrades: len(trades),
	}

	if len(equityCurve) > 0 {
		metrics.FinalEquity = equityCurve[len(equityCurve)-1].Equity
	}

	if initialCapital > 0 {
		metrics.TotalReturn = (metrics.FinalEquity - initialCapital) / initialCapital * 100
	}

	metrics.AnnualizedReturn = annualizedReturn(equityCurve, initialCapital, metrics.FinalEquity)
	metrics.SharpeRatio = sharpeRatio(equityCurve)
	metrics.MaxDrawdown, metrics.MaxDrawdownDuration = maxDrawdown(equityCurve)

	wins, losses, winCount, lossCount := pairTrades(trades)
	metrics.WinningTrades = winCount
	metrics.LosingTrades = lossCount

	if len(trades) > 0 {
		metrics.WinRate = float64(winCount) / float64(len(trades)) * 100
	}

	metrics.ProfitFactor = profitFactor(wins, losses)

	return metrics
}

func annualizedReturn(equityCurve []types.Snapshot, initial, final float64) float64 {
	if len(equityCurve) < 2 || initial <= 0 {
		return 0
	}

	span := equityCurve[len(equityCurve)-1].Time.Sub(equityCurve[0].Time)
	days := span.Hours() / 24
	if days <= 0 {
		return 0
	}

	return (math.Pow(final/initial, calendarDaysPerYear/days) - 1) * 100
}

func sharpeRatio(equityCurve []types.Snapshot) float64 {
	if len(equityCurve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equityCurve)-1)

	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1].Equity
		if prev == 0 {
			return 0
		}

		returns = append(returns, (equityCurve[i].Equity-prev)/prev)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}

	dailyRiskFree := riskFreeRate / tradingDaysPerYear

	return (mean - dailyRiskFree) / stdev * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown reports the deepest peak-to-trough decline in percent and
// its length in bars. Duration runs from the peak to the trough, not to
// recovery.
func maxDrawdown(equityCurve []types.Snapshot) (float64, int) {
	if len(equityCurve) == 0 {
		return 0, 0
	}

	peak := equityCurve[0].Equity
	peakIndex := 0
	maxDD := 0.0
	duration := 0

	for i, point := range equityCurve {
		if point.Equity > peak {
			peak = point.Equity
			peakIndex = i

			continue
		}

		if peak <= 0 {
			continue
		}

		dd := (peak - point.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
			duration = i - peakIndex
		}
	}

	return maxDD, duration
}

// pairTrades matches the i-th buy with the i-th sell in emission order
// and classifies each pair by net P&L. The counts feed the win rate,
// which divides winning pairs by total individual fills.
func pairTrades(trades []types.Fill) (wins, losses decimal.Decimal, winCount, lossCount int) {
	var buys, sells []types.Fill

	for _, trade := range trades {
		if trade.Side == types.SideBuy {
			buys = append(buys, trade)
		} else {
			sells = append(sells, trade)
		}
	}

	pairs := len(buys)
	if len(sells) < pairs {
		pairs = len(sells)
	}

	wins = decimal.Zero
	losses = decimal.Zero

	for i := 0; i < pairs; i++ {
		buy, sell := buys[i], sells[i]

		quantity := buy.Quantity
		if sell.Quantity < quantity {
			quantity = sell.Quantity
		}

		pnl := decimal.NewFromFloat(sell.Price).
			Sub(decimal.NewFromFloat(buy.Price)).
			Mul(decimal.NewFromFloat(quantity)).
			Sub(decimal.NewFromFloat(buy.Commission)).
			Sub(decimal.NewFromFloat(sell.Commission))

		switch {
		case pnl.IsPositive():
			wins = wins.Add(pnl)
			winCount++
		case pnl.IsNegative():
			losses = losses.Add(pnl.Abs())
			lossCount++
		}
	}

	return wins, losses, winCount, lossCount
}

func profitFactor(wins, losses decimal.Decimal) float64 {
	if losses.IsZero() {
		if wins.IsPositive() {
			return math.Inf(1)
		}

		return 0
	}

	factor, _ := wins.Div(losses).Float64()

	return factor
}

// DrawdownCurve produces one drawdown percentage per equity point using
// the same running-peak method as the max-drawdown metric. The first
// point is always 0.
func DrawdownCurve(equityCurve []types.Snapshot) []float64 {
	curve := make([]float64, len(equityCurve))
	if len(equityCurve) == 0 {
		return curve
	}

	peak := equityCurve[0].Equity

	for i, point := range equityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			curve[i] = (peak - point.Equity) / peak * 100
		}
	}

	return curve
}
