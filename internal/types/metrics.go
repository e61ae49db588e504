package types

// PerformanceMetrics is the standardized analytics report computed once
// at run end from the full recorder history. All percentage metrics are
// finite or explicitly 0 on degenerate input, except ProfitFactor which
// is +Inf when there are wins and no losses.
type PerformanceMetrics struct {
	// TotalReturn is the percentage return over initial capital.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// AnnualizedReturn extrapolates the total return over a 365-day year.
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`
	// SharpeRatio is the annualized mean excess return over volatility.
	// Zero when the equity curve has fewer than two points or zero variance.
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// MaxDrawdown is the largest percentage decline from a running peak.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// MaxDrawdownDuration is the number of bars between the peak and its
	// trough, not the recovery time.
	MaxDrawdownDuration int `yaml:"max_drawdown_duration" json:"max_drawdown_duration"`
	// WinRate counts winning individual filled trades over total filled
	// trades, with P&L attributed by pairing buys and sells in emission
	// order. This deliberately conflates trades and round-trips; callers
	// depend on the historical convention.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// ProfitFactor is gross wins over gross losses.
	ProfitFactor  float64 `yaml:"profit_factor" json:"profit_factor"`
	TotalTrades   int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int     `yaml:"losing_trades" json:"losing_trades"`
	FinalEquity   float64 `yaml:"final_equity" json:"final_equity"`
}
