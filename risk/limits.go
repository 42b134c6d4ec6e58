package risk

// Limits is the immutable risk configuration, constructed once at
// startup and passed in explicitly. Never read from global state.
type Limits struct {
	// Loss circuit breakers (account currency)
	DailyLossLimit  float64 // 500
	WeeklyLossLimit float64 // 2000

	// Drawdown kill-switch, fraction of peak balance
	MaxDrawdownPct float64 // 0.20

	// Position size bounds (account currency)
	MinSize float64 // 10
	MaxSize float64 // 100

	// Exposure limits
	MaxPositionsTotal     int     // 10
	MaxPositionsPerMarket int     // 1
	MaxConcentrationPct   float64 // 0.30 of balance in one market

	// Conservative Kelly multiplier
	KellyFraction float64 // 0.25
}
