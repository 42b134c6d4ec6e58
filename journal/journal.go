// Package journal persists trade records and metric snapshots. Both
// backends append records in order; the snapshot stream is tolerant of
// a truncated final record on recovery.
package journal

import "time"

type TradeRecord struct {
	TradeID     string    `json:"trade_id"`
	MarketID    string    `json:"market_id"`
	Side        string    `json:"side"`
	Size        float64   `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Time        time.Time `json:"time"`
	Outcome     string    `json:"outcome"`
}

// Snapshot is one cycle's durable metric record. The field set is
// fixed; readers rely on it.
type Snapshot struct {
	Time time.Time `json:"time"`

	Balance     float64 `json:"balance"`
	PeakBalance float64 `json:"peak_balance"`
	TotalPnL    float64 `json:"total_pnl"`
	DailyPnL    float64 `json:"daily_pnl"`
	WeeklyPnL   float64 `json:"weekly_pnl"`
	Drawdown    float64 `json:"drawdown"`

	WinRate     float64 `json:"win_rate"`
	Sharpe      float64 `json:"sharpe"`
	SharpeValid bool    `json:"sharpe_valid"`

	OpenPositions int `json:"open_positions"`
	TotalTrades   int `json:"total_trades"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`

	MarketsScanned     int `json:"markets_scanned"`
	OpportunitiesFound int `json:"opportunities_found"`
	TradesExecuted     int `json:"trades_executed"`
	TradesFailed       int `json:"trades_failed"`

	APICalls      int     `json:"api_calls"`
	APIErrors     int     `json:"api_errors"`
	AvgAPILatency float64 `json:"avg_api_latency_ms"`
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(Snapshot) error
	Snapshots() ([]Snapshot, error)
	Close() error
}
