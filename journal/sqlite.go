package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, market_id, side, size, entry_price, exit_price, realized_pnl, time, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.MarketID, t.Side, t.Size, t.EntryPrice,
		t.ExitPrice, t.RealizedPnL, t.Time, t.Outcome,
	)
	return err
}

func (j *SQLite) RecordSnapshot(s Snapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(time, balance, peak_balance, total_pnl, daily_pnl, weekly_pnl, drawdown,
		 win_rate, sharpe, sharpe_valid, open_positions, total_trades, wins, losses,
		 markets_scanned, opportunities_found, trades_executed, trades_failed,
		 api_calls, api_errors, avg_api_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time, s.Balance, s.PeakBalance, s.TotalPnL, s.DailyPnL, s.WeeklyPnL, s.Drawdown,
		s.WinRate, s.Sharpe, boolInt(s.SharpeValid), s.OpenPositions, s.TotalTrades, s.Wins, s.Losses,
		s.MarketsScanned, s.OpportunitiesFound, s.TradesExecuted, s.TradesFailed,
		s.APICalls, s.APIErrors, s.AvgAPILatency,
	)
	return err
}

// Snapshots returns the persisted snapshot stream in insertion order.
func (j *SQLite) Snapshots() ([]Snapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, peak_balance, total_pnl, daily_pnl, weekly_pnl, drawdown,
		       win_rate, sharpe, sharpe_valid, open_positions, total_trades, wins, losses,
		       markets_scanned, opportunities_found, trades_executed, trades_failed,
		       api_calls, api_errors, avg_api_latency_ms
		FROM snapshots ORDER BY time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var valid int
		if err := rows.Scan(
			&s.Time, &s.Balance, &s.PeakBalance, &s.TotalPnL, &s.DailyPnL, &s.WeeklyPnL, &s.Drawdown,
			&s.WinRate, &s.Sharpe, &valid, &s.OpenPositions, &s.TotalTrades, &s.Wins, &s.Losses,
			&s.MarketsScanned, &s.OpportunitiesFound, &s.TradesExecuted, &s.TradesFailed,
			&s.APICalls, &s.APIErrors, &s.AvgAPILatency,
		); err != nil {
			return nil, err
		}
		s.SharpeValid = valid != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
