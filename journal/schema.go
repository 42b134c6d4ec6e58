package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	market_id TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	time DATETIME NOT NULL,
	outcome TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	peak_balance REAL NOT NULL,
	total_pnl REAL NOT NULL,
	daily_pnl REAL NOT NULL,
	weekly_pnl REAL NOT NULL,
	drawdown REAL NOT NULL,
	win_rate REAL NOT NULL,
	sharpe REAL NOT NULL,
	sharpe_valid INTEGER NOT NULL,
	open_positions INTEGER NOT NULL,
	total_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	markets_scanned INTEGER NOT NULL,
	opportunities_found INTEGER NOT NULL,
	trades_executed INTEGER NOT NULL,
	trades_failed INTEGER NOT NULL,
	api_calls INTEGER NOT NULL,
	api_errors INTEGER NOT NULL,
	avg_api_latency_ms REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(time);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
`
