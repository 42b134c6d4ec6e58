package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','snapshots')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["snapshots"])
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	rec := TradeRecord{
		TradeID:     "T1",
		MarketID:    "mkt-1",
		Side:        "BUY",
		Size:        100,
		EntryPrice:  0.45,
		ExitPrice:   1.0,
		RealizedPnL: 55,
		Time:        time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Outcome:     "WIN",
	}

	assert.NoError(t, j.RecordTrade(rec))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		tradeID string
		side    string
		pnl     float64
		outcome string
	)
	err = db.QueryRow(`SELECT trade_id, side, realized_pnl, outcome FROM trades`).
		Scan(&tradeID, &side, &pnl, &outcome)
	require.NoError(t, err)

	assert.Equal(t, "T1", tradeID)
	assert.Equal(t, "BUY", side)
	assert.InDelta(t, 55.0, pnl, 1e-9)
	assert.Equal(t, "WIN", outcome)
}

func TestSQLiteDuplicateTradeID(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	rec := TradeRecord{TradeID: "T1", MarketID: "mkt-1", Time: time.Now().UTC()}
	assert.NoError(t, j.RecordTrade(rec))
	assert.Error(t, j.RecordTrade(rec)) // trade_id is the primary key
}

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	first := Snapshot{
		Time:        base,
		Balance:     10200,
		PeakBalance: 10500,
		TotalPnL:    200,
		DailyPnL:    -50,
		WinRate:     0.6,
		Sharpe:      1.4,
		SharpeValid: true,
		TotalTrades: 5,
		Wins:        3,
		Losses:      2,
		APICalls:    42,
	}
	second := Snapshot{Time: base.Add(5 * time.Minute), Balance: 10150}

	require.NoError(t, j.RecordSnapshot(first))
	require.NoError(t, j.RecordSnapshot(second))

	got, err := j.Snapshots()
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Time.Equal(base))
	assert.InDelta(t, 10200.0, got[0].Balance, 1e-9)
	assert.InDelta(t, 1.4, got[0].Sharpe, 1e-9)
	assert.True(t, got[0].SharpeValid)
	assert.Equal(t, 3, got[0].Wins)
	assert.Equal(t, 42, got[0].APICalls)

	assert.False(t, got[1].SharpeValid)
	assert.InDelta(t, 10150.0, got[1].Balance, 1e-9)
}
