package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/pkg/clock"
)

func newTestRecorder(t *testing.T) (*Recorder, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	return NewRecorder(365, clk), clk
}

func trade(id string, pnl float64) ledger.Trade {
	outcome := ledger.OutcomeBreakeven
	switch {
	case pnl > 0:
		outcome = ledger.OutcomeWin
	case pnl < 0:
		outcome = ledger.OutcomeLoss
	}
	return ledger.Trade{ID: id, MarketID: "mkt-1", RealizedPnL: pnl, Outcome: outcome}
}

func TestRecordTrade_WinRate(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t)

	r.RecordTrade(trade("t1", 100))
	r.RecordTrade(trade("t2", 50))
	r.RecordTrade(trade("t3", -80))
	r.RecordTrade(trade("t4", 0))

	s := r.Snapshot(ledger.PortfolioState{})
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
}

func TestRecordTrade_DedupByID(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t)

	tr := trade("t1", 100)
	r.RecordTrade(tr)
	r.RecordTrade(tr)
	r.RecordTrade(tr)

	s := r.Snapshot(ledger.PortfolioState{})
	assert.Equal(t, 1, s.Wins)
	assert.InDelta(t, 1.0, s.WinRate, 1e-9)
}

func TestSharpe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		returns   []float64
		wantValid bool
		want      float64
	}{
		{"empty", nil, false, 0},
		{"single return", []float64{10}, false, 0},
		{"flat series", []float64{10, 10, 10}, false, 0},
		// mean 5, population stddev 5: ratio 1 annualized.
		{"two returns", []float64{0, 10}, true, math.Sqrt(365)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, valid := sharpe(tt.returns, 365)
			assert.Equal(t, tt.wantValid, valid)
			if tt.wantValid {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestSnapshot_SharpeFromTrades(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t)

	r.RecordTrade(trade("t1", 100))
	s := r.Snapshot(ledger.PortfolioState{})
	assert.False(t, s.SharpeValid)

	r.RecordTrade(trade("t2", -50))
	s = r.Snapshot(ledger.PortfolioState{})
	assert.True(t, s.SharpeValid)
	// mean 25, population stddev 75.
	assert.InDelta(t, 25.0/75.0*math.Sqrt(365), s.Sharpe, 1e-9)
}

func TestRecordAPICall(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t)

	r.RecordAPICall("gamma", 100*time.Millisecond, true)
	r.RecordAPICall("gamma", 300*time.Millisecond, true)
	r.RecordAPICall("gamma", time.Second, false)
	r.RecordAPICall("clob", 50*time.Millisecond, true)

	stats := r.APIStatsFor("gamma")
	assert.Equal(t, 3, stats.Calls)
	assert.Equal(t, 1, stats.Errors)
	// Failed calls do not pollute the latency average.
	assert.InDelta(t, 200.0, stats.AvgLatencyMS, 1e-9)

	assert.Equal(t, APIStats{}, r.APIStatsFor("unknown"))

	s := r.Snapshot(ledger.PortfolioState{})
	assert.Equal(t, 4, s.APICalls)
	assert.Equal(t, 1, s.APIErrors)
	assert.InDelta(t, 150.0, s.AvgAPILatency, 1e-9)
}

func TestRecordScanAndExecution(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t)

	r.RecordScan(100, 5)
	r.RecordScan(80, 2)
	r.RecordExecution(true)
	r.RecordExecution(true)
	r.RecordExecution(false)

	s := r.Snapshot(ledger.PortfolioState{})
	assert.Equal(t, 180, s.MarketsScanned)
	assert.Equal(t, 7, s.OpportunitiesFound)
	assert.Equal(t, 2, s.TradesExecuted)
	assert.Equal(t, 1, s.TradesFailed)
}

func TestSnapshot_CarriesPortfolioState(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(t)

	p := ledger.PortfolioState{
		Balance:          10200,
		PeakBalance:      10500,
		RealizedPnLTotal: 200,
		DailyPnL:         -50,
		WeeklyPnL:        120,
		Drawdown:         0.0285,
		OpenPositions:    3,
		TotalTrades:      17,
	}

	s := r.Snapshot(p)
	assert.Equal(t, clk.Now(), s.Time)
	assert.InDelta(t, p.Balance, s.Balance, 1e-9)
	assert.InDelta(t, p.PeakBalance, s.PeakBalance, 1e-9)
	assert.InDelta(t, p.RealizedPnLTotal, s.TotalPnL, 1e-9)
	assert.InDelta(t, p.DailyPnL, s.DailyPnL, 1e-9)
	assert.InDelta(t, p.WeeklyPnL, s.WeeklyPnL, 1e-9)
	assert.InDelta(t, p.Drawdown, s.Drawdown, 1e-9)
	assert.Equal(t, p.OpenPositions, s.OpenPositions)
	assert.Equal(t, p.TotalTrades, s.TotalTrades)
}
