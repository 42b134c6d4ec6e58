// Package metrics aggregates trade outcomes and cycle statistics and
// assembles the durable snapshots that close the loop.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/marketgrid/polytrader/journal"
	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/pkg/clock"
)

// latencyWindow bounds the per-dependency latency history used for the
// rolling average.
const latencyWindow = 1000

// APIStats are the per-dependency call aggregates.
type APIStats struct {
	Calls        int
	Errors       int
	AvgLatencyMS float64
}

type depStats struct {
	calls     int
	errors    int
	latencies []float64 // ms, successes only
}

type Recorder struct {
	mu  sync.Mutex
	clk clock.Clock

	periodsPerYear float64

	wins      int
	losses    int
	breakeven int
	returns   []float64
	seen      map[string]struct{} // trade IDs already counted

	deps map[string]*depStats

	marketsScanned     int
	opportunitiesFound int
	tradesExecuted     int
	tradesFailed       int
}

func NewRecorder(periodsPerYear float64, clk clock.Clock) *Recorder {
	return &Recorder{
		clk:            clk,
		periodsPerYear: periodsPerYear,
		seen:           make(map[string]struct{}),
		deps:           make(map[string]*depStats),
	}
}

// RecordTrade folds a completed trade into the win/loss counters and
// the return series. Re-delivering the same trade record is a no-op;
// the trade ID is the dedup key.
func (r *Recorder) RecordTrade(t ledger.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[t.ID]; dup {
		return
	}
	r.seen[t.ID] = struct{}{}

	switch t.Outcome {
	case ledger.OutcomeWin:
		r.wins++
	case ledger.OutcomeLoss:
		r.losses++
	default:
		r.breakeven++
	}
	r.returns = append(r.returns, t.RealizedPnL)
}

// RecordAPICall maintains per-dependency call counts, error counts and
// a rolling average latency.
func (r *Recorder) RecordAPICall(dependency string, latency time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.deps[dependency]
	if d == nil {
		d = &depStats{}
		r.deps[dependency] = d
	}
	d.calls++
	if !success {
		d.errors++
		return
	}
	d.latencies = append(d.latencies, float64(latency)/float64(time.Millisecond))
	if len(d.latencies) > latencyWindow {
		d.latencies = d.latencies[len(d.latencies)-latencyWindow:]
	}
}

// RecordScan accumulates one scan cycle's market and opportunity counts.
func (r *Recorder) RecordScan(markets, opportunities int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marketsScanned += markets
	r.opportunitiesFound += opportunities
}

// RecordExecution counts a trade execution attempt.
func (r *Recorder) RecordExecution(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.tradesExecuted++
	} else {
		r.tradesFailed++
	}
}

// APIStatsFor returns the aggregates for one dependency.
func (r *Recorder) APIStatsFor(dependency string) APIStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.deps[dependency]
	if d == nil {
		return APIStats{}
	}
	return APIStats{Calls: d.calls, Errors: d.errors, AvgLatencyMS: mean(d.latencies)}
}

// Snapshot captures the current aggregates together with the portfolio
// state. The result is immutable; persist it via a journal.
func (r *Recorder) Snapshot(p ledger.PortfolioState) journal.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := journal.Snapshot{
		Time: r.clk.Now(),

		Balance:     p.Balance,
		PeakBalance: p.PeakBalance,
		TotalPnL:    p.RealizedPnLTotal,
		DailyPnL:    p.DailyPnL,
		WeeklyPnL:   p.WeeklyPnL,
		Drawdown:    p.Drawdown,

		OpenPositions: p.OpenPositions,
		TotalTrades:   p.TotalTrades,
		Wins:          r.wins,
		Losses:        r.losses,

		MarketsScanned:     r.marketsScanned,
		OpportunitiesFound: r.opportunitiesFound,
		TradesExecuted:     r.tradesExecuted,
		TradesFailed:       r.tradesFailed,
	}

	if decided := r.wins + r.losses + r.breakeven; decided > 0 {
		s.WinRate = float64(r.wins) / float64(decided)
	}
	s.Sharpe, s.SharpeValid = sharpe(r.returns, r.periodsPerYear)

	var latencies []float64
	for _, d := range r.deps {
		s.APICalls += d.calls
		s.APIErrors += d.errors
		latencies = append(latencies, d.latencies...)
	}
	s.AvgAPILatency = mean(latencies)

	return s
}

// sharpe returns the annualized Sharpe ratio of the return series:
// mean / stddev, scaled by sqrt(periodsPerYear). It is undefined for
// fewer than two returns or a flat series.
func sharpe(returns []float64, periodsPerYear float64) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}
	m := mean(returns)
	var varsum float64
	for _, x := range returns {
		d := x - m
		varsum += d * d
	}
	sd := math.Sqrt(varsum / float64(len(returns)))
	if sd == 0 {
		return 0, false
	}
	return m / sd * math.Sqrt(periodsPerYear), true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
