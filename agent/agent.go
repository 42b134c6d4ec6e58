// Package agent drives the scan → gate → execute → commit cycle. Each
// opportunity is isolated: a rejection, an open circuit or a failed
// execution never aborts the cycle or corrupts the ledger.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/breaker"
	"github.com/marketgrid/polytrader/executor"
	"github.com/marketgrid/polytrader/journal"
	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/market"
	"github.com/marketgrid/polytrader/metrics"
	"github.com/marketgrid/polytrader/pkg/clock"
	"github.com/marketgrid/polytrader/risk"
)

var (
	metricCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "polytrader_cycles_total",
		Help: "Completed scan cycles",
	})
	metricDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polytrader_decisions_total",
		Help: "Risk gate decisions by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(metricCycles, metricDecisions)
}

// Config are the orchestrator's cycle parameters.
type Config struct {
	ScanInterval time.Duration
	ExecTimeout  time.Duration
	TopPerCycle  int // opportunities attempted per cycle
	ScannerDep   string
	ExecutorDep  string
}

type Agent struct {
	cfg      Config
	scanner  market.Scanner
	gate     *risk.Gate
	book     *ledger.Ledger
	recorder *metrics.Recorder
	exec     executor.Executor
	jnl      journal.Journal
	clk      clock.Clock
	log      *zap.Logger

	breakers map[string]*breaker.Breaker
}

func New(
	cfg Config,
	scanner market.Scanner,
	gate *risk.Gate,
	book *ledger.Ledger,
	recorder *metrics.Recorder,
	exec executor.Executor,
	scanBreaker, execBreaker *breaker.Breaker,
	jnl journal.Journal,
	clk clock.Clock,
	log *zap.Logger,
) *Agent {
	return &Agent{
		cfg:      cfg,
		scanner:  scanner,
		gate:     gate,
		book:     book,
		recorder: recorder,
		exec:     exec,
		jnl:      jnl,
		clk:      clk,
		log:      log,
		breakers: map[string]*breaker.Breaker{
			cfg.ScannerDep:  scanBreaker,
			cfg.ExecutorDep: execBreaker,
		},
	}
}

// CircuitState reports the breaker state for a dependency name.
func (a *Agent) CircuitState(dependency string) (breaker.State, bool) {
	b, ok := a.breakers[dependency]
	if !ok {
		return breaker.State{}, false
	}
	return b.State(), true
}

// Run cycles until ctx is cancelled. The inter-cycle sleep is
// interruptible: cancellation takes effect immediately, not at the next
// cycle boundary.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("agent started",
		zap.String("executor", a.exec.Name()),
		zap.Duration("interval", a.cfg.ScanInterval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	// Drain the immediate first tick so the loop structure is uniform.
	<-timer.C

	for {
		if err := a.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			a.log.Error("cycle failed", zap.Error(err))
		}

		timer.Reset(a.cfg.ScanInterval)
		select {
		case <-ctx.Done():
			a.log.Info("agent stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle performs one full scan cycle and persists a metric snapshot.
func (a *Agent) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := a.scan(ctx)
	if err != nil {
		var open *breaker.OpenError
		if errors.As(err, &open) {
			a.log.Warn("scanner circuit open, skipping cycle", zap.Error(err))
			return a.persistSnapshot()
		}
		a.log.Error("scan failed", zap.Error(err))
		return a.persistSnapshot()
	}

	a.settleResolutions(result.Resolutions)

	a.recorder.RecordScan(result.MarketsScanned, len(result.Opportunities))
	a.log.Info("scan complete",
		zap.Int("markets", result.MarketsScanned),
		zap.Int("opportunities", len(result.Opportunities)),
	)

	attempted := 0
	for _, opp := range result.Opportunities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempted >= a.cfg.TopPerCycle {
			break
		}
		attempted++
		a.tryTrade(ctx, opp)
	}

	metricCycles.Inc()
	return a.persistSnapshot()
}

func (a *Agent) scan(ctx context.Context) (market.ScanResult, error) {
	var result market.ScanResult

	start := time.Now()
	invoked := false
	err := a.breakers[a.cfg.ScannerDep].Do(ctx, func(ctx context.Context) error {
		invoked = true
		var err error
		result, err = a.scanner.Scan(ctx)
		return err
	})
	if invoked {
		a.recorder.RecordAPICall(a.cfg.ScannerDep, time.Since(start), err == nil)
	}
	return result, err
}

// settleResolutions closes open positions in markets that have settled
// and feeds the resulting trades into the metrics and the journal.
func (a *Agent) settleResolutions(resolutions []market.Resolution) {
	for _, res := range resolutions {
		for _, trade := range a.book.CloseMarket(res.MarketID, res.Price) {
			a.commitTrade(trade)
			a.log.Info("position settled",
				zap.String("market", trade.MarketID),
				zap.Float64("pnl", trade.RealizedPnL),
				zap.String("outcome", string(trade.Outcome)),
			)
		}
	}
}

// tryTrade runs one opportunity through the gate and, if approved,
// through the breaker-wrapped executor. The ledger is only touched
// after the executor call has definitively resolved.
func (a *Agent) tryTrade(ctx context.Context, opp market.Opportunity) {
	decision := a.gate.Evaluate(opp)
	if !decision.Approved {
		metricDecisions.WithLabelValues(string(decision.Reason)).Inc()
		a.log.Debug("trade rejected",
			zap.String("market", opp.MarketID),
			zap.String("reason", string(decision.Reason)),
			zap.String("detail", decision.Detail),
		)
		return
	}
	metricDecisions.WithLabelValues("APPROVED").Inc()

	execCtx, cancel := context.WithTimeout(ctx, a.cfg.ExecTimeout)
	defer cancel()

	var fill executor.Result
	start := time.Now()
	invoked := false
	err := a.breakers[a.cfg.ExecutorDep].Do(execCtx, func(ctx context.Context) error {
		invoked = true
		var err error
		fill, err = a.exec.Execute(ctx, opp, decision.Size)
		return err
	})
	if invoked {
		a.recorder.RecordAPICall(a.cfg.ExecutorDep, time.Since(start), err == nil)
	}

	if err != nil {
		a.recorder.RecordExecution(false)

		var open *breaker.OpenError
		if errors.As(err, &open) {
			a.log.Warn("executor circuit open", zap.String("market", opp.MarketID), zap.Error(err))
			return
		}
		a.log.Warn("execution failed", zap.String("market", opp.MarketID), zap.Error(err))
		return
	}

	if _, err := a.book.Open(opp.MarketID, opp.Side, decision.Size, fill.FillPrice); err != nil {
		// Defensive cap re-check tripped between evaluate and commit.
		a.recorder.RecordExecution(false)
		a.log.Error("ledger rejected filled trade",
			zap.String("market", opp.MarketID), zap.Error(err))
		return
	}

	a.recorder.RecordExecution(true)
	a.log.Info("position opened",
		zap.String("market", opp.MarketID),
		zap.String("side", string(opp.Side)),
		zap.Float64("size", decision.Size),
		zap.Float64("price", fill.FillPrice),
	)
}

// commitTrade records a realized trade in the metrics and the journal.
func (a *Agent) commitTrade(t ledger.Trade) {
	a.recorder.RecordTrade(t)
	if err := a.jnl.RecordTrade(journal.TradeRecord{
		TradeID:     t.ID,
		MarketID:    t.MarketID,
		Side:        string(t.Side),
		Size:        t.Size,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		RealizedPnL: t.RealizedPnL,
		Time:        t.Timestamp,
		Outcome:     string(t.Outcome),
	}); err != nil {
		a.log.Error("journal trade failed", zap.String("trade", t.ID), zap.Error(err))
	}
}

// ClosePosition realizes a position at the given price, outside the
// scan cycle (reporting API, manual intervention).
func (a *Agent) ClosePosition(positionID string, exitPrice float64) (ledger.Trade, error) {
	trade, err := a.book.Close(positionID, exitPrice)
	if err != nil {
		return ledger.Trade{}, err
	}
	a.commitTrade(trade)
	return trade, nil
}

func (a *Agent) persistSnapshot() error {
	snap := a.recorder.Snapshot(a.book.Summary())
	if err := a.jnl.RecordSnapshot(snap); err != nil {
		a.log.Error("persist snapshot failed", zap.Error(err))
		return err
	}

	a.log.Info("portfolio",
		zap.Float64("balance", snap.Balance),
		zap.Float64("total_pnl", snap.TotalPnL),
		zap.Float64("daily_pnl", snap.DailyPnL),
		zap.Float64("drawdown", snap.Drawdown),
		zap.Int("open_positions", snap.OpenPositions),
	)
	return nil
}
