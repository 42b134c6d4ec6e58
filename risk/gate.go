// Package risk decides whether and at what size a trade may proceed.
// Checks run in a strict order and short-circuit on the first failure
// with a specific reason code; there is no silent bypass.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/market"
	"github.com/marketgrid/polytrader/pkg/clock"
)

// Reason identifies why an evaluation rejected a trade.
type Reason string

const (
	ReasonHalted         Reason = "HALTED"
	ReasonDailyLoss      Reason = "DAILY_LOSS"
	ReasonWeeklyLoss     Reason = "WEEKLY_LOSS"
	ReasonDrawdown       Reason = "DRAWDOWN"
	ReasonMaxPositions   Reason = "MAX_POSITIONS"
	ReasonPerMarketLimit Reason = "PER_MARKET_LIMIT"
	ReasonConcentration  Reason = "CONCENTRATION"
	ReasonBelowMinSize   Reason = "BELOW_MIN_SIZE"
)

// Decision is the outcome of one evaluation. A rejection is an expected
// control outcome, not an error.
type Decision struct {
	Approved bool
	Size     float64
	Reason   Reason
	Detail   string
}

func reject(r Reason, format string, args ...any) Decision {
	return Decision{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// Book is the ledger state the gate consults.
type Book interface {
	Summary() ledger.PortfolioState
	OpenCounts(marketID string) (total, perMarket int)
	Exposure(marketID string) float64
}

// HaltState reports which halts are currently in force.
type HaltState struct {
	Halted       bool // global/manual halt (emergency stop)
	DailyHalt    bool
	WeeklyHalt   bool
	DrawdownHalt bool
}

// Gate enforces the configured limits against live ledger state.
//
// Daily and weekly halts are sticky: once tripped they hold until the
// UTC day / ISO week rolls over or Reset is called. The drawdown halt
// is not time-bound and requires ClearDrawdownHalt.
type Gate struct {
	limits Limits
	book   Book
	clk    clock.Clock

	mu           sync.Mutex
	halted       bool
	dailyHaltDay string // day key while the daily halt is in force
	weeklyHaltWk string // week key while the weekly halt is in force
	drawdownHalt bool
}

func NewGate(limits Limits, book Book, clk clock.Clock) *Gate {
	return &Gate{limits: limits, book: book, clk: clk}
}

// Evaluate runs the ordered checks against the opportunity and, if all
// pass, sizes the trade. The check order is part of the contract:
// halt, daily loss, weekly loss, drawdown, total positions, per-market
// positions, then concentration on the sized trade.
func (g *Gate) Evaluate(opp market.Opportunity) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	sum := g.book.Summary()

	// (1) global halt
	if g.halted {
		return reject(ReasonHalted, "trading halted")
	}

	// (2) daily loss, sticky until day rollover
	if g.dailyHaltDay == dayKey(now) {
		return reject(ReasonDailyLoss, "daily halt in force")
	}
	g.dailyHaltDay = ""
	if sum.DailyPnL <= -g.limits.DailyLossLimit {
		g.dailyHaltDay = dayKey(now)
		return reject(ReasonDailyLoss, "daily pnl %.2f breaches limit %.2f",
			sum.DailyPnL, g.limits.DailyLossLimit)
	}

	// (3) weekly loss, sticky until week rollover
	if g.weeklyHaltWk == weekKey(now) {
		return reject(ReasonWeeklyLoss, "weekly halt in force")
	}
	g.weeklyHaltWk = ""
	if sum.WeeklyPnL <= -g.limits.WeeklyLossLimit {
		g.weeklyHaltWk = weekKey(now)
		return reject(ReasonWeeklyLoss, "weekly pnl %.2f breaches limit %.2f",
			sum.WeeklyPnL, g.limits.WeeklyLossLimit)
	}

	// (4) drawdown, manual clearance only
	if g.drawdownHalt {
		return reject(ReasonDrawdown, "drawdown halt in force")
	}
	if sum.Drawdown >= g.limits.MaxDrawdownPct {
		g.drawdownHalt = true
		return reject(ReasonDrawdown, "drawdown %.2f%% >= max %.2f%%",
			100*sum.Drawdown, 100*g.limits.MaxDrawdownPct)
	}

	// (5) total open positions
	total, perMarket := g.book.OpenCounts(opp.MarketID)
	if total >= g.limits.MaxPositionsTotal {
		return reject(ReasonMaxPositions, "%d open positions >= max %d",
			total, g.limits.MaxPositionsTotal)
	}

	// (6) per-market positions
	if perMarket >= g.limits.MaxPositionsPerMarket {
		return reject(ReasonPerMarketLimit, "%d open in %s >= max %d",
			perMarket, opp.MarketID, g.limits.MaxPositionsPerMarket)
	}

	// Sizing: fractional Kelly, clipped to the configured bounds.
	size := KellySize(opp.Edge, opp.CurrentPrice, opp.Confidence,
		g.limits.KellyFraction, sum.Balance)
	if size < g.limits.MinSize {
		size = g.limits.MinSize
	}
	if size > g.limits.MaxSize {
		size = g.limits.MaxSize
	}

	// (7) concentration on the sized trade. Shrink to the headroom the
	// limit allows rather than rounding up; too little headroom is a
	// rejection, never a silent resize upward.
	exposure := g.book.Exposure(opp.MarketID)
	capAmount := g.limits.MaxConcentrationPct * sum.Balance
	if exposure+size > capAmount {
		headroom := capAmount - exposure
		if headroom <= 0 {
			return reject(ReasonConcentration,
				"exposure %.2f already at cap %.2f in %s", exposure, capAmount, opp.MarketID)
		}
		if headroom < g.limits.MinSize {
			return reject(ReasonBelowMinSize,
				"concentration headroom %.2f below min size %.2f", headroom, g.limits.MinSize)
		}
		size = headroom
	}

	return Decision{Approved: true, Size: size}
}

// Halt engages the global halt (emergency stop).
func (g *Gate) Halt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = true
}

// Resume lifts the global halt. Sticky loss and drawdown halts are not
// affected.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = false
}

// Reset clears the daily and weekly loss halts before their rollover.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyHaltDay = ""
	g.weeklyHaltWk = ""
}

// ClearDrawdownHalt lifts the drawdown halt. There is no automatic
// clearance for it.
func (g *Gate) ClearDrawdownHalt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drawdownHalt = false
}

// Halts reports the halt flags currently in force.
func (g *Gate) Halts() HaltState {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	return HaltState{
		Halted:       g.halted,
		DailyHalt:    g.dailyHaltDay == dayKey(now),
		WeeklyHalt:   g.weeklyHaltWk == weekKey(now),
		DrawdownHalt: g.drawdownHalt,
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
