// Package ledger owns open positions and realized P&L aggregates. All
// mutations are serialized behind one mutex; reads take the same mutex
// so reporting paths never observe torn state.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marketgrid/polytrader/market"
	"github.com/marketgrid/polytrader/pkg/clock"
	"github.com/marketgrid/polytrader/pkg/id"
)

var (
	// ErrLimitExceeded reports a position cap violation. The risk gate
	// checks the same caps first; this is the defensive re-check.
	ErrLimitExceeded = errors.New("ledger: position limit exceeded")

	ErrNotFound       = errors.New("ledger: position not found")
	ErrAlreadyClosed  = errors.New("ledger: position already closed")
	ErrInvalidRequest = errors.New("ledger: invalid open request")
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

type Position struct {
	ID         string
	MarketID   string
	Side       market.Side
	Size       float64
	EntryPrice float64
	OpenedAt   time.Time
	Status     Status
}

type Outcome string

const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
	OutcomeBreakeven Outcome = "BREAKEVEN"
)

// Trade is the immutable record of a closed position. Append-only once
// created.
type Trade struct {
	ID          string
	MarketID    string
	Side        market.Side
	Size        float64
	EntryPrice  float64
	ExitPrice   float64
	RealizedPnL float64
	Timestamp   time.Time
	Outcome     Outcome
}

// PortfolioState is a consistent snapshot of the portfolio aggregates.
type PortfolioState struct {
	Balance          float64
	PeakBalance      float64
	RealizedPnLTotal float64
	DailyPnL         float64
	WeeklyPnL        float64
	Drawdown         float64
	OpenPositions    int
	TotalTrades      int
}

// Caps are the defensive position limits re-checked on open.
type Caps struct {
	MaxPositionsTotal     int
	MaxPositionsPerMarket int
}

type Ledger struct {
	mu  sync.Mutex
	clk clock.Clock

	caps Caps

	balance     float64
	peakBalance float64
	totalPnL    float64

	dayKey   string
	weekKey  string
	dailyPnL float64
	weekPnL  float64

	positions map[string]*Position
	trades    []Trade
}

func New(initialBalance float64, caps Caps, clk clock.Clock) *Ledger {
	now := clk.Now()
	return &Ledger{
		clk:         clk,
		caps:        caps,
		balance:     initialBalance,
		peakBalance: initialBalance,
		dayKey:      dayKey(now),
		weekKey:     weekKey(now),
		positions:   make(map[string]*Position),
	}
}

// Open records a new position and returns its ID. It fails with
// ErrLimitExceeded if committing would violate the per-market or total
// position caps.
func (l *Ledger) Open(marketID string, side market.Side, size, price float64) (string, error) {
	if marketID == "" || size <= 0 || price <= 0 {
		return "", fmt.Errorf("%w: market=%q size=%.2f price=%.4f",
			ErrInvalidRequest, marketID, size, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	open := 0
	perMarket := 0
	for _, p := range l.positions {
		if p.Status != StatusOpen {
			continue
		}
		open++
		if p.MarketID == marketID {
			perMarket++
		}
	}
	if l.caps.MaxPositionsTotal > 0 && open >= l.caps.MaxPositionsTotal {
		return "", fmt.Errorf("%w: %d open positions", ErrLimitExceeded, open)
	}
	if l.caps.MaxPositionsPerMarket > 0 && perMarket >= l.caps.MaxPositionsPerMarket {
		return "", fmt.Errorf("%w: %d open in market %s", ErrLimitExceeded, perMarket, marketID)
	}

	pos := &Position{
		ID:         id.New(),
		MarketID:   marketID,
		Side:       side,
		Size:       size,
		EntryPrice: price,
		OpenedAt:   l.clk.Now(),
		Status:     StatusOpen,
	}
	l.positions[pos.ID] = pos
	return pos.ID, nil
}

// Close realizes a position's P&L at exitPrice, updates the portfolio
// aggregates, appends a Trade and marks the position CLOSED.
func (l *Ledger) Close(positionID string, exitPrice float64) (Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[positionID]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %s", ErrNotFound, positionID)
	}
	if pos.Status != StatusOpen {
		return Trade{}, fmt.Errorf("%w: %s", ErrAlreadyClosed, positionID)
	}

	return l.closeLocked(pos, exitPrice), nil
}

// CloseMarket closes every open position in a market at the given
// price. Used when a market resolves.
func (l *Ledger) CloseMarket(marketID string, price float64) []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var closed []Trade
	for _, pos := range l.positions {
		if pos.Status == StatusOpen && pos.MarketID == marketID {
			closed = append(closed, l.closeLocked(pos, price))
		}
	}
	return closed
}

func (l *Ledger) closeLocked(pos *Position, exitPrice float64) Trade {
	l.rolloverLocked()

	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	if pos.Side == market.SideSell {
		pnl = -pnl
	}

	l.balance += pnl
	l.totalPnL += pnl
	l.dailyPnL += pnl
	l.weekPnL += pnl
	if l.balance > l.peakBalance {
		l.peakBalance = l.balance
	}

	pos.Status = StatusClosed

	outcome := OutcomeBreakeven
	switch {
	case pnl > 0:
		outcome = OutcomeWin
	case pnl < 0:
		outcome = OutcomeLoss
	}

	trade := Trade{
		ID:          id.New(),
		MarketID:    pos.MarketID,
		Side:        pos.Side,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: pnl,
		Timestamp:   l.clk.Now(),
		Outcome:     outcome,
	}
	l.trades = append(l.trades, trade)
	return trade
}

// Exposure returns the sum of open position sizes in the market.
func (l *Ledger) Exposure(marketID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum float64
	for _, p := range l.positions {
		if p.Status == StatusOpen && p.MarketID == marketID {
			sum += p.Size
		}
	}
	return sum
}

// OpenCounts returns the total number of open positions and the number
// open in the given market, under one lock acquisition.
func (l *Ledger) OpenCounts(marketID string) (total, perMarket int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.positions {
		if p.Status != StatusOpen {
			continue
		}
		total++
		if p.MarketID == marketID {
			perMarket++
		}
	}
	return total, perMarket
}

// Summary returns a snapshot of the portfolio aggregates.
func (l *Ledger) Summary() PortfolioState {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	open := 0
	for _, p := range l.positions {
		if p.Status == StatusOpen {
			open++
		}
	}

	dd := 0.0
	if l.peakBalance > 0 {
		dd = (l.peakBalance - l.balance) / l.peakBalance
	}

	return PortfolioState{
		Balance:          l.balance,
		PeakBalance:      l.peakBalance,
		RealizedPnLTotal: l.totalPnL,
		DailyPnL:         l.dailyPnL,
		WeeklyPnL:        l.weekPnL,
		Drawdown:         dd,
		OpenPositions:    open,
		TotalTrades:      len(l.trades),
	}
}

// Positions returns copies of all positions, open and closed.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// SyncBalance overwrites the balance from an external source (wallet
// query). Peak balance never decreases.
func (l *Ledger) SyncBalance(balance float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = balance
	if balance > l.peakBalance {
		l.peakBalance = balance
	}
}

// rolloverLocked resets the daily and weekly accumulators when the UTC
// calendar day or ISO week changes.
func (l *Ledger) rolloverLocked() {
	now := l.clk.Now()
	if dk := dayKey(now); dk != l.dayKey {
		l.dayKey = dk
		l.dailyPnL = 0
	}
	if wk := weekKey(now); wk != l.weekKey {
		l.weekKey = wk
		l.weekPnL = 0
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
