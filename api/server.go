// Package api is the read-only reporting surface plus the emergency
// stop. It observes the ledger and metrics concurrently with the
// trading loop; every read goes through the owning component's lock.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/breaker"
	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/risk"
)

// Core is what the server needs from the trading core.
type Core interface {
	CircuitState(dependency string) (breaker.State, bool)
	ClosePosition(positionID string, exitPrice float64) (ledger.Trade, error)
}

type Server struct {
	httpServer *http.Server
	core       Core
	gate       *risk.Gate
	book       *ledger.Ledger
	limits     risk.Limits
	log        *zap.Logger
	startedAt  time.Time
}

func NewServer(addr string, core Core, gate *risk.Gate, book *ledger.Ledger, limits risk.Limits, log *zap.Logger) *Server {
	s := &Server{
		core:      core,
		gate:      gate,
		book:      book,
		limits:    limits,
		log:       log,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/positions/close", s.handleClosePosition)
	mux.HandleFunc("/api/risk", s.handleRisk)
	mux.HandleFunc("/api/circuit", s.handleCircuit)
	mux.HandleFunc("/api/emergency-stop", s.handleEmergencyStop)
	mux.HandleFunc("/api/resume", s.handleResume)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/status: overall process status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sum := s.book.Summary()
	halts := s.gate.Halts()
	s.writeJSON(w, map[string]any{
		"uptime_s":       time.Since(s.startedAt).Seconds(),
		"balance":        sum.Balance,
		"open_positions": sum.OpenPositions,
		"total_trades":   sum.TotalTrades,
		"halted":         halts.Halted,
	})
}

// GET /api/portfolio: full portfolio aggregates.
func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	sum := s.book.Summary()
	s.writeJSON(w, map[string]any{
		"balance":        sum.Balance,
		"peak_balance":   sum.PeakBalance,
		"total_pnl":      sum.RealizedPnLTotal,
		"daily_pnl":      sum.DailyPnL,
		"weekly_pnl":     sum.WeeklyPnL,
		"drawdown":       sum.Drawdown,
		"open_positions": sum.OpenPositions,
		"total_trades":   sum.TotalTrades,
	})
}

// GET /api/positions: all positions, open first.
func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		ID         string    `json:"id"`
		MarketID   string    `json:"market_id"`
		Side       string    `json:"side"`
		Size       float64   `json:"size"`
		EntryPrice float64   `json:"entry_price"`
		OpenedAt   time.Time `json:"opened_at"`
		Status     string    `json:"status"`
	}
	var open, closed []entry
	for _, p := range s.book.Positions() {
		e := entry{
			ID:         p.ID,
			MarketID:   p.MarketID,
			Side:       string(p.Side),
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
			OpenedAt:   p.OpenedAt,
			Status:     string(p.Status),
		}
		if p.Status == ledger.StatusOpen {
			open = append(open, e)
		} else {
			closed = append(closed, e)
		}
	}
	s.writeJSON(w, map[string]any{
		"positions": append(open, closed...),
		"open":      len(open),
	})
}

// POST /api/positions/close: manually realize a position.
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PositionID string  `json:"position_id"`
		ExitPrice  float64 `json:"exit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trade, err := s.core.ClosePosition(req.PositionID, req.ExitPrice)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeJSON(w, map[string]any{
		"trade_id": trade.ID,
		"pnl":      trade.RealizedPnL,
		"outcome":  string(trade.Outcome),
	})
}

// GET /api/risk: halt flags and loss-limit usage.
func (s *Server) handleRisk(w http.ResponseWriter, _ *http.Request) {
	sum := s.book.Summary()
	halts := s.gate.Halts()

	blocked := make([]string, 0, 4)
	if halts.Halted {
		blocked = append(blocked, "emergency_stop")
	}
	if halts.DailyHalt {
		blocked = append(blocked, "daily_loss_limit")
	}
	if halts.WeeklyHalt {
		blocked = append(blocked, "weekly_loss_limit")
	}
	if halts.DrawdownHalt {
		blocked = append(blocked, "max_drawdown")
	}

	dailyRemaining := s.limits.DailyLossLimit + sum.DailyPnL
	if dailyRemaining < 0 {
		dailyRemaining = 0
	}

	s.writeJSON(w, map[string]any{
		"can_trade":            len(blocked) == 0,
		"blocked_reasons":      blocked,
		"daily_pnl":            sum.DailyPnL,
		"daily_loss_limit":     s.limits.DailyLossLimit,
		"daily_loss_remaining": dailyRemaining,
		"weekly_pnl":           sum.WeeklyPnL,
		"drawdown":             sum.Drawdown,
		"max_drawdown":         s.limits.MaxDrawdownPct,
	})
}

// GET /api/circuit?dependency=name: breaker state for one dependency.
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	dep := r.URL.Query().Get("dependency")
	state, ok := s.core.CircuitState(dep)
	if !ok {
		http.Error(w, "unknown dependency", http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]any{
		"dependency":           dep,
		"status":               string(state.Status),
		"consecutive_failures": state.ConsecutiveFailures,
		"opened_at":            state.OpenedAt,
		"cooldown_until":       state.CooldownUntil,
	})
}

// POST /api/emergency-stop: engage the global halt.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.gate.Halt()
	s.log.Warn("emergency stop engaged via api")
	s.writeJSON(w, map[string]string{"status": "halted"})
}

// POST /api/resume: lift the global halt.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.gate.Resume()
	s.writeJSON(w, map[string]string{"status": "resumed"})
}
