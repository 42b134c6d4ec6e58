package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/breaker"
	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/market"
	"github.com/marketgrid/polytrader/pkg/clock"
	"github.com/marketgrid/polytrader/risk"
)

type fakeCore struct {
	book  *ledger.Ledger
	state breaker.State
}

func (f *fakeCore) CircuitState(dependency string) (breaker.State, bool) {
	if dependency != "gamma" {
		return breaker.State{}, false
	}
	return f.state, true
}

func (f *fakeCore) ClosePosition(positionID string, exitPrice float64) (ledger.Trade, error) {
	return f.book.Close(positionID, exitPrice)
}

func newTestServer(t *testing.T) (*Server, *fakeCore, *risk.Gate, *ledger.Ledger) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	book := ledger.New(10000, ledger.Caps{MaxPositionsTotal: 10, MaxPositionsPerMarket: 2}, clk)
	limits := risk.Limits{
		DailyLossLimit:        500,
		WeeklyLossLimit:       2000,
		MaxDrawdownPct:        0.20,
		MinSize:               10,
		MaxSize:               100,
		MaxPositionsTotal:     10,
		MaxPositionsPerMarket: 1,
		MaxConcentrationPct:   0.30,
		KellyFraction:         0.25,
	}
	gate := risk.NewGate(limits, book, clk)
	core := &fakeCore{book: book, state: breaker.State{Status: breaker.StatusClosed}}

	srv := NewServer(":0", core, gate, book, limits, zap.NewNop())
	return srv, core, gate, book
}

func getJSON(t *testing.T, srv *Server, handler http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()

	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandlePortfolio(t *testing.T) {
	t.Parallel()

	srv, _, _, book := newTestServer(t)

	id, err := book.Open("mkt-1", market.SideBuy, 100, 0.40)
	require.NoError(t, err)
	_, err = book.Close(id, 0.60)
	require.NoError(t, err)

	out := getJSON(t, srv, srv.handlePortfolio, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	assert.InDelta(t, 10020.0, out["balance"].(float64), 1e-9)
	assert.InDelta(t, 20.0, out["total_pnl"].(float64), 1e-9)
	assert.EqualValues(t, 1, out["total_trades"])
}

func TestHandlePositions_OpenFirst(t *testing.T) {
	t.Parallel()

	srv, _, _, book := newTestServer(t)

	id, err := book.Open("mkt-1", market.SideBuy, 100, 0.40)
	require.NoError(t, err)
	_, err = book.Close(id, 0.60)
	require.NoError(t, err)
	_, err = book.Open("mkt-2", market.SideBuy, 50, 0.30)
	require.NoError(t, err)

	out := getJSON(t, srv, srv.handlePositions, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	assert.EqualValues(t, 1, out["open"])

	positions := out["positions"].([]any)
	require.Len(t, positions, 2)
	first := positions[0].(map[string]any)
	assert.Equal(t, "mkt-2", first["market_id"])
	assert.Equal(t, "OPEN", first["status"])
}

func TestHandleClosePosition(t *testing.T) {
	t.Parallel()

	srv, _, _, book := newTestServer(t)

	id, err := book.Open("mkt-1", market.SideBuy, 100, 0.40)
	require.NoError(t, err)

	body := `{"position_id":"` + id + `","exit_price":0.50}`
	req := httptest.NewRequest(http.MethodPost, "/api/positions/close", strings.NewReader(body))
	out := getJSON(t, srv, srv.handleClosePosition, req)
	assert.InDelta(t, 10.0, out["pnl"].(float64), 1e-9)
	assert.Equal(t, "WIN", out["outcome"])

	// Closing again conflicts.
	rec := httptest.NewRecorder()
	srv.handleClosePosition(rec, httptest.NewRequest(http.MethodPost, "/api/positions/close", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// GET is not allowed.
	rec = httptest.NewRecorder()
	srv.handleClosePosition(rec, httptest.NewRequest(http.MethodGet, "/api/positions/close", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRisk(t *testing.T) {
	t.Parallel()

	srv, _, _, book := newTestServer(t)

	id, err := book.Open("mkt-1", market.SideBuy, 1000, 0.50)
	require.NoError(t, err)
	_, err = book.Close(id, 0.30) // down 200 on the day
	require.NoError(t, err)

	out := getJSON(t, srv, srv.handleRisk, httptest.NewRequest(http.MethodGet, "/api/risk", nil))
	assert.Equal(t, true, out["can_trade"])
	assert.InDelta(t, -200.0, out["daily_pnl"].(float64), 1e-9)
	assert.InDelta(t, 300.0, out["daily_loss_remaining"].(float64), 1e-9)
	assert.Empty(t, out["blocked_reasons"])
}

func TestEmergencyStopAndResume(t *testing.T) {
	t.Parallel()

	srv, _, gate, _ := newTestServer(t)

	out := getJSON(t, srv, srv.handleEmergencyStop,
		httptest.NewRequest(http.MethodPost, "/api/emergency-stop", nil))
	assert.Equal(t, "halted", out["status"])
	assert.True(t, gate.Halts().Halted)

	riskOut := getJSON(t, srv, srv.handleRisk, httptest.NewRequest(http.MethodGet, "/api/risk", nil))
	assert.Equal(t, false, riskOut["can_trade"])
	assert.Contains(t, riskOut["blocked_reasons"], "emergency_stop")

	out = getJSON(t, srv, srv.handleResume,
		httptest.NewRequest(http.MethodPost, "/api/resume", nil))
	assert.Equal(t, "resumed", out["status"])
	assert.False(t, gate.Halts().Halted)
}

func TestHandleCircuit(t *testing.T) {
	t.Parallel()

	srv, core, _, _ := newTestServer(t)
	core.state = breaker.State{Status: breaker.StatusOpen, ConsecutiveFailures: 5}

	out := getJSON(t, srv, srv.handleCircuit,
		httptest.NewRequest(http.MethodGet, "/api/circuit?dependency=gamma", nil))
	assert.Equal(t, "OPEN", out["status"])
	assert.EqualValues(t, 5, out["consecutive_failures"])

	rec := httptest.NewRecorder()
	srv.handleCircuit(rec, httptest.NewRequest(http.MethodGet, "/api/circuit?dependency=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	srv, _, _, _ := newTestServer(t)

	out := getJSON(t, srv, srv.handleStatus, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.InDelta(t, 10000.0, out["balance"].(float64), 1e-9)
	assert.Equal(t, false, out["halted"])
}
