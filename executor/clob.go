package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/market"
)

// CLOB places live fill-or-kill market orders against the exchange's
// central limit order book API.
type CLOB struct {
	client *resty.Client
	log    *zap.Logger
}

type CLOBConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewCLOB(cfg CLOBConfig, log *zap.Logger) *CLOB {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey)
	return &CLOB{client: client, log: log}
}

func (c *CLOB) Name() string { return "clob" }

type clobOrderRequest struct {
	MarketID  string  `json:"market_id"`
	Side      string  `json:"side"`
	Amount    float64 `json:"amount"`
	OrderType string  `json:"order_type"`
}

type clobOrderResponse struct {
	Success   bool    `json:"success"`
	FillPrice float64 `json:"fill_price"`
	Error     string  `json:"error"`
}

func (c *CLOB) Execute(ctx context.Context, opp market.Opportunity, size float64) (Result, error) {
	var out clobOrderResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(clobOrderRequest{
			MarketID:  opp.MarketID,
			Side:      string(opp.Side),
			Amount:    size,
			OrderType: "FOK",
		}).
		SetResult(&out).
		Post("/order")
	if err != nil {
		return Result{}, &ExecError{MarketID: opp.MarketID, Reason: "post order", Err: err}
	}
	if resp.IsError() {
		return Result{}, &ExecError{
			MarketID: opp.MarketID,
			Reason:   fmt.Sprintf("status %d", resp.StatusCode()),
		}
	}
	if !out.Success {
		return Result{}, &ExecError{MarketID: opp.MarketID, Reason: out.Error}
	}
	if out.FillPrice <= 0 || out.FillPrice >= 1 {
		return Result{}, &ExecError{
			MarketID: opp.MarketID,
			Reason:   fmt.Sprintf("implausible fill price %.4f", out.FillPrice),
		}
	}

	c.log.Info("live fill",
		zap.String("market", opp.MarketID),
		zap.String("side", string(opp.Side)),
		zap.Float64("size", size),
		zap.Float64("price", out.FillPrice),
	)
	return Result{FillPrice: out.FillPrice}, nil
}
