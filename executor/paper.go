package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/market"
)

// Paper simulates execution: every order fills at the quoted price
// plus a fixed slippage against the taker.
type Paper struct {
	slippage float64 // price points, applied against the order
	log      *zap.Logger
}

func NewPaper(slippage float64, log *zap.Logger) *Paper {
	return &Paper{slippage: slippage, log: log}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) Execute(ctx context.Context, opp market.Opportunity, size float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ExecError{MarketID: opp.MarketID, Reason: "context done", Err: err}
	}

	fill := opp.CurrentPrice + p.slippage
	if opp.Side == market.SideSell {
		fill = opp.CurrentPrice - p.slippage
	}

	p.log.Info("paper fill",
		zap.String("market", opp.MarketID),
		zap.String("side", string(opp.Side)),
		zap.Float64("size", size),
		zap.Float64("price", fill),
	)
	return Result{FillPrice: fill}, nil
}
