// Package executor places approved orders. Paper and live execution
// are two variants of the same capability, selected once at
// construction; the orchestrator cannot tell them apart.
package executor

import (
	"context"
	"fmt"

	"github.com/marketgrid/polytrader/market"
)

// Result reports a definitively resolved execution.
type Result struct {
	FillPrice float64
}

// ExecError is an executor-reported failure. It is contained per
// opportunity: the position is not opened and the cycle continues.
type ExecError struct {
	MarketID string
	Reason   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed for %s: %s: %v", e.MarketID, e.Reason, e.Err)
	}
	return fmt.Sprintf("execution failed for %s: %s", e.MarketID, e.Reason)
}

func (e *ExecError) Unwrap() error { return e.Err }

type Executor interface {
	// Execute attempts to fill the opportunity at the given size. It
	// returns a Result only once the order has definitively resolved.
	Execute(ctx context.Context, opp market.Opportunity, size float64) (Result, error)
	Name() string
}
