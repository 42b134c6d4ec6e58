// Package market defines the typed boundary between the trading core and
// the prediction-market API. Loosely-typed payloads are validated and
// converted here; nothing past this package handles raw JSON.
package market

import (
	"fmt"
	"math"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opportunity is a candidate trade produced by a scan. Edge is the
// estimated probability minus the market-implied probability.
type Opportunity struct {
	MarketID      string
	Question      string
	Side          Side
	Edge          float64
	Confidence    float64
	CurrentPrice  float64
	Liquidity     float64
	ExpectedValue float64 // per dollar staked, used for ranking
}

// Resolution reports a market that has settled since the last scan.
// Open positions in it close at the settlement price.
type Resolution struct {
	MarketID string
	Price    float64
}

// ScanResult is one scan cycle's output.
type ScanResult struct {
	MarketsScanned int
	Opportunities  []Opportunity
	Resolutions    []Resolution
}

// Validate rejects malformed opportunities at the boundary so the risk
// gate never sees them.
func (o Opportunity) Validate() error {
	if o.MarketID == "" {
		return fmt.Errorf("opportunity: missing market id")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("opportunity %s: invalid side %q", o.MarketID, o.Side)
	}
	if o.CurrentPrice <= 0 || o.CurrentPrice >= 1 {
		return fmt.Errorf("opportunity %s: price %.4f outside (0,1)", o.MarketID, o.CurrentPrice)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("opportunity %s: confidence %.4f outside [0,1]", o.MarketID, o.Confidence)
	}
	if math.IsNaN(o.Edge) || math.Abs(o.Edge) >= 1 {
		return fmt.Errorf("opportunity %s: edge %.4f out of range", o.MarketID, o.Edge)
	}
	if o.Liquidity < 0 {
		return fmt.Errorf("opportunity %s: negative liquidity", o.MarketID)
	}
	return nil
}

// ExpectedValuePerDollar returns the expected profit of staking one
// dollar given the edge and the YES price. Positive edge means buying
// YES, negative edge means buying NO.
func ExpectedValuePerDollar(edge, yesPrice float64) float64 {
	var winAmount, lossAmount, probWin float64
	if edge > 0 {
		winAmount = (1 - yesPrice)
		lossAmount = yesPrice
		probWin = yesPrice + edge
	} else {
		winAmount = yesPrice
		lossAmount = (1 - yesPrice)
		probWin = 1 - (yesPrice + edge)
	}
	return probWin*winAmount - (1-probWin)*lossAmount
}
