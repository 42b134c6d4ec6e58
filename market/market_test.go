package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validOpp() Opportunity {
	return Opportunity{
		MarketID:     "mkt-1",
		Question:     "Will it rain tomorrow?",
		Side:         SideBuy,
		Edge:         0.15,
		Confidence:   0.3,
		CurrentPrice: 0.45,
		Liquidity:    50000,
	}
}

func TestOpportunityValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Opportunity)
		wantOK bool
	}{
		{"valid", func(o *Opportunity) {}, true},
		{"missing market id", func(o *Opportunity) { o.MarketID = "" }, false},
		{"invalid side", func(o *Opportunity) { o.Side = "HOLD" }, false},
		{"price at zero", func(o *Opportunity) { o.CurrentPrice = 0 }, false},
		{"price at one", func(o *Opportunity) { o.CurrentPrice = 1 }, false},
		{"price above one", func(o *Opportunity) { o.CurrentPrice = 1.2 }, false},
		{"confidence negative", func(o *Opportunity) { o.Confidence = -0.1 }, false},
		{"confidence above one", func(o *Opportunity) { o.Confidence = 1.1 }, false},
		{"edge nan", func(o *Opportunity) { o.Edge = math.NaN() }, false},
		{"edge out of range", func(o *Opportunity) { o.Edge = 1.0 }, false},
		{"negative liquidity", func(o *Opportunity) { o.Liquidity = -1 }, false},
		{"sell side", func(o *Opportunity) { o.Side = SideSell; o.Edge = -0.15 }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opp := validOpp()
			tt.mutate(&opp)
			err := opp.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpectedValuePerDollar(t *testing.T) {
	t.Parallel()

	// Buying YES at 0.40 with a 0.10 edge: win prob 0.50, winning pays
	// 0.60 and losing forfeits the 0.40 stake.
	ev := ExpectedValuePerDollar(0.10, 0.40)
	assert.InDelta(t, 0.5*0.6-0.5*0.4, ev, 1e-9)

	// The NO side mirrors it.
	evNo := ExpectedValuePerDollar(-0.10, 0.60)
	assert.InDelta(t, ev, evNo, 1e-9)

	// Zero edge at the market price is break-even in expectation.
	assert.InDelta(t, 0.0, ExpectedValuePerDollar(0, 0.40), 1e-9)

	// Bigger edge, bigger EV.
	assert.Greater(t, ExpectedValuePerDollar(0.20, 0.40), ev)
}
