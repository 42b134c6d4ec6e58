package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKellySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		edge       float64
		price      float64
		confidence float64
		fraction   float64
		balance    float64
		want       float64
	}{
		// price 0.50, edge 0.10: winProb 0.60, even odds, kelly 0.20.
		{"positive edge", 0.10, 0.50, 1.0, 0.25, 10000, 500},
		// Mirror case buying NO has the same stake at even odds.
		{"negative edge", -0.10, 0.50, 1.0, 0.25, 10000, 500},
		{"confidence scales", 0.10, 0.50, 0.5, 0.25, 10000, 250},
		{"fraction scales", 0.10, 0.50, 1.0, 0.10, 10000, 200},
		{"zero edge", 0, 0.50, 1.0, 0.25, 10000, 0},
		{"price at zero", 0.10, 0, 1.0, 0.25, 10000, 0},
		{"price at one", 0.10, 1, 1.0, 0.25, 10000, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := KellySize(tt.edge, tt.price, tt.confidence, tt.fraction, tt.balance)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestKellySize_NeverNegative(t *testing.T) {
	t.Parallel()

	for _, edge := range []float64{-0.9, -0.01, 0, 0.01, 0.9} {
		for _, price := range []float64{0.05, 0.50, 0.95} {
			got := KellySize(edge, price, 1.0, 0.25, 10000)
			assert.GreaterOrEqual(t, got, 0.0, "edge=%v price=%v", edge, price)
		}
	}
}

func TestKellySize_WinProbClamped(t *testing.T) {
	t.Parallel()

	// price + edge above 1 clamps the win probability; the stake stays
	// finite and at most fraction*balance.
	got := KellySize(0.60, 0.50, 1.0, 0.25, 10000)
	assert.LessOrEqual(t, got, 2500.0)
	assert.Greater(t, got, 0.0)
}
