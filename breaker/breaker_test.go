package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketgrid/polytrader/pkg/clock"
)

var errBoom = errors.New("boom")

func newTestBreaker(t *testing.T) (*Breaker, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	return New(t.Name(), 3, time.Minute, clk), clk
}

func fail(ctx context.Context) error { return errBoom }
func ok(ctx context.Context) error   { return nil }

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(t)
	ctx := context.Background()

	assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, StatusClosed, b.State().Status)

	// Third consecutive failure trips it.
	assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, StatusOpen, b.State().Status)

	// While open, calls fail fast without invoking the dependency.
	called := false
	err := b.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	var open *OpenError
	require.ErrorAs(t, err, &open)
	assert.False(t, called)
	assert.Equal(t, t.Name(), open.Dependency)
	assert.Greater(t, open.RetryAfter, time.Duration(0))
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(t)
	ctx := context.Background()

	assert.Error(t, b.Do(ctx, fail))
	assert.Error(t, b.Do(ctx, fail))
	assert.NoError(t, b.Do(ctx, ok))

	// The counter restarted; two more failures do not trip it.
	assert.Error(t, b.Do(ctx, fail))
	assert.Error(t, b.Do(ctx, fail))
	assert.Equal(t, StatusClosed, b.State().Status)
}

func TestBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	t.Parallel()

	b, clk := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Do(ctx, fail))
	}
	require.Equal(t, StatusOpen, b.State().Status)

	// After the cooldown, exactly one trial call goes through.
	clk.Advance(time.Minute)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StatusClosed, b.State().Status)
	assert.Equal(t, 0, b.State().ConsecutiveFailures)
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	t.Parallel()

	b, clk := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Do(ctx, fail))
	}
	clk.Advance(time.Minute)

	assert.ErrorIs(t, b.Do(ctx, fail), errBoom)
	assert.Equal(t, StatusOpen, b.State().Status)

	// The fresh cooldown starts from the trial failure.
	clk.Advance(30 * time.Second)
	var open *OpenError
	assert.ErrorAs(t, b.Do(ctx, ok), &open)

	clk.Advance(30 * time.Second)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StatusClosed, b.State().Status)
}

func TestBreaker_SingleHalfOpenProbe(t *testing.T) {
	t.Parallel()

	b, clk := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Do(ctx, fail))
	}
	clk.Advance(time.Minute)

	// Hold the trial call in flight, then issue a second call: it must
	// be rejected rather than probing the dependency concurrently.
	release := make(chan struct{})
	probeStarted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(ctx context.Context) error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	var open *OpenError
	assert.ErrorAs(t, b.Do(ctx, ok), &open)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StatusClosed, b.State().Status)
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Do(ctx, fail))
	}
	require.Equal(t, StatusOpen, b.State().Status)

	b.Reset()
	assert.Equal(t, StatusClosed, b.State().Status)
	assert.NoError(t, b.Do(ctx, ok))
}

func TestBreaker_StateSnapshot(t *testing.T) {
	t.Parallel()

	b, clk := newTestBreaker(t)
	ctx := context.Background()

	opened := clk.Now()
	for i := 0; i < 3; i++ {
		assert.Error(t, b.Do(ctx, fail))
	}

	st := b.State()
	assert.Equal(t, StatusOpen, st.Status)
	assert.Equal(t, 3, st.ConsecutiveFailures)
	assert.Equal(t, opened, st.OpenedAt)
	assert.Equal(t, opened.Add(time.Minute), st.CooldownUntil)
}
