// Package breaker isolates failures of an external dependency. One
// Breaker wraps one dependency; while it is open, calls fail fast
// without touching the dependency at all.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketgrid/polytrader/pkg/clock"
)

type Status string

const (
	StatusClosed   Status = "CLOSED"
	StatusOpen     Status = "OPEN"
	StatusHalfOpen Status = "HALF_OPEN"
)

var (
	metricState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polytrader_breaker_state",
		Help: "0=closed, 1=half_open, 2=open",
	}, []string{"dependency"})
	metricTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polytrader_breaker_trips_total",
		Help: "Times the breaker transitioned to open",
	}, []string{"dependency"})
	metricRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "polytrader_breaker_rejected_total",
		Help: "Calls rejected without invoking the dependency",
	}, []string{"dependency"})
)

func init() {
	prometheus.MustRegister(metricState, metricTrips, metricRejected)
}

// OpenError is returned while the breaker refuses calls. Callers skip
// the dependency and retry on a later cycle.
type OpenError struct {
	Dependency string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry in %s", e.Dependency, e.RetryAfter.Round(time.Second))
}

// State is a point-in-time snapshot of the breaker.
type State struct {
	Status              Status
	ConsecutiveFailures int
	OpenedAt            time.Time
	CooldownUntil       time.Time
}

type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	clk       clock.Clock

	mu            sync.Mutex
	status        Status
	failures      int
	openedAt      time.Time
	cooldownUntil time.Time
	trialInFlight bool
}

func New(name string, threshold int, cooldown time.Duration, clk clock.Clock) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	metricState.WithLabelValues(name).Set(0)
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		clk:       clk,
		status:    StatusClosed,
	}
}

func (b *Breaker) Name() string { return b.name }

// Do invokes fn under the breaker's protection. While open and before
// the cooldown elapses it returns *OpenError immediately. After the
// cooldown exactly one trial call runs half-open; its outcome alone
// decides the next transition.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		metricRejected.WithLabelValues(b.name).Inc()
		return err
	}

	err := fn(ctx)
	b.settle(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	switch b.status {
	case StatusClosed:
		return nil
	case StatusOpen:
		if now.Before(b.cooldownUntil) {
			return &OpenError{Dependency: b.name, RetryAfter: b.cooldownUntil.Sub(now)}
		}
		b.status = StatusHalfOpen
		b.trialInFlight = true
		metricState.WithLabelValues(b.name).Set(1)
		return nil
	case StatusHalfOpen:
		if b.trialInFlight {
			return &OpenError{Dependency: b.name, RetryAfter: 0}
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

func (b *Breaker) settle(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	switch b.status {
	case StatusClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.openLocked(now)
		}
	case StatusHalfOpen:
		b.trialInFlight = false
		if success {
			b.status = StatusClosed
			b.failures = 0
			metricState.WithLabelValues(b.name).Set(0)
			return
		}
		b.failures = b.threshold
		b.openLocked(now)
	}
}

func (b *Breaker) openLocked(now time.Time) {
	b.status = StatusOpen
	b.openedAt = now
	b.cooldownUntil = now.Add(b.cooldown)
	metricState.WithLabelValues(b.name).Set(2)
	metricTrips.WithLabelValues(b.name).Inc()
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Status:              b.status,
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
		CooldownUntil:       b.cooldownUntil,
	}
}

// Reset force-closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = StatusClosed
	b.failures = 0
	b.trialInFlight = false
	metricState.WithLabelValues(b.name).Set(0)
}
