// Package clock abstracts time for components that stamp records or
// schedule cooldowns, so tests can drive them deterministically.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// Wall is the real system clock.
type Wall struct{}

func (Wall) Now() time.Time { return time.Now().UTC() }

// Fake is a manually advanced clock for tests.
type Fake struct {
	Current time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{Current: start}
}

func (f *Fake) Now() time.Time { return f.Current }

func (f *Fake) Advance(d time.Duration) { f.Current = f.Current.Add(d) }

func (f *Fake) Set(t time.Time) { f.Current = t }
