// Package clock provides the monotonic nanosecond time source used to stamp
// orders and time engine operations.
package clock

import "time"

// Clock returns nanoseconds from an arbitrary fixed origin. Values from one
// Clock are non-decreasing.
type Clock func() uint64

var origin = time.Now()

// Monotonic reads the runtime's monotonic clock.
func Monotonic() uint64 {
	return uint64(time.Since(origin))
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	now  uint64
	step uint64
}

// NewFake returns a clock starting at start that advances by step on every
// read.
func NewFake(start, step uint64) *Fake {
	return &Fake{now: start, step: step}
}

func (f *Fake) Now() uint64 {
	v := f.now
	f.now += f.step
	return v
}

// Advance moves the clock forward by d without a read.
func (f *Fake) Advance(d uint64) { f.now += d }
