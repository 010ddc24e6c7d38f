package main

import "time"

const (
	// Default cycle frequency: 1 MHz, so one cycle equals one microsecond.
	defaultCycleHz = 1_000_000
	// maxCycleHz bounds configurable frequencies: above 10 GHz the
	// sub-second products in Now and cyclesCeil no longer fit in uint64.
	maxCycleHz = 10_000_000_000
)

// CycleClock reads a monotonic 32-bit cycle counter and converts cycle
// deltas to wall time. Implementations must be safe to call from any
// goroutine, including the transport's completion callback.
type CycleClock interface {
	// Now returns the current cycle count. The counter wraps at 32 bits;
	// deltas across a wrap stay correct as long as they fit in 32 bits.
	Now() uint32
	// ToMicros converts a cycle delta to microseconds, rounding down.
	ToMicros(deltaCycles uint32) uint32
	// CyclesCeil converts a duration to cycles, rounding up so that
	// repeated addition of the result never under-shoots the true period.
	CyclesCeil(d time.Duration) uint32
}

// wallClock derives cycles from the monotonic wall clock at a fixed
// frequency.
type wallClock struct {
	epoch time.Time
	hz    uint64
}

func newWallClock(hz uint64) *wallClock {
	if hz == 0 {
		hz = defaultCycleHz
	}
	return &wallClock{epoch: time.Now(), hz: hz}
}

func (c *wallClock) Now() uint32 {
	elapsed := time.Since(c.epoch)
	// Split whole seconds from the remainder to avoid overflowing the
	// intermediate product on long runs.
	sec := uint64(elapsed / time.Second)
	frac := uint64(elapsed % time.Second)
	return uint32(sec*c.hz + frac*c.hz/uint64(time.Second))
}

func (c *wallClock) ToMicros(deltaCycles uint32) uint32 {
	return uint32(uint64(deltaCycles) * uint64(time.Second/time.Microsecond) / c.hz)
}

func (c *wallClock) CyclesCeil(d time.Duration) uint32 {
	return cyclesCeil(d, c.hz)
}

func cyclesCeil(d time.Duration, hz uint64) uint32 {
	if d <= 0 {
		return 0
	}
	// Same second/remainder split as Now: the whole-second cycles are
	// exact, so only the fractional part needs the rounded-up division.
	sec := uint64(d / time.Second)
	frac := uint64(d % time.Second)
	return uint32(sec*hz + (frac*hz+uint64(time.Second)-1)/uint64(time.Second))
}
