package main

import "sync/atomic"

// initialMin is the identity element for the running minimum.
const initialMin = ^uint32(0)

// LatencyStats is a point-in-time copy of the accumulator's cells.
type LatencyStats struct {
	Samples uint64
	MinUS   uint32
	MaxUS   uint32
	SumUS   uint64
}

// Accumulator keeps running latency statistics as four independently
// atomic cells, so the transport's completion callback can record samples
// without taking a lock. Snapshot is best-effort rather than
// transactionally consistent: a reader may observe a count that includes
// a sample whose sum or min/max update has not landed yet. That
// relaxation is deliberate — the data is diagnostic, and the alternative
// is a lock shared with the completion path.
type Accumulator struct {
	samples atomic.Uint64
	sumUS   atomic.Uint64
	minUS   atomic.Uint32
	maxUS   atomic.Uint32
}

// NewAccumulator returns an accumulator with all cells at their identity
// values.
func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// Record folds one latency sample into the running statistics. Safe to
// call concurrently with Snapshot and with other Record calls.
func (a *Accumulator) Record(us uint32) {
	a.samples.Add(1)
	a.sumUS.Add(uint64(us))
	for {
		cur := a.minUS.Load()
		if us >= cur || a.minUS.CompareAndSwap(cur, us) {
			break
		}
	}
	for {
		cur := a.maxUS.Load()
		if us <= cur || a.maxUS.CompareAndSwap(cur, us) {
			break
		}
	}
}

// Reset returns every cell to its identity value. Called once by the
// startup sequencer before arming; not meant to run concurrently with
// Record.
func (a *Accumulator) Reset() {
	a.samples.Store(0)
	a.sumUS.Store(0)
	a.minUS.Store(initialMin)
	a.maxUS.Store(0)
}

// Snapshot returns a best-effort copy of the current statistics.
func (a *Accumulator) Snapshot() LatencyStats {
	return LatencyStats{
		Samples: a.samples.Load(),
		MinUS:   a.minUS.Load(),
		MaxUS:   a.maxUS.Load(),
		SumUS:   a.sumUS.Load(),
	}
}
