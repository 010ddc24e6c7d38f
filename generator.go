package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fillByte pads every frame out to its fixed length.
const fillByte = ' '

// GeneratorConfig holds the release parameters fixed at construction.
type GeneratorConfig struct {
	MessageLen   int           // fixed frame length, bytes
	Period       time.Duration // steady-state release period
	StartupDelay time.Duration // delay before the first release
}

// Generator is the release scheduler together with its transmit-completion
// handler. It owns the frame buffer and the sequence counter; the planned
// release cell is shared with the completion callback and accessed
// atomically. Zero is the "no plan yet" sentinel.
//
// Planned releases form a strict arithmetic progression: each release is
// the previous plan plus the period converted to cycles once, at arming.
// Scheduling jitter in when fire actually runs therefore never compounds
// into the baseline that lateness is measured against.
type Generator struct {
	clock CycleClock
	tr    Transport
	stats *Accumulator
	cfg   GeneratorConfig

	planned   atomic.Uint32 // next planned release in cycles; 0 = no plan yet
	dropped   atomic.Uint64 // submissions the transport rejected
	periodCyc uint32        // fixed at arming
	seq       uint32        // touched only by the firing goroutine; wraps
	frame     []byte        // built by the firing goroutine, copied by the transport

	armed bool
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewGenerator wires a generator to its collaborators. The completion
// handler must still be registered with the transport by the caller:
//
//	tr.SetCompletionHandler(gen.OnTxComplete)
func NewGenerator(clock CycleClock, tr Transport, stats *Accumulator, cfg GeneratorConfig) *Generator {
	return &Generator{
		clock: clock,
		tr:    tr,
		stats: stats,
		cfg:   cfg,
		frame: make([]byte, 0, cfg.MessageLen),
	}
}

// Arm transitions the generator from unarmed to armed: the planned-release
// sentinel is cleared, the period is converted to cycles once (rounding up
// so consecutive releases never creep early), and the firing goroutine
// starts after the configured startup delay.
func (g *Generator) Arm(ctx context.Context) error {
	if g.armed {
		return errors.New("generator: already armed")
	}
	if g.cfg.Period <= 0 {
		return fmt.Errorf("generator: invalid period %v", g.cfg.Period)
	}
	if g.cfg.MessageLen <= 0 {
		return fmt.Errorf("generator: invalid message length %d", g.cfg.MessageLen)
	}
	g.periodCyc = g.clock.CyclesCeil(g.cfg.Period)
	g.planned.Store(0)
	g.stop = make(chan struct{})
	g.armed = true

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		first := time.NewTimer(g.cfg.StartupDelay)
		defer first.Stop()
		select {
		case <-first.C:
		case <-g.stop:
			return
		case <-ctx.Done():
			return
		}
		g.fire()

		ticker := time.NewTicker(g.cfg.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.fire()
			case <-g.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Disarm stops the firing goroutine and waits for it to exit. Frames
// already on the wire still complete and their samples are still recorded.
func (g *Generator) Disarm() {
	if !g.armed {
		return
	}
	g.armed = false
	close(g.stop)
	g.wg.Wait()
}

// Dropped returns how many submissions the transport rejected.
func (g *Generator) Dropped() uint64 {
	return g.dropped.Load()
}

// fire runs once per period: plan the release, build the frame, submit.
func (g *Generator) fire() {
	target := g.planned.Load()
	if target == 0 {
		target = g.clock.Now()
	} else {
		target += g.periodCyc
	}
	g.planned.Store(target)

	g.buildFrame(g.seq, g.clock.Now())
	g.seq++

	if err := g.tr.SubmitAsync(g.frame); err != nil {
		// Dropped, not retried: the next period fires regardless.
		g.dropped.Add(1)
	}
}

// buildFrame formats the header and pads to the fixed length so every
// transmission occupies the wire for the same time regardless of how many
// digits the counters currently take.
func (g *Generator) buildFrame(seq, cyc uint32) {
	g.frame = g.frame[:0]
	g.frame = fmt.Appendf(g.frame, "IO seq=%d cyc=%d\r\n", seq, cyc)
	if len(g.frame) > g.cfg.MessageLen {
		g.frame = g.frame[:g.cfg.MessageLen]
	}
	for len(g.frame) < g.cfg.MessageLen {
		g.frame = append(g.frame, fillByte)
	}
}

// OnTxComplete is registered with the transport and runs on its completion
// goroutine, possibly concurrently with fire. It must stay short and
// non-blocking: one clock read, one atomic load, one stats record.
func (g *Generator) OnTxComplete() {
	now := g.clock.Now()
	target := g.planned.Load()
	if target == 0 {
		// Completion before any plan was recorded; nothing to measure.
		return
	}
	// Unsigned wraparound is intentional: a counter wrap between the plan
	// and the completion still yields the right delta as long as the
	// lateness itself fits in 32 bits.
	g.stats.Record(g.clock.ToMicros(now - target))
}
