package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter periodically prints a one-line latency summary. It only ever
// reads the accumulator; the report is built from a best-effort snapshot.
type Reporter struct {
	stats    *Accumulator
	out      io.Writer
	interval time.Duration
	eol      string

	armed bool
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewReporter writes a summary line to out every interval. crlf selects
// CR+LF line endings for raw-terminal readers.
func NewReporter(stats *Accumulator, out io.Writer, interval time.Duration, crlf bool) *Reporter {
	eol := "\n"
	if crlf {
		eol = "\r\n"
	}
	return &Reporter{stats: stats, out: out, interval: interval, eol: eol}
}

// Arm starts the periodic report; the first line appears one full
// interval after arming.
func (r *Reporter) Arm(ctx context.Context) {
	if r.armed {
		return
	}
	r.stop = make(chan struct{})
	r.armed = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.emit()
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Disarm stops the periodic report and waits for the goroutine to exit.
func (r *Reporter) Disarm() {
	if !r.armed {
		return
	}
	r.armed = false
	close(r.stop)
	r.wg.Wait()
}

func (r *Reporter) emit() {
	fmt.Fprintf(r.out, "%s%s", formatReport(r.stats.Snapshot()), r.eol)
}

// formatReport renders the observability line. The zero-sample case is
// distinct so a fresh run never prints a misleading all-zero row (and
// never divides by zero).
func formatReport(s LatencyStats) string {
	if s.Samples == 0 {
		return "I/O latency: collecting..."
	}
	avg := s.SumUS / s.Samples
	return fmt.Sprintf("%d samples, min=%dus, avg=%dus, max=%dus",
		s.Samples, s.MinUS, avg, s.MaxUS)
}
