//go:build !windows
// +build !windows

package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// maxFrameLen caps a single submission; it is also the pacing burst.
const maxFrameLen = 512

// ttyTransport writes frames to a serial device, or to a self-allocated
// PTY pair when no device path is given. A single TX slot models a UART
// with one in-flight buffer: submitting while the slot is occupied fails
// with ErrTxBusy. When a line rate is configured, each frame occupies the
// simulated wire for len/bytesPerSec before its completion fires, so
// measured lateness includes realistic transmission time.
type ttyTransport struct {
	bytesPerSec int64

	enabled   bool
	dev       *os.File // write side: the tty, or the PTY master
	slave     *os.File // PTY mode only; held open so the pair survives
	slaveName string

	limiter  *rate.Limiter
	onDone   func()   // registered before arming, never changed after
	submitCh chan int // frame lengths; capacity 1, guarded by busy
	slot     [maxFrameLen]byte
	busy     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// newTTYTransport creates an unbound transport. bytesPerSec of 0 disables
// wire pacing (frames complete as fast as the device accepts them).
func newTTYTransport(bytesPerSec int64) *ttyTransport {
	return &ttyTransport{bytesPerSec: bytesPerSec}
}

// Enable powers up the transport. It must be called before Bind; the
// split mirrors device stacks where enumeration precedes port binding.
func (t *ttyTransport) Enable() error {
	t.enabled = true
	return nil
}

// Bind opens the device and starts the TX goroutine. An empty device path
// allocates a PTY pair; SlaveName then reports where readers can attach.
func (t *ttyTransport) Bind(device string) error {
	if !t.enabled {
		return ErrNotEnabled
	}
	if t.dev != nil {
		return fmt.Errorf("transport: already bound to %s", t.dev.Name())
	}

	if device == "" {
		master, slave, err := pty.Open()
		if err != nil {
			return fmt.Errorf("transport: open pty: %w", err)
		}
		// Raw slave termios: without this the line discipline rewrites
		// CR/NL and fixed-length frames arrive mangled at the reader.
		if err := rawFrames(slave); err != nil {
			master.Close()
			slave.Close()
			return fmt.Errorf("transport: raw pty slave: %w", err)
		}
		t.dev = master
		t.slave = slave
		t.slaveName = slave.Name()
	} else {
		f, err := os.OpenFile(device, os.O_RDWR|unix.O_NOCTTY, 0)
		if err != nil {
			return fmt.Errorf("transport: bind %s: %w", device, err)
		}
		if err := rawFrames(f); err != nil {
			f.Close()
			return fmt.Errorf("transport: raw %s: %w", device, err)
		}
		t.dev = f
	}

	if t.bytesPerSec > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(t.bytesPerSec), maxFrameLen)
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.submitCh = make(chan int, 1)
	t.wg.Add(1)
	go t.txLoop()
	return nil
}

// SlaveName returns the PTY slave path in PTY mode, else "".
func (t *ttyTransport) SlaveName() string {
	return t.slaveName
}

// SetCompletionHandler registers the function invoked after each accepted
// frame leaves the wire. Must be called before the first SubmitAsync.
func (t *ttyTransport) SetCompletionHandler(fn func()) {
	t.onDone = fn
}

// SubmitAsync copies the frame into the TX slot and returns immediately.
// It never blocks past the copy: if the slot is occupied the frame is
// rejected with ErrTxBusy.
func (t *ttyTransport) SubmitAsync(frame []byte) error {
	if t.dev == nil {
		return ErrNotBound
	}
	if len(frame) == 0 || len(frame) > maxFrameLen {
		return fmt.Errorf("transport: frame length %d out of range", len(frame))
	}
	if !t.busy.CompareAndSwap(false, true) {
		return ErrTxBusy
	}
	copy(t.slot[:], frame)
	t.submitCh <- len(frame)
	return nil
}

// txLoop serializes frames onto the wire one at a time. The limiter
// gates transmission starts so a misconfigured period cannot outrun the
// line rate; the serialization delay afterwards is the frame's own time
// on the wire, so completion fires when the last bit would leave a real
// UART.
func (t *ttyTransport) txLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		case n := <-t.submitCh:
			if t.limiter != nil {
				if err := t.limiter.WaitN(t.ctx, n); err != nil {
					t.busy.Store(false)
					return
				}
			}
			_, err := t.dev.Write(t.slot[:n])
			if err == nil && t.bytesPerSec > 0 {
				wire := time.Duration(n) * time.Second / time.Duration(t.bytesPerSec)
				select {
				case <-t.ctx.Done():
					t.busy.Store(false)
					return
				case <-time.After(wire):
				}
			}
			t.busy.Store(false)
			// Completion fires only for frames that made it out; a write
			// error loses the frame and its sample.
			if err == nil && t.onDone != nil {
				t.onDone()
			}
		}
	}
}

// DTRReady reports whether the attached terminal has raised DTR. In PTY
// mode there are no modem lines and the pair is ready as soon as it
// exists.
func (t *ttyTransport) DTRReady() (bool, error) {
	if t.dev == nil {
		return false, ErrNotBound
	}
	if t.slave != nil {
		return true, nil
	}
	bits, err := unix.IoctlGetInt(int(t.dev.Fd()), unix.TIOCMGET)
	if err != nil {
		return false, fmt.Errorf("transport: read modem lines: %w", err)
	}
	return bits&unix.TIOCM_DTR != 0, nil
}

// Close stops the TX goroutine and releases the device. Safe to call more
// than once.
func (t *ttyTransport) Close() error {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		// Close the write side before waiting on the TX goroutine: a
		// txLoop parked inside dev.Write on a full, unread buffer only
		// wakes when the descriptor dies, not on context cancellation.
		if t.dev != nil {
			t.dev.Close()
		}
		if t.slave != nil {
			t.slave.Close()
		}
		if t.cancel != nil {
			t.wg.Wait()
		}
	})
	return nil
}

// rawFrames clears the termios processing that would rewrite frame bytes:
// CR/NL translation in both directions plus canonical mode and echo.
func rawFrames(f *os.File) error {
	termios, err := unix.IoctlGetTermios(int(f.Fd()), ioctlGetTermios)
	if err != nil {
		return err
	}
	termios.Iflag &^= unix.ICRNL | unix.INLCR | unix.IGNCR
	termios.Oflag &^= unix.ONLCR | unix.OCRNL
	termios.Lflag &^= unix.ICANON | unix.ECHO
	return unix.IoctlSetTermios(int(f.Fd()), ioctlSetTermios, termios)
}
