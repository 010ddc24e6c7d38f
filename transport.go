package main

import "errors"

// Transport errors.
var (
	// ErrTxBusy means a frame is already on the wire. Submissions are
	// fire-and-forget, so callers drop the frame and carry on.
	ErrTxBusy = errors.New("transport: transmission in progress")
	// ErrNotEnabled means Enable was not called before Bind.
	ErrNotEnabled = errors.New("transport: not enabled")
	// ErrNotBound means no device has been bound yet.
	ErrNotBound = errors.New("transport: no device bound")
)

// Transport is the asynchronous serial device the generator writes to.
//
// SubmitAsync initiates a transmission and returns without waiting for it;
// the handler registered with SetCompletionHandler runs once per accepted
// frame, after the frame has fully left the (real or simulated) wire, on
// the transport's own goroutine. The frame slice is copied before
// SubmitAsync returns — the transport never retains the caller's buffer.
type Transport interface {
	Enable() error
	Bind(device string) error
	SetCompletionHandler(fn func())
	SubmitAsync(frame []byte) error
	// DTRReady reports whether an attached terminal has raised DTR.
	DTRReady() (bool, error)
	Close() error
}
