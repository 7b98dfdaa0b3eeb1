// Package eventloop drives non-blocking connections from a single goroutine.
//
// A Driver exposes the three primitives of an async connection. Run waits for
// the driver's descriptor to become readable with poll(2) and hands control
// back to the driver each time, until the driver expects no more input.
// Platforms without poll(2) wait on the Ready channel instead.
package eventloop

import (
	"context"
	"time"
)

// Driver is a connection that can be driven by a readiness loop.
type Driver interface {
	// Socket is polled for readability; -1 means use Ready.
	Socket() int
	Ready() <-chan struct{}
	// ConsumeInput processes available input and reports whether more is
	// expected.
	ConsumeInput() bool
	// Flush reports whether output is still pending.
	Flush() bool
}

// DefaultTick bounds each wait so that context cancellation is noticed.
const DefaultTick = 100 * time.Millisecond

// Run drives d until it is idle or ctx is done.
func Run(ctx context.Context, d Driver) error {
	return RunTick(ctx, d, DefaultTick)
}

// RunTick is Run with an explicit wait bound.
func RunTick(ctx context.Context, d Driver, tick time.Duration) error {
	for {
		more := d.ConsumeInput()
		pending := d.Flush()
		if !more && !pending {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wait(ctx, d, tick); err != nil {
			return err
		}
	}
}

func waitChan(ctx context.Context, ch <-chan struct{}, tick time.Duration) error {
	timer := time.NewTimer(tick)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
