// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"sync"
)

// CallState is the lifecycle state of a Call.
type CallState int

const (
	CallPending CallState = iota
	CallSettled
	CallCanceled
)

func (s CallState) String() string {
	switch s {
	case CallPending:
		return "pending"
	case CallSettled:
		return "settled"
	case CallCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Call is an in-flight API call. It settles exactly once: resolved,
// rejected with an *Error, or cancelled.
type Call struct {
	SN         uint64
	ID         string
	Path       string
	URL        string
	Descriptor Descriptor
	Request    interface{}
	// Reply receives the decoded response. Its contents are unspecified
	// if the call is cancelled.
	Reply interface{}

	mu    sync.Mutex
	state CallState
	err   error
	done  chan struct{}

	abort    context.CancelFunc
	stop     func() bool
	onCancel func()
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Done is closed once the call has settled or been cancelled, after any
// lifecycle hook for the settlement has returned.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call finishes and returns its error: nil on
// success, an *Error on rejection, an error matching ErrCanceled after
// cancellation.
func (c *Call) Wait() error {
	<-c.done
	return c.Err()
}

// Err returns the call's error, or nil while pending or on success.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel aborts a pending call. The transport is asked to stop and no
// later settlement or hook is observed. It is a no-op once the call has
// settled.
func (c *Call) Cancel() {
	c.cancel(context.Canceled)
}

func (c *Call) cancel(cause error) {
	c.mu.Lock()
	if c.state != CallPending {
		c.mu.Unlock()
		return
	}
	c.state = CallCanceled
	c.err = canceledError(cause)
	c.mu.Unlock()

	c.release()
	if c.onCancel != nil {
		c.onCancel()
	}
	close(c.done)
}

// settle moves a pending call to settled. It reports false if the call
// was already cancelled, in which case the caller must drop the result.
func (c *Call) settle(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CallPending {
		return false
	}
	c.state = CallSettled
	c.err = err
	return true
}

// finish publishes a settled call to waiters.
func (c *Call) finish() {
	c.release()
	close(c.done)
}

// watch ties the call to ctx: cancelling ctx cancels the call.
func (c *Call) watch(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { c.cancel(ctx.Err()) })
	c.mu.Lock()
	c.stop = stop
	c.mu.Unlock()
}

func (c *Call) release() {
	c.mu.Lock()
	stop, abort := c.stop, c.abort
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
	if abort != nil {
		abort()
	}
}
