// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"math"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patchline-project/patchline/wire"
)

// Loop is the connection's event loop. One goroutine calls Run; that
// goroutine becomes the loop goroutine and is the sole executor of
// listener callbacks, timer callbacks and Invoke functions. The
// protocol requires this single-threaded discipline: proxy calls and
// listener management are only valid from the loop goroutine (or
// before Run starts).
type Loop struct {
	// inbox receives decoded frames from the connection's reader
	// goroutine. Closed by the reader on connection teardown.
	inbox chan wire.Frame

	// handler dispatches one inbound frame. Set by Conn before the
	// reader starts.
	handler func(wire.Frame)

	// readErr is set by the reader before closing inbox. nil for an
	// orderly close.
	readErr atomic.Pointer[error]

	invoke     chan func()
	timerFired chan *Timer

	quitOnce sync.Once
	quitCh   chan struct{}

	// done is closed when Run returns. Invoke and Subscription.Close
	// use it to avoid blocking on a loop that will never dispatch
	// again.
	done chan struct{}

	started atomic.Bool

	// loopGoroutine is the id of the goroutine running Run, used to
	// detect reentrant calls (e.g. Subscription.Close from inside a
	// callback) that must not wait on the loop.
	loopGoroutine atomic.Uint64
}

func newLoop() *Loop {
	return &Loop{
		inbox:      make(chan wire.Frame, 64),
		invoke:     make(chan func(), 16),
		timerFired: make(chan *Timer, 16),
		quitCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until Quit is called or the connection's
// reader stops. It returns the reader's error, or nil after Quit or an
// orderly daemon close. Run must be called exactly once.
func (l *Loop) Run() error {
	if !l.started.CompareAndSwap(false, true) {
		panic("client: Loop.Run called twice")
	}
	l.loopGoroutine.Store(currentGoroutineID())
	defer close(l.done)

	for {
		select {
		case <-l.quitCh:
			return nil
		case fn := <-l.invoke:
			fn()
		case timer := <-l.timerFired:
			timer.fire()
		case frame, ok := <-l.inbox:
			if !ok {
				if errPointer := l.readErr.Load(); errPointer != nil {
					return *errPointer
				}
				return nil
			}
			l.handler(frame)
		}
	}
}

// Quit requests loop exit. Safe from any goroutine, including from
// inside loop callbacks. Idempotent. Quit does not close the
// connection; use Conn.Close once Run has returned.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quitCh) })
}

// Done returns a channel closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Invoke executes fn on the loop goroutine and returns once it has
// run. Called from the loop goroutine itself, fn runs inline. If the
// loop has already exited (or exits before dispatching fn), fn runs
// inline on the caller, at which point no callback can be concurrent
// with it.
func (l *Loop) Invoke(fn func()) {
	if l.onLoopGoroutine() {
		fn()
		return
	}

	var executed atomic.Bool
	ran := make(chan struct{})
	wrapped := func() {
		if executed.CompareAndSwap(false, true) {
			fn()
		}
		close(ran)
	}

	select {
	case l.invoke <- wrapped:
		select {
		case <-ran:
		case <-l.done:
			// Enqueued but the loop exited without dispatching.
			if executed.CompareAndSwap(false, true) {
				fn()
			}
		}
	case <-l.done:
		fn()
	}
}

// onLoopGoroutine reports whether the caller runs on the loop
// goroutine.
func (l *Loop) onLoopGoroutine() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && id == currentGoroutineID()
}

// currentGoroutineID extracts the current goroutine's id from the
// runtime stack header ("goroutine 12 [running]:"). The runtime
// deliberately hides goroutine ids from normal APIs; this is the
// conventional escape hatch, used only to detect reentrant loop calls,
// never for goroutine-local storage.
func currentGoroutineID() uint64 {
	var buffer [32]byte
	n := runtime.Stack(buffer[:], false)
	fields := bytes.Fields(buffer[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Timer is a handle to a loop timer. Its callback runs on the loop
// goroutine.
type Timer struct {
	loop     *Loop
	fn       func()
	interval time.Duration
	stopped  atomic.Bool
	timer    *time.Timer
}

// AddTimer schedules fn on the loop goroutine after initial, then
// every interval. A zero interval makes the timer one-shot. AddTimer
// may be called before Run; the first callback fires only once the
// loop is running.
func (l *Loop) AddTimer(initial, interval time.Duration, fn func()) *Timer {
	t := &Timer{loop: l, fn: fn, interval: interval}
	// Create disarmed, then arm: t.timer must be assigned before post
	// can run, since fire reads it to re-arm.
	t.timer = time.AfterFunc(time.Duration(math.MaxInt64), t.post)
	t.timer.Reset(initial)
	return t
}

// post hands the expired timer to the loop. Runs on the runtime timer
// goroutine, never executes the callback itself.
func (t *Timer) post() {
	if t.stopped.Load() {
		return
	}
	select {
	case t.loop.timerFired <- t:
	case <-t.loop.done:
	case <-t.loop.quitCh:
	}
}

// fire runs the callback and re-arms a periodic timer. Loop goroutine
// only.
func (t *Timer) fire() {
	if t.stopped.Load() {
		return
	}
	t.fn()
	if t.interval > 0 && !t.stopped.Load() {
		t.timer.Reset(t.interval)
	}
}

// Stop cancels the timer. A callback already handed to the loop may
// still run if Stop is called from off the loop goroutine; from the
// loop goroutine (the usual case) Stop is immediate and final.
func (t *Timer) Stop() {
	t.stopped.Store(true)
	t.timer.Stop()
}
