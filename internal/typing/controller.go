// Package typing debounces typing-presence emission for one composer.
package typing

import (
	"sync"
	"time"
)

// StopDelay is how long after the last keystroke stop_typing is emitted.
const StopDelay = 1500 * time.Millisecond

// Timer mirrors the subset of *time.Timer the controller needs.
type Timer interface {
	Reset(d time.Duration) bool
	Stop() bool
}

// Clock schedules the inactivity fallback. Tests substitute a manual
// implementation to fire the timeout deterministically.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock returns the wall-clock scheduler.
func RealClock() Clock { return realClock{} }

// Emitter sends start_typing (true) or stop_typing (false) for the session.
// Emission failures are fire-and-forget; the controller never retries.
type Emitter func(typing bool)

// Controller is the Idle/Typing state machine. start_typing is emitted at
// most once per burst of keystrokes; stop_typing is emitted on send or when
// the inactivity timer fires, so peers are never left on a stale indicator.
type Controller struct {
	emit  Emitter
	clock Clock
	delay time.Duration

	mu     sync.Mutex
	typing bool
	timer  Timer
	closed bool
}

func NewController(emit Emitter, clock Clock) *Controller {
	return &Controller{emit: emit, clock: clock, delay: StopDelay}
}

// Keystroke registers input activity. The first keystroke after idle emits
// start_typing and arms the timer; further keystrokes only reset it.
func (c *Controller) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.typing {
		c.timer.Reset(c.delay)
		return
	}
	c.typing = true
	c.timer = c.clock.AfterFunc(c.delay, c.timeout)
	c.emit(true)
}

// MessageSent transitions to idle immediately, emitting stop_typing.
func (c *Controller) MessageSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(true)
}

// Close clears the timer without emitting; a surface unmount must not send
// stop_typing for a session it no longer renders.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(false)
	c.closed = true
}

func (c *Controller) timeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The fallback emits stop_typing itself rather than only clearing
	// local state, so peers do not keep a stale indicator.
	c.stopLocked(true)
}

func (c *Controller) stopLocked(emit bool) {
	if !c.typing {
		return
	}
	c.typing = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if emit {
		c.emit(false)
	}
}
