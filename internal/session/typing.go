package session

import (
	"sync"
	"time"
)

const DefaultTypingIdle = 700 * time.Millisecond

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Debouncer calls onIdle once after idle has elapsed since the last Touch.
// Each Touch replaces the pending timer.
type Debouncer struct {
	mu      sync.Mutex
	idle    time.Duration
	after   afterFunc
	onIdle  func()
	pending timer
	gen     uint64
}

func NewDebouncer(idle time.Duration, onIdle func()) *Debouncer {
	return newDebouncer(idle, onIdle, realAfterFunc)
}

func newDebouncer(idle time.Duration, onIdle func(), after afterFunc) *Debouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &Debouncer{idle: idle, after: after, onIdle: onIdle}
}

func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.after(d.idle, func() { d.fire(gen) })
}

// fire ignores callbacks from timers that were replaced after they had already started.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.onIdle()
}

// Stop cancels a pending idle callback without firing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}
