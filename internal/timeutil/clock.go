// Package timeutil lets time-driven code (reconnect backoff, sample
// timestamps, the display tick) run against a controllable clock in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the part of the time package the telemetry path depends on.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer fires once. Stop reports whether it was still armed.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker fires every interval until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

func (RealClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTimer struct{ *time.Timer }

func (t realTimer) C() <-chan time.Time { return t.Timer.C }

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// MockClock only moves when Advance is called. Timers and tickers created
// from it fire during Advance.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

// NewMockClock returns a MockClock reading t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	waiters := append([]*waiter(nil), c.waiters...)
	c.mu.Unlock()

	for _, w := range waiters {
		w.fire(now)
	}
}

// PendingTimers counts one-shot timers that are armed and not yet fired.
// Tests use it to wait until a goroutine is sleeping on the clock.
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	waiters := append([]*waiter(nil), c.waiters...)
	c.mu.Unlock()

	n := 0
	for _, w := range waiters {
		if w.period == 0 && w.armed() {
			n++
		}
	}
	return n
}

func (c *MockClock) NewTimer(d time.Duration) Timer {
	return mockTimer{c.add(d, 0)}
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	return mockTicker{c.add(d, d)}
}

func (c *MockClock) add(d, period time.Duration) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &waiter{ch: make(chan time.Time, 1), due: c.now.Add(d), period: period}
	c.waiters = append(c.waiters, w)
	return w
}

// waiter backs both mock timers (period 0) and mock tickers. Like the real
// ones, a tick is dropped when the previous one has not been received.
type waiter struct {
	mu     sync.Mutex
	ch     chan time.Time
	due    time.Time
	period time.Duration
	done   bool
}

func (w *waiter) armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.done
}

func (w *waiter) stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	wasArmed := !w.done
	w.done = true
	return wasArmed
}

func (w *waiter) fire(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.done && !now.Before(w.due) {
		select {
		case w.ch <- now:
		default:
		}
		if w.period <= 0 {
			w.done = true
			return
		}
		w.due = w.due.Add(w.period)
	}
}

type mockTimer struct{ w *waiter }

func (t mockTimer) C() <-chan time.Time { return t.w.ch }
func (t mockTimer) Stop() bool          { return t.w.stop() }

type mockTicker struct{ w *waiter }

func (t mockTicker) C() <-chan time.Time { return t.w.ch }
func (t mockTicker) Stop()               { t.w.stop() }
