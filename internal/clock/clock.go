// Package clock provides a time abstraction so the poll loop can be driven
// from tests. Use RealClock in production and MockClock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for the time operations the poller needs
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// NewTicker returns a Ticker that fires every d
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock implements Clock using the standard time package
type RealClock struct{}

// NewRealClock creates a new RealClock instance
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker
func (c *RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}

// MockClock is a Clock whose time only moves via Advance
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*mockTicker
}

type mockTicker struct {
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
}

// NewMockClock creates a new MockClock starting at the given time
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker creates a ticker that fires when Advance crosses its period
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTicker{
		period: d,
		next:   c.current.Add(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	return &mockTickerHandle{clock: c, ticker: t}
}

// TickerCount returns the number of active tickers
func (c *MockClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance moves the clock forward by d. Like time.Ticker, a tick that
// cannot be delivered because the previous one was not consumed is dropped.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	for _, t := range c.tickers {
		for !t.next.After(c.current) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

type mockTickerHandle struct {
	clock  *MockClock
	ticker *mockTicker
}

func (h *mockTickerHandle) C() <-chan time.Time {
	return h.ticker.ch
}

func (h *mockTickerHandle) Stop() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()

	if h.ticker.stopped {
		return
	}
	h.ticker.stopped = true

	remaining := h.clock.tickers[:0]
	for _, t := range h.clock.tickers {
		if t != h.ticker {
			remaining = append(remaining, t)
		}
	}
	h.clock.tickers = remaining
}
