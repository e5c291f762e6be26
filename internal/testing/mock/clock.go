package mock

import (
	"sync"
	"time"
)

// MockClock is a clock whose time only moves when a test moves it. It
// satisfies the Clock interfaces of the updaterequest and polling
// packages.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMockClock creates a clock set to t, or to the current time when t is
// zero.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Now()
	}
	return &MockClock{current: t}
}

// Now returns the current time according to this mock clock.
func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Set sets the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// Since returns the time elapsed between t and the clock's current time.
func (m *MockClock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}
