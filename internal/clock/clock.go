// Package clock supplies wall-clock time to the POS core as an injected value.
package clock

import (
	"sync"
	"time"
)

// DateLayout formats selling-session dates.
const DateLayout = "2006-01-02"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location (the store's timezone).
type System struct {
	Location *time.Location
}

// Now returns the current time in c.Location, or local time if unset.
func (c System) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Date returns the selling date (YYYY-MM-DD) of t in t's own location.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// Manual is a settable clock for tests and scenario replays.
// Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
