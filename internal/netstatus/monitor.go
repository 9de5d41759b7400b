// Package netstatus tracks whether the till can reach the back-office.
//
// The signal is binary and may be wrong: a terminal can report online while
// a request still fails. Nothing here guarantees delivery; the reconciler's
// failure handling is what keeps operations safe.
package netstatus

import (
	"sync"
	"time"
)

// Status is the connectivity signal.
type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
)

// Transition is emitted on every status change.
type Transition struct {
	From Status
	To   Status
	At   time.Time
}

// subscriberBuffer bounds each subscriber channel; a full channel drops the
// transition instead of blocking Set.
const subscriberBuffer = 8

// Monitor holds the current status and fans out transitions.
//
// Thread-safety: all methods are safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	status Status
	subs   map[int]chan Transition
	nextID int
	hooks  []func()
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor with the given initial status.
func NewMonitor(initial Status) *Monitor {
	return &Monitor{
		status: initial,
		subs:   make(map[int]chan Transition),
		now:    time.Now,
	}
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Online reports whether the current status is Online.
func (m *Monitor) Online() bool {
	return m.Status() == Online
}

// Set changes the status. Returns false if s equals the current status, in
// which case nothing is emitted. On an offline to online change every
// OnOnline hook starts in its own goroutine.
func (m *Monitor) Set(s Status) bool {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return false
	}
	tr := Transition{From: m.status, To: s, At: m.now()}
	m.status = s

	for _, ch := range m.subs {
		select {
		case ch <- tr:
		default:
		}
	}

	var hooks []func()
	if s == Online {
		hooks = append(hooks, m.hooks...)
		m.wg.Add(len(hooks))
	}
	m.mu.Unlock()

	for _, fn := range hooks {
		go func(fn func()) {
			defer m.wg.Done()
			fn()
		}(fn)
	}
	return true
}

// Subscribe returns a channel of transitions and a cancel func that closes it.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Transition, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// OnOnline registers fn to run on every offline to online transition.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Wait blocks until every started hook returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}
