// Package notify delivers user-visible sync notifications.
//
// Notifications are fire-and-forget: a notifier never blocks the reconciler
// and never returns an error.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// MessageSyncComplete is the message emitted after a full drain.
const MessageSyncComplete = "sync complete"

// Notification is one user-visible message.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Synced  int       `json:"synced,omitempty"`
	Pending int       `json:"pending,omitempty"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Discard drops every notification.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(Notification) {}

// Channel buffers notifications on a channel for a UI loop to read.
// Full buffers drop the newest notification and count it.
type Channel struct {
	ch      chan Notification
	dropped atomic.Int64
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan Notification, size)}
}

// Notify implements Notifier.
func (c *Channel) Notify(n Notification) {
	select {
	case c.ch <- n:
	default:
		c.dropped.Add(1)
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan Notification {
	return c.ch
}

// Dropped returns how many notifications did not fit the buffer.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Log writes notifications to the global zerolog logger.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelFailure:
		ev = log.Error().Err(n.Err)
	case LevelWarning:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev.Str("notification", string(n.Level)).
		Int("synced", n.Synced).
		Int("pending", n.Pending).
		Msg(n.Message)
}

// Recorder keeps every notification in memory.
// Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
