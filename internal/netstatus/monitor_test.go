package netstatus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMonitor_SetEmitsTransitions(t *testing.T) {
	m := NewMonitor(Offline)
	ch, cancel := m.Subscribe()
	defer cancel()

	assert.False(t, m.Set(Offline), "no change, no event")
	assert.True(t, m.Set(Online))
	assert.True(t, m.Online())

	select {
	case tr := <-ch:
		assert.Equal(t, Offline, tr.From)
		assert.Equal(t, Online, tr.To)
	case <-time.After(time.Second):
		t.Fatal("no transition received")
	}
}

func TestMonitor_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewMonitor(Offline)
	_, cancel := m.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer*3; i++ {
		m.Set(Online)
		m.Set(Offline)
	}
	assert.Equal(t, Offline, m.Status())
}

func TestMonitor_CancelClosesChannel(t *testing.T) {
	m := NewMonitor(Online)
	ch, cancel := m.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, m.Set(Offline), "set after cancel must not panic")
}

func TestMonitor_OnOnlineRunsHooksAsync(t *testing.T) {
	m := NewMonitor(Offline)
	var calls atomic.Int32
	release := make(chan struct{})
	m.OnOnline(func() {
		<-release
		calls.Add(1)
	})

	m.Set(Online)
	assert.Equal(t, int32(0), calls.Load(), "Set returned before the hook finished")
	close(release)
	m.Wait()
	assert.Equal(t, int32(1), calls.Load())

	m.Set(Offline)
	m.Wait()
	assert.Equal(t, int32(1), calls.Load(), "going offline does not run hooks")
}

type fakePinger struct {
	mu  sync.Mutex
	err error
	n   int
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestProber_ProbeOnce(t *testing.T) {
	m := NewMonitor(Offline)
	pinger := &fakePinger{}
	p := NewProber(m, pinger, time.Second)

	assert.Equal(t, Online, p.ProbeOnce(context.Background()))
	assert.True(t, m.Online())

	pinger.set(errors.New("connection refused"))
	assert.Equal(t, Offline, p.ProbeOnce(context.Background()))
	assert.False(t, m.Online())
}

func TestProber_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(Offline)
	pinger := &fakePinger{}
	p := NewProber(m, pinger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
