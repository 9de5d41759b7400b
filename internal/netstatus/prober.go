package netstatus

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger checks reachability of the back-office.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and feeds the result into a Monitor.
type Prober struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a prober. Each probe times out after interval/2, capped
// at 5 seconds.
func NewProber(m *Monitor, p Pinger, interval time.Duration) *Prober {
	timeout := interval / 2
	if timeout > 5*time.Second || timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{monitor: m, pinger: p, interval: interval, timeout: timeout}
}

// ProbeOnce pings once, updates the monitor and returns the observed status.
func (p *Prober) ProbeOnce(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status := Online
	if err := p.pinger.Ping(ctx); err != nil {
		status = Offline
		log.Debug().Err(err).Msg("probe failed")
	}
	if p.monitor.Set(status) {
		log.Info().Str("status", string(status)).Msg("network status changed")
	}
	return status
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.ProbeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}
