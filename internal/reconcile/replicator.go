package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/ids"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/store"
)

// StatusSource reports connectivity.
type StatusSource interface {
	Online() bool
}

// Stager is the queue as seen from inside a local store transaction.
type Stager interface {
	Enqueue(ctx context.Context, e ops.Entry) (ops.Entry, error)
	PendingCount(ctx context.Context) (int, error)
}

// Remover deletes a queued entry outside a transaction.
type Remover interface {
	RemoveOperation(ctx context.Context, seq int64) error
}

// Staged is the replication half of a local write, returned by Stage and
// consumed by Publish after the local transaction committed.
type Staged struct {
	entries []ops.Entry
	direct  bool
}

// Queued reports whether the entries wait for the next drain rather than
// being published right after commit.
func (s Staged) Queued() bool {
	return !s.direct
}

// Entries returns the staged entries with their queue sequence numbers.
func (s Staged) Entries() []ops.Entry {
	return s.entries
}

// Replicator implements the local-first two-phase write.
//
// Phase 1 is the caller's local transaction, which always commits first.
// Stage runs inside it and enqueues every operation, so a committed write
// is never without its queue entries. When the terminal is online and no
// earlier operations are queued, Publish sends them right after commit and
// removes each entry once the back-office confirmed it. Anything it does
// not get through stays queued for the Reconciler. Phase 2 never unwinds
// phase 1.
type Replicator struct {
	status   StatusSource
	remote   Remote
	notifier notify.Notifier
	ids      ids.Generator
	now      func() time.Time
}

// ReplicatorOption configures a Replicator.
type ReplicatorOption func(*Replicator)

// WithReplicatorNotifier sets the notification sink for direct-publish failures.
func WithReplicatorNotifier(n notify.Notifier) ReplicatorOption {
	return func(r *Replicator) { r.notifier = n }
}

// WithIDGenerator sets the operation id source.
func WithIDGenerator(g ids.Generator) ReplicatorOption {
	return func(r *Replicator) { r.ids = g }
}

// WithReplicatorClock sets the enqueue timestamp source.
func WithReplicatorClock(now func() time.Time) ReplicatorOption {
	return func(r *Replicator) { r.now = now }
}

// NewReplicator creates a replicator. A nil remote means every operation is
// queued.
func NewReplicator(status StatusSource, remote Remote, opts ...ReplicatorOption) *Replicator {
	r := &Replicator{
		status:   status,
		remote:   remote,
		notifier: notify.Discard{},
		ids:      ids.UUIDv7{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stage builds entries for payloads and enqueues them through tx. Must be
// called inside the local transaction that performs the write.
func (r *Replicator) Stage(ctx context.Context, tx Stager, payloads ...ops.Payload) (Staged, error) {
	direct := r.remote != nil && r.status.Online()
	if direct {
		n, err := tx.PendingCount(ctx)
		if err != nil {
			return Staged{}, err
		}
		direct = n == 0
	}

	now := r.now()
	entries := make([]ops.Entry, 0, len(payloads))
	for _, p := range payloads {
		e, err := ops.NewEntry(r.ids.NewID(), p, now)
		if err != nil {
			return Staged{}, err
		}
		queued, err := tx.Enqueue(ctx, e)
		if err != nil {
			return Staged{}, err
		}
		entries = append(entries, queued)
	}
	return Staged{entries: entries, direct: direct}, nil
}

// Publish sends directly publishable entries in order, removing each from
// the queue once applied. The first failure leaves that entry and the rest
// queued and emits a failure notification. The returned error is always
// nil: the local write committed and its operations are safe in the queue.
func (r *Replicator) Publish(ctx context.Context, q Remover, s Staged) error {
	if !s.direct {
		return nil
	}

	for i, e := range s.entries {
		logger := log.With().Int64("seq", e.Seq).Str("op_id", e.ID).Str("op_kind", string(e.Kind)).Logger()
		if err := Apply(ctx, r.remote, e); err != nil {
			rest := len(s.entries) - i
			logger.Warn().Err(err).Int("queued", rest).Msg("publish failed, left queued")
			r.notifier.Notify(notify.Notification{
				Level:   notify.LevelFailure,
				Message: "sync failed",
				Pending: rest,
				At:      r.now(),
				Err:     err,
			})
			return nil
		}

		// The local write already committed; remove even if ctx was cancelled.
		err := q.RemoveOperation(context.WithoutCancel(ctx), e.Seq)
		if err != nil && !errors.Is(err, store.ErrNotQueued) {
			// Applied remotely; the next drain resubmits it as a duplicate.
			logger.Warn().Err(err).Msg("remove published operation")
			continue
		}
		logger.Debug().Msg("operation published")
	}
	return nil
}
