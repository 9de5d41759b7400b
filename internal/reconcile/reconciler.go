// Package reconcile replicates locally committed mutations to the
// back-office.
//
// The Reconciler drains the pending queue in FIFO order, one entry at a
// time, removing an entry only after its remote mutation succeeded. The
// first failure stops the drain and leaves that entry and everything after
// it queued. The Replicator queues the operations of every local write and,
// when nothing earlier is waiting, publishes them straight after commit.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/lease"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/store"
)

// Queue is the reconciler's view of the pending operation queue.
type Queue interface {
	PendingOperations(ctx context.Context) ([]ops.Entry, error)
	RemoveOperation(ctx context.Context, seq int64) error
	ClearOperations(ctx context.Context, throughSeq int64) error
}

// Result summarizes one Reconcile call.
type Result struct {
	// Skipped is true when another drain was in flight or the lease is held
	// elsewhere. Nothing was attempted.
	Skipped bool

	Attempted int
	Succeeded int

	// Remaining is the number of entries still queued after a failure.
	Remaining int

	// Failed is the entry that stopped the drain.
	Failed *ops.Entry
}

// Reconciler drains the pending queue against a Remote.
//
// Thread-safety: Reconcile may be called from any goroutine. Overlapping
// calls return immediately with Skipped set.
type Reconciler struct {
	queue    Queue
	remote   Remote
	notifier notify.Notifier
	lease    lease.Lease
	now      func() time.Time
	running  atomic.Bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Reconciler) { r.notifier = n }
}

// WithLease makes the reconciler drain only while holding l.
func WithLease(l lease.Lease) Option {
	return func(r *Reconciler) { r.lease = l }
}

// WithClock sets the timestamp source for notifications.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler.
func NewReconciler(q Queue, remote Remote, opts ...Option) *Reconciler {
	r := &Reconciler{
		queue:    q,
		remote:   remote,
		notifier: notify.Discard{},
		lease:    lease.None{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running reports whether a drain is in flight.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Reconcile drains the queue.
//
// Entries enqueued while the drain runs are picked up before it returns.
// On full success a "sync complete" notification is emitted (only if
// something was synced). On failure a failure notification is emitted and
// the error is returned; local state is never rolled back.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		log.Debug().Msg("reconcile already in flight")
		return Result{Skipped: true}, nil
	}
	defer r.running.Store(false)

	held, err := r.lease.Acquire(ctx)
	if err != nil {
		return Result{}, apperr.Sync("acquire drain lease", err)
	}
	if !held {
		log.Debug().Msg("drain lease held by another terminal")
		return Result{Skipped: true}, nil
	}
	defer func() {
		if err := r.lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("release drain lease")
		}
	}()

	var (
		res     Result
		lastSeq int64
	)
	for {
		entries, err := r.queue.PendingOperations(ctx)
		if err != nil {
			err = apperr.Persistence("read pending operations", err)
			r.fail(res, err)
			return res, err
		}
		if len(entries) == 0 {
			break
		}

		for i, e := range entries {
			res.Attempted++
			logger := log.With().Int64("seq", e.Seq).Str("op_id", e.ID).Str("op_kind", string(e.Kind)).Logger()

			if err := r.apply(ctx, e); err != nil {
				failed := e
				res.Failed = &failed
				res.Remaining = len(entries) - i
				logger.Warn().Err(err).Int("remaining", res.Remaining).Msg("sync stopped")
				r.fail(res, err)
				return res, err
			}

			// A direct publish may have removed it first.
			if err := r.queue.RemoveOperation(ctx, e.Seq); err != nil && !errors.Is(err, store.ErrNotQueued) {
				// The back-office applied it; the resubmission is acknowledged
				// as a duplicate next time.
				failed := e
				res.Failed = &failed
				res.Remaining = len(entries) - i
				err = apperr.Persistence(fmt.Sprintf("remove synced operation %d", e.Seq), err)
				r.fail(res, err)
				return res, err
			}
			res.Succeeded++
			lastSeq = e.Seq
			logger.Debug().Msg("operation synced")
		}
	}

	if res.Succeeded == 0 {
		return res, nil
	}
	if err := r.queue.ClearOperations(ctx, lastSeq); err != nil {
		log.Warn().Err(err).Msg("clear drained operations")
	}

	log.Info().Int("synced", res.Succeeded).Msg(notify.MessageSyncComplete)
	r.notifier.Notify(notify.Notification{
		Level:   notify.LevelSuccess,
		Message: notify.MessageSyncComplete,
		Synced:  res.Succeeded,
		At:      r.now(),
	})
	return res, nil
}

// apply sends one entry, converting every failure into a sync error.
func (r *Reconciler) apply(ctx context.Context, e ops.Entry) error {
	if err := ctx.Err(); err != nil {
		return apperr.Sync("sync interrupted", err)
	}
	if err := Apply(ctx, r.remote, e); err != nil {
		if apperr.Is(err, apperr.CodeSyncFailed) {
			return err
		}
		return apperr.Sync(fmt.Sprintf("%s %s failed", e.Kind, e.ID), err)
	}
	return nil
}

func (r *Reconciler) fail(res Result, err error) {
	r.notifier.Notify(notify.Notification{
		Level:   notify.LevelFailure,
		Message: "sync failed",
		Synced:  res.Succeeded,
		Pending: res.Remaining,
		At:      r.now(),
		Err:     err,
	})
}
