package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/lease"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var at = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func enqueueN(t *testing.T, s *store.Store, n int) []ops.Entry {
	t.Helper()
	var out []ops.Entry
	for i := 1; i <= n; i++ {
		e, err := ops.NewEntry(fmt.Sprintf("op-%d", i), ops.UpdateStockItem{
			StoreID:     "store-1",
			StockItemID: "cup",
			Quantity:    int64(i),
			AdjustedBy:  "u-1",
		}, at)
		require.NoError(t, err)
		e, err = s.Enqueue(context.Background(), e)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func pendingIDs(t *testing.T, s *store.Store) []string {
	t.Helper()
	entries, err := s.PendingOperations(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestReconcile_DrainsInOrder(t *testing.T) {
	s := testutil.OpenStore(t)
	remote := testutil.NewFakeRemote()
	var rec notify.Recorder
	enqueueN(t, s, 3)

	r := NewReconciler(s, remote, WithNotifier(&rec))
	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Attempted: 3, Succeeded: 3}, res)
	assert.Empty(t, pendingIDs(t, s))

	calls := remote.Calls()
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Equal(t, fmt.Sprintf("op-%d", i+1), c.ID)
	}

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.Equal(t, notify.MessageSyncComplete, last.Message)
	assert.Equal(t, 3, last.Synced)
}

func TestReconcile_EmptyQueueIsQuiet(t *testing.T) {
	s := testutil.OpenStore(t)
	var rec notify.Recorder

	res, err := NewReconciler(s, testutil.NewFakeRemote(), WithNotifier(&rec)).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, rec.All())
}

func TestReconcile_FailureKeepsSuffix(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("fail at %d", k), func(t *testing.T) {
			s := testutil.OpenStore(t)
			remote := testutil.NewFakeRemote()
			var rec notify.Recorder
			enqueueN(t, s, 4)

			// Let k-1 calls succeed, then fail.
			r := NewReconciler(s, &failAt{FakeRemote: remote, n: k}, WithNotifier(&rec))
			res, err := r.Reconcile(context.Background())

			require.Error(t, err)
			assert.True(t, apperr.IsSync(err))
			assert.Equal(t, k, res.Attempted)
			assert.Equal(t, k-1, res.Succeeded)
			assert.Equal(t, 4-k+1, res.Remaining)
			require.NotNil(t, res.Failed)
			assert.Equal(t, fmt.Sprintf("op-%d", k), res.Failed.ID)

			var want []string
			for i := k; i <= 4; i++ {
				want = append(want, fmt.Sprintf("op-%d", i))
			}
			assert.Equal(t, want, pendingIDs(t, s))

			last, ok := rec.Last()
			require.True(t, ok)
			assert.Equal(t, notify.LevelFailure, last.Level)
		})
	}
}

func TestReconcile_ConflictIsNeverDropped(t *testing.T) {
	s := testutil.OpenStore(t)
	remote := testutil.NewFakeRemote()
	remote.ConflictOn(ops.KindUpdateStockItem)
	enqueueN(t, s, 2)

	res, err := NewReconciler(s, remote).Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSyncFailed, apperr.CodeOf(err))
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, []string{"op-1", "op-2"}, pendingIDs(t, s))
}

func TestReconcile_RetryAfterFailureResumes(t *testing.T) {
	s := testutil.OpenStore(t)
	remote := testutil.NewFakeRemote()
	enqueueN(t, s, 3)

	remote.FailAlways(nil)
	r := NewReconciler(s, remote)
	_, err := r.Reconcile(context.Background())
	require.Error(t, err)

	remote.Recover()
	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Empty(t, pendingIDs(t, s))
}

func TestReconcile_CancelledContextStops(t *testing.T) {
	s := testutil.OpenStore(t)
	enqueueN(t, s, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReconciler(s, testutil.NewFakeRemote()).Reconcile(ctx)
	require.Error(t, err)
	assert.Len(t, pendingIDs(t, s), 2)
}

func TestReconcile_ReentrantCallIsSkipped(t *testing.T) {
	s := testutil.OpenStore(t)
	enqueueN(t, s, 1)

	blocking := &blockingRemote{FakeRemote: testutil.NewFakeRemote(), entered: make(chan struct{}), release: make(chan struct{})}
	r := NewReconciler(s, blocking)

	done := make(chan error, 1)
	go func() {
		_, err := r.Reconcile(context.Background())
		done <- err
	}()
	<-blocking.entered
	assert.True(t, r.Running())

	res, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	close(blocking.release)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
}

func TestReconcile_LeaseHeldElsewhereSkips(t *testing.T) {
	s := testutil.OpenStore(t)
	enqueueN(t, s, 1)

	other := lease.NewSQLite(s.DB(), "drain", time.Minute)
	ok, err := other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	mine := lease.NewSQLite(s.DB(), "drain", time.Minute)
	res, err := NewReconciler(s, testutil.NewFakeRemote(), WithLease(mine)).Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, pendingIDs(t, s), 1)

	require.NoError(t, other.Release(context.Background()))
	res, err = NewReconciler(s, testutil.NewFakeRemote(), WithLease(mine)).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

func TestApply_DispatchesEveryKind(t *testing.T) {
	payloads := samplePayloads()
	require.Len(t, payloads, len(ops.Kinds), "one sample per kind")

	remote := testutil.NewFakeRemote()
	for i, p := range payloads {
		e, err := ops.NewEntry(fmt.Sprintf("op-%d", i), p, at)
		require.NoError(t, err, p.Kind())
		require.NoError(t, Apply(context.Background(), remote, e))
	}
	assert.Equal(t, ops.Kinds, remote.Kinds())
}

// failAt fails the n-th call (1-based) and passes the rest through.
type failAt struct {
	*testutil.FakeRemote
	n     int
	calls int
}

func (f *failAt) UpdateStockItem(ctx context.Context, meta ops.Meta, p ops.UpdateStockItem) error {
	f.calls++
	if f.calls == f.n {
		return errors.New("connection reset")
	}
	return f.FakeRemote.UpdateStockItem(ctx, meta, p)
}

type blockingRemote struct {
	*testutil.FakeRemote
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) UpdateStockItem(ctx context.Context, meta ops.Meta, p ops.UpdateStockItem) error {
	close(b.entered)
	<-b.release
	return b.FakeRemote.UpdateStockItem(ctx, meta, p)
}
