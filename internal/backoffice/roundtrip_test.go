package backoffice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/ids"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/netstatus"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/testutil"
)

// A till that sells offline converges with the back-office after one drain.
func TestOfflineSaleReconciles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cashier := session.Context{UserID: "u-csh", Role: session.RoleCashier, StoreID: testutil.StoreID}
	client := h.client(t, manager)

	till := testutil.OpenStore(t)
	testutil.Seed(t, till)
	clk := clock.NewManual(at)
	monitor := netstatus.NewMonitor(netstatus.Offline)
	repl := reconcile.NewReplicator(monitor, client,
		reconcile.WithIDGenerator(ids.NewSequence("op")),
		reconcile.WithReplicatorClock(clk.Now))

	_, err := selling.NewManager(till, repl, clk, manager).StartSelling(ctx, testutil.StoreID)
	require.NoError(t, err)

	engine := pos.NewEngine(till, selling.NewManager(till, repl, clk, cashier), repl, cashier,
		pos.WithIDGenerator(ids.NewSequence("txn")), pos.WithClock(clk))
	require.NoError(t, engine.AddToCart(ctx, "kopi-susu", 2))
	require.NoError(t, engine.SetPaymentMethod(model.PaymentQRIS))
	txn, err := engine.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42000), txn.Total)

	pending, err := till.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending, "start, transaction and stock update are queued")

	notes := &notify.Recorder{}
	monitor.Set(netstatus.Online)
	res, err := reconcile.NewReconciler(till, client, reconcile.WithNotifier(notes)).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Remaining)

	last, ok := notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.MessageSyncComplete, last.Message)

	txns, err := client.Transactions(ctx, testutil.StoreID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)

	var stock []model.StockItem
	_, err = h.store.Get(ctx, model.StockItemsKey(testutil.StoreID), &stock)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stock[model.FindStockItem(stock, "cup-kopi")].CurrentStock)

	res, err = reconcile.NewReconciler(till, client).Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
	monitor.Wait()
}
