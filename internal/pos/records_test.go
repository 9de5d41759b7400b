package pos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/ids"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/netstatus"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/testutil"
)

var owner = session.Context{UserID: "u-own", Role: session.RoleOwner}

func TestRecords_SaveAndReplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, netstatus.Offline)
	repl := reconcile.NewReplicator(f.monitor, f.remote, reconcile.WithIDGenerator(ids.NewSequence("rec")))
	r := NewRecords(f.store, repl, owner)

	require.NoError(t, r.SaveCategory(ctx, model.Category{ID: "food", Name: "Makanan"}))
	require.NoError(t, r.SaveBranch(ctx, model.Branch{ID: "branch-1", Name: "Bandung"}))
	require.NoError(t, r.SaveUser(ctx, model.User{ID: "u-2", Name: "Sari", Role: "cashier", StoreID: testutil.StoreID}))
	require.NoError(t, r.SaveMenuItem(ctx, testutil.StoreID,
		model.MenuItem{ID: "roti", Name: "Roti Coklat", CashPrice: 13000, QRISPrice: 13500, CategoryID: "food", Stock: 4}))

	var menu []model.MenuItem
	_, err := f.store.Get(ctx, model.MenuItemsKey(testutil.StoreID), &menu)
	require.NoError(t, err)
	assert.Len(t, menu, 3)
	roti := menu[model.FindMenuItem(menu, "roti")]
	assert.Equal(t, "Roti Coklat", roti.Name)
	assert.Equal(t, int64(4), roti.Stock)

	var users []model.User
	_, err = f.store.Get(ctx, model.UsersKey, &users)
	require.NoError(t, err)
	assert.Contains(t, users, model.User{ID: "u-2", Name: "Sari", Role: "cashier", StoreID: testutil.StoreID})

	kinds := make([]ops.Kind, 0, 4)
	for _, e := range f.pending(t) {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []ops.Kind{ops.KindUpdateCategory, ops.KindUpdateBranch, ops.KindUpdateUser, ops.KindUpdateMenuItem}, kinds)

	f.monitor.Set(netstatus.Online)
	res, err := reconcile.NewReconciler(f.store, f.remote).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Succeeded)
}

func TestRecords_Permissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, netstatus.Offline)
	repl := reconcile.NewReplicator(f.monitor, nil)

	mgr := NewRecords(f.store, repl, manager)
	require.NoError(t, mgr.SaveMenuItem(ctx, testutil.StoreID,
		model.MenuItem{ID: "pisang", Name: "Pisang Goreng", CashPrice: 8000, QRISPrice: 8500, Stock: 3}))
	assert.True(t, apperr.IsForbidden(mgr.SaveMenuItem(ctx, "store-9", model.MenuItem{ID: "x", Name: "X", CashPrice: 1, QRISPrice: 1})))
	assert.True(t, apperr.IsForbidden(mgr.SaveCategory(ctx, model.Category{ID: "food", Name: "Food"})))
	assert.True(t, apperr.IsForbidden(mgr.SaveUser(ctx, model.User{ID: "u-mgr", Name: "Boss", Role: "owner"})))

	csh := NewRecords(f.store, repl, cashier)
	assert.True(t, apperr.IsForbidden(csh.SaveMenuItem(ctx, testutil.StoreID, model.MenuItem{ID: "x", Name: "X", CashPrice: 1, QRISPrice: 1})))
	assert.True(t, apperr.IsForbidden(csh.SaveBranch(ctx, model.Branch{ID: "b", Name: "B"})))

	assert.Len(t, f.pending(t), 1)
}
