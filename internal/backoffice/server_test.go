package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/remote"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/testutil"
)

var (
	secret = []byte("test-secret")
	at     = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
)

type harness struct {
	store  *store.Store
	server *httptest.Server
}

func newHarness(t *testing.T) harness {
	t.Helper()
	st := testutil.OpenStore(t)
	testutil.Seed(t, st)
	srv := httptest.NewServer(New(st, secret).Handler())
	t.Cleanup(srv.Close)
	return harness{store: st, server: srv}
}

func (h harness) client(t *testing.T, user session.Context) *remote.Client {
	t.Helper()
	token, err := session.Sign(user, secret, time.Hour, time.Now())
	require.NoError(t, err)
	return remote.New(h.server.URL, token, 5*time.Second)
}

var manager = session.Context{UserID: "u-mgr", Role: session.RoleManager, StoreID: testutil.StoreID}

func entry(t *testing.T, id string, p ops.Payload) ops.Entry {
	t.Helper()
	e, err := ops.NewEntry(id, p, at)
	require.NoError(t, err)
	return e
}

func start() ops.StartSelling {
	return ops.StartSelling{StoreID: testutil.StoreID, Date: "2026-10-17", StartedBy: "u-mgr", StartedAt: at,
		Items: []ops.StockSnapshot{{StockItemID: "cup-kopi", Quantity: 10}, {StockItemID: "cup-teh", Quantity: 5}}}
}

func sale(id string) ops.CreateTransaction {
	return ops.CreateTransaction{Transaction: model.Transaction{
		ID: id, StoreID: testutil.StoreID, CashierID: "u-csh", PaymentMethod: model.PaymentCash,
		Total: 20000, CreatedAt: at,
		Items: []model.LineItem{{MenuItemID: "kopi-susu", Name: "Kopi Susu", Quantity: 1, UnitPrice: 20000, LineTotal: 20000}},
	}}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	c := remote.New(h.server.URL, "", time.Second)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestSubmit_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	e := entry(t, "op-1", start())
	ack, err := c.Submit(ctx, e.Meta(), e.Payload)
	require.NoError(t, err)
	assert.Equal(t, ops.AckApplied, ack.Status)
	assert.False(t, ack.Duplicate)

	ack, err = c.Submit(ctx, e.Meta(), e.Payload)
	require.NoError(t, err)
	assert.True(t, ack.Duplicate, "resubmitting an id is acknowledged without reapplying")

	var sess model.SellingSession
	found, err := h.store.Get(ctx, model.SellingSessionKey(testutil.StoreID, "2026-10-17"), &sess)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, sess.Active)
	assert.Equal(t, int64(10), sess.Quantities["cup-kopi"])

	var menu []model.MenuItem
	_, err = h.store.Get(ctx, model.MenuItemsKey(testutil.StoreID), &menu)
	require.NoError(t, err)
	assert.Equal(t, int64(10), menu[model.FindMenuItem(menu, "kopi-susu")].Stock)
	assert.Equal(t, int64(6), menu[model.FindMenuItem(menu, "roti")].Stock, "unlinked items keep their count")

	n, err := h.store.AppliedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmit_SecondActiveSessionConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	first := entry(t, "op-1", start())
	_, err := c.Submit(ctx, first.Meta(), first.Payload)
	require.NoError(t, err)

	second := entry(t, "op-2", start())
	_, err = c.Submit(ctx, second.Meta(), second.Payload)
	require.Error(t, err)
	assert.True(t, apperr.IsSync(err))
	assert.True(t, apperr.IsConflict(err))

	_, found, err := h.store.AppliedOperation(ctx, "op-2")
	require.NoError(t, err)
	assert.False(t, found, "a conflicting operation is not recorded as applied")
}

func TestSubmit_ReusedIDConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	a := entry(t, "op-1", sale("txn-1"))
	_, err := c.Submit(ctx, a.Meta(), a.Payload)
	require.NoError(t, err)

	b := entry(t, "op-1", sale("txn-2"))
	_, err = c.Submit(ctx, b.Meta(), b.Payload)
	assert.True(t, apperr.IsConflict(err))
}

func TestSubmit_EndWithoutStartConflicts(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, manager)

	e := entry(t, "op-1", ops.EndSelling{StoreID: testutil.StoreID, Date: "2026-10-17", EndedBy: "u-mgr", EndedAt: at})
	_, err := c.Submit(context.Background(), e.Meta(), e.Payload)
	assert.True(t, apperr.IsConflict(err))
}

func TestSubmit_EndSellingZeroesStock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	for i, p := range []ops.Payload{
		start(),
		ops.EndSelling{StoreID: testutil.StoreID, Date: "2026-10-17", EndedBy: "u-mgr", EndedAt: at.Add(8 * time.Hour)},
	} {
		e := entry(t, []string{"op-1", "op-2"}[i], p)
		_, err := c.Submit(ctx, e.Meta(), e.Payload)
		require.NoError(t, err)
	}

	var stock []model.StockItem
	_, err := h.store.Get(ctx, model.StockItemsKey(testutil.StoreID), &stock)
	require.NoError(t, err)
	for _, s := range stock {
		assert.Zero(t, s.CurrentStock, s.ID)
	}

	var menu []model.MenuItem
	_, err = h.store.Get(ctx, model.MenuItemsKey(testutil.StoreID), &menu)
	require.NoError(t, err)
	assert.Zero(t, menu[model.FindMenuItem(menu, "kopi-susu")].Stock)
	assert.Equal(t, int64(6), menu[model.FindMenuItem(menu, "roti")].Stock, "unlinked item keeps its count")

	var sess model.SellingSession
	_, err = h.store.Get(ctx, model.SellingSessionKey(testutil.StoreID, "2026-10-17"), &sess)
	require.NoError(t, err)
	assert.False(t, sess.Active)
	require.NotNil(t, sess.EndedAt)
	assert.Equal(t, "u-mgr", sess.EndedBy)
}

func TestSubmit_UpdateStockIsAbsolute(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	p := ops.UpdateStock{StoreID: testutil.StoreID, TransactionID: "txn-1",
		MenuItems:  []ops.StockLevel{{ID: "kopi-susu", Delta: -2, Stock: 8}},
		StockItems: []ops.StockLevel{{ID: "cup-kopi", Delta: -2, Stock: 8}}}
	for _, id := range []string{"op-1", "op-2"} {
		e := entry(t, id, p)
		_, err := c.Submit(ctx, e.Meta(), e.Payload)
		require.NoError(t, err)
	}

	var stock []model.StockItem
	_, err := h.store.Get(ctx, model.StockItemsKey(testutil.StoreID), &stock)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stock[model.FindStockItem(stock, "cup-kopi")].CurrentStock)
}

func TestSubmit_EntityUpserts(t *testing.T) {
	ctx := context.Background()
	owner := session.Context{UserID: "u-own", Role: session.RoleOwner}
	h := newHarness(t)
	c := h.client(t, owner)

	payloads := []ops.Payload{
		ops.UpdateCategory{Category: model.Category{ID: "coffee", Name: "Coffee"}},
		ops.UpdateCategory{Category: model.Category{ID: "coffee", Name: "Kopi"}},
		ops.UpdateBranch{Branch: model.Branch{ID: "branch-1", Name: "Bandung"}},
		ops.UpdateStore{Store: model.Store{ID: "store-2", BranchID: "branch-1", Name: "Dago"},
			Settings: model.StoreSettings{StoreID: "store-2", Holiday: true}},
		ops.UpdateUser{User: model.User{ID: "u-2", Name: "Sari", Role: "cashier", StoreID: "store-2"}},
		ops.UpdateMenuItem{StoreID: testutil.StoreID, Item: model.MenuItem{ID: "kopi-susu", Name: "Kopi Susu Gula Aren", CashPrice: 22000, QRISPrice: 23000}},
	}
	for i, p := range payloads {
		e := entry(t, "op-"+string(rune('a'+i)), p)
		_, err := c.Submit(ctx, e.Meta(), e.Payload)
		require.NoError(t, err, "payload %d", i)
	}

	var cats []model.Category
	_, err := h.store.Get(ctx, model.CategoriesKey, &cats)
	require.NoError(t, err)
	assert.Equal(t, []model.Category{{ID: "coffee", Name: "Kopi"}}, cats)

	var settings model.StoreSettings
	found, err := h.store.Get(ctx, model.StoreSettingsKey("store-2"), &settings)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, settings.Holiday)

	var menu []model.MenuItem
	_, err = h.store.Get(ctx, model.MenuItemsKey(testutil.StoreID), &menu)
	require.NoError(t, err)
	assert.Len(t, menu, 3)
	assert.Equal(t, int64(22000), menu[model.FindMenuItem(menu, "kopi-susu")].CashPrice)
}

func TestSubmit_ForbiddenStore(t *testing.T) {
	h := newHarness(t)
	other := session.Context{UserID: "u-x", Role: session.RoleCashier, StoreID: "store-9"}
	c := h.client(t, other)

	e := entry(t, "op-1", sale("txn-1"))
	_, err := c.Submit(context.Background(), e.Meta(), e.Payload)
	require.Error(t, err)
	assert.True(t, apperr.IsSync(err))
	assert.False(t, apperr.IsConflict(err))
}

func TestSubmit_PermissionsFollowKind(t *testing.T) {
	cashier := session.Context{UserID: "u-csh", Role: session.RoleCashier, StoreID: testutil.StoreID}
	tests := []struct {
		name string
		user session.Context
		p    ops.Payload
		ok   bool
	}{
		{"cashier sells", cashier, sale("txn-1"), true},
		{"cashier cannot start selling", cashier, start(), false},
		{"cashier cannot adjust stock", cashier, ops.UpdateStockItem{StoreID: testutil.StoreID, StockItemID: "cup-kopi", Quantity: 1, AdjustedBy: "u-csh"}, false},
		{"cashier cannot edit menu", cashier, ops.UpdateMenuItem{StoreID: testutil.StoreID, Item: model.MenuItem{ID: "roti", Name: "Roti", CashPrice: 1, QRISPrice: 1}}, false},
		{"cashier cannot promote users", cashier, ops.UpdateUser{User: model.User{ID: "u-csh", Name: "Sari", Role: "owner"}}, false},
		{"cashier cannot edit branches", cashier, ops.UpdateBranch{Branch: model.Branch{ID: "branch-1", Name: "Bandung"}}, false},
		{"manager edits menu", manager, ops.UpdateMenuItem{StoreID: testutil.StoreID, Item: model.MenuItem{ID: "roti", Name: "Roti", CashPrice: 1, QRISPrice: 1}}, true},
		{"manager cannot edit categories", manager, ops.UpdateCategory{Category: model.Category{ID: "coffee", Name: "Coffee"}}, false},
		{"manager cannot edit users", manager, ops.UpdateUser{User: model.User{ID: "u-2", Name: "Sari", Role: "cashier", StoreID: testutil.StoreID}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			e := entry(t, "op-1", tt.p)
			_, err := h.client(t, tt.user).Submit(context.Background(), e.Meta(), e.Payload)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsSync(err))
			assert.False(t, apperr.IsConflict(err))

			_, applied, err := h.store.AppliedOperation(context.Background(), "op-1")
			require.NoError(t, err)
			assert.False(t, applied)
		})
	}
}

func TestAuth(t *testing.T) {
	h := newHarness(t)
	e := entry(t, "op-1", sale("txn-1"))
	env, err := ops.EnvelopeOf(e.Meta(), e.Payload)
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"bad signature", "Bearer " + func() string {
			tok, err := session.Sign(manager, []byte("other"), time.Hour, time.Now())
			require.NoError(t, err)
			return tok
		}()},
		{"expired", "Bearer " + func() string {
			tok, err := session.Sign(manager, secret, time.Minute, time.Now().Add(-time.Hour))
			require.NoError(t, err)
			return tok
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/operations", bytes.NewReader(body))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			New(h.store, secret).Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSubmit_BadEnvelope(t *testing.T) {
	h := newHarness(t)
	token, err := session.Sign(manager, secret, time.Hour, time.Now())
	require.NoError(t, err)

	e := entry(t, "op-1", sale("txn-1"))
	env, err := ops.EnvelopeOf(e.Meta(), e.Payload)
	require.NoError(t, err)
	env.Digest = "tampered"
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"id":"op-1","bogus":true}`},
		{"digest mismatch", string(tampered)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/operations", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			New(h.store, secret).Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var we ops.WireError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &we))
			assert.Equal(t, string(apperr.CodeValidation), we.Code)
		})
	}
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.client(t, manager)

	for _, id := range []string{"txn-2", "txn-1"} {
		e := entry(t, "op-"+id, sale(id))
		_, err := c.Submit(ctx, e.Meta(), e.Payload)
		require.NoError(t, err)
	}

	txns, err := c.Transactions(ctx, testutil.StoreID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "txn-1", txns[0].ID)
	assert.Equal(t, int64(20000), txns[1].Total)

	dup := entry(t, "op-dup", sale("txn-1"))
	_, err = c.Submit(ctx, dup.Meta(), dup.Payload)
	assert.True(t, apperr.IsConflict(err), "a transaction id is recorded once")

	_, err = h.client(t, session.Context{UserID: "u-x", Role: session.RoleCashier, StoreID: "store-9"}).
		Transactions(ctx, testutil.StoreID)
	assert.Error(t, err)
}
