package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/testutil"
)

var jakarta = time.FixedZone("WIB", 7*3600)

func putTxn(t *testing.T, st *store.Store, id string, method model.PaymentMethod, at time.Time, lines ...model.LineItem) {
	t.Helper()
	txn := model.Transaction{ID: id, StoreID: testutil.StoreID, CashierID: "u-csh", PaymentMethod: method, Items: lines, CreatedAt: at}
	for _, l := range lines {
		txn.Total += l.LineTotal
	}
	require.NoError(t, st.Set(context.Background(), model.TransactionKey(testutil.StoreID, id), txn))
}

func kopi(qty, price int64) model.LineItem {
	return model.LineItem{MenuItemID: "kopi-susu", Name: "Kopi Susu", Quantity: qty, UnitPrice: price, LineTotal: qty * price}
}

func teh(qty int64) model.LineItem {
	return model.LineItem{MenuItemID: "es-teh", Name: "Es Teh", Quantity: qty, UnitPrice: 8000, LineTotal: qty * 8000}
}

func TestDaily(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)
	testutil.Seed(t, st)

	// 09:00 and 20:30 WIB on the 17th; the last one is 00:30 WIB on the 18th.
	putTxn(t, st, "txn-1", model.PaymentCash, time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC), kopi(2, 20000), teh(1))
	putTxn(t, st, "txn-2", model.PaymentQRIS, time.Date(2026, 10, 17, 13, 30, 0, 0, time.UTC), kopi(1, 21000))
	putTxn(t, st, "txn-3", model.PaymentQRIS, time.Date(2026, 10, 17, 17, 30, 0, 0, time.UTC), teh(5))

	s, err := Daily(ctx, st, testutil.StoreID, "2026-10-17", jakarta)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Transactions)
	assert.Equal(t, int64(69000), s.Total)
	assert.Equal(t, int64(48000), s.CashTotal)
	assert.Equal(t, int64(21000), s.QRISTotal)
	assert.Equal(t, "34500", s.AverageTicket.String())
	assert.Equal(t, "30.43", s.QRISShare.StringFixed(2))
	assert.Equal(t, []ItemSales{
		{MenuItemID: "kopi-susu", Name: "Kopi Susu", Quantity: 3, Revenue: 61000},
		{MenuItemID: "es-teh", Name: "Es Teh", Quantity: 1, Revenue: 8000},
	}, s.Items)
	assert.False(t, s.SessionActive)
	assert.Empty(t, s.LowStock)
}

func TestDaily_LowStockWhileActive(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)
	stock := testutil.Stock()
	stock[0].CurrentStock = 2
	stock[1].CurrentStock = 4
	require.NoError(t, st.Set(ctx, model.StockItemsKey(testutil.StoreID), stock))
	require.NoError(t, st.Set(ctx, model.SellingSessionKey(testutil.StoreID, "2026-10-17"),
		model.SellingSession{StoreID: testutil.StoreID, Date: "2026-10-17", Active: true}))

	s, err := Daily(ctx, st, testutil.StoreID, "2026-10-17", time.UTC)
	require.NoError(t, err)
	assert.True(t, s.SessionActive)
	require.Len(t, s.LowStock, 1)
	assert.Equal(t, "cup-kopi", s.LowStock[0].ID)
	assert.Zero(t, s.Transactions)
	assert.True(t, s.AverageTicket.IsZero())
}

func TestDaily_InvalidDate(t *testing.T) {
	_, err := Daily(context.Background(), testutil.OpenStore(t), testutil.StoreID, "17/10/2026", time.UTC)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenStore(t)
	putTxn(t, st, "txn-1", model.PaymentCash, time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC), kopi(3, 20000))

	s, err := Daily(ctx, st, testutil.StoreID, "2026-10-17", time.UTC)
	require.NoError(t, err)

	out := Format(s)
	assert.Contains(t, out, "Daily report store-1 2026-10-17")
	assert.Contains(t, out, "Rp60.000")
	assert.Contains(t, out, "Kopi Susu")
	assert.Contains(t, out, "Selling session closed")
}
