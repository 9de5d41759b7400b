package ops

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/model"
)

var at = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func sampleTransaction() CreateTransaction {
	return CreateTransaction{Transaction: model.Transaction{
		ID:            "txn-0001",
		StoreID:       "store-1",
		CashierID:     "u-1",
		PaymentMethod: model.PaymentCash,
		Items: []model.LineItem{
			{MenuItemID: "kopi-susu", Name: "Kopi Susu", Quantity: 3, UnitPrice: 20000, LineTotal: 60000},
		},
		Total:     60000,
		CreatedAt: at,
	}}
}

func TestKinds_AllValid(t *testing.T) {
	assert.Len(t, Kinds, 10)
	for _, k := range Kinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("delete_everything").Valid())
}

func TestNewEntry_ValidatesPayload(t *testing.T) {
	_, err := NewEntry("op-1", UpdateStockItem{StoreID: "store-1", StockItemID: "cup", Quantity: -1, AdjustedBy: "u-1"}, at)
	require.Error(t, err)

	_, err = NewEntry("op-1", StartSelling{StoreID: "store-1", Date: "17/10/2026", StartedBy: "u-1"}, at)
	require.Error(t, err, "date must be YYYY-MM-DD")

	_, err = NewEntry("op-1", CreateTransaction{}, at)
	require.Error(t, err)

	e, err := NewEntry("op-1", sampleTransaction(), at)
	require.NoError(t, err)
	assert.Equal(t, KindCreateTransaction, e.Kind)
	assert.Len(t, e.Digest, 64)
}

func TestDigest_IndependentOfID(t *testing.T) {
	a, err := NewEntry("op-1", sampleTransaction(), at)
	require.NoError(t, err)
	b, err := NewEntry("op-2", sampleTransaction(), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)

	changed := sampleTransaction()
	changed.Transaction.Total = 1
	c, err := NewEntry("op-3", changed, at)
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, c.Digest)
}

func TestEnvelope_RoundTripVerifiesDigest(t *testing.T) {
	e, err := NewEntry("op-1", UpdateStock{
		StoreID:       "store-1",
		TransactionID: "txn-0001",
		MenuItems:     []StockLevel{{ID: "kopi-susu", Delta: -3, Stock: 7}},
		StockItems:    []StockLevel{{ID: "cup", Delta: -3, Stock: 7}},
	}, at)
	require.NoError(t, err)

	env, err := EnvelopeOf(e.Meta(), e.Payload)
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	got, err := decoded.Entry()
	require.NoError(t, err)
	assert.Equal(t, e.Payload, got.Payload)
	assert.Equal(t, e.Digest, got.Digest)

	decoded.Digest = "tampered"
	_, err = decoded.Entry()
	assert.ErrorContains(t, err, "digest mismatch")
}

func TestDecodePayload_Rejects(t *testing.T) {
	_, err := DecodePayload("nope", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown operation kind")

	_, err = DecodePayload(KindEndSelling, []byte(`{"store_id":"s","extra":1}`))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestStoreOf(t *testing.T) {
	assert.Equal(t, "store-1", StoreOf(sampleTransaction()))
	assert.Equal(t, "store-9", StoreOf(UpdateStore{Store: model.Store{ID: "store-9"}}))
	assert.Equal(t, "", StoreOf(UpdateCategory{Category: model.Category{ID: "c"}}))
}
