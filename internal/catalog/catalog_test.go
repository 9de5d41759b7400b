package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/testutil"
)

func TestLoadDir(t *testing.T) {
	c, err := LoadDir("testdata/demo")
	require.NoError(t, err)

	assert.Equal(t, []model.Branch{{ID: "bdg", Name: "Bandung"}}, c.Branches)
	require.Len(t, c.Stores, 2)
	assert.Equal(t, model.Store{ID: "store-1", BranchID: "bdg", Name: "Dago"}, c.Stores[0])
	assert.Equal(t, []model.StoreSettings{{StoreID: "store-1"}, {StoreID: "store-2", Holiday: true}}, c.Settings)
	assert.Len(t, c.Categories, 3)

	menu := c.Menu["store-1"]
	require.Len(t, menu, 3)
	teh := menu[model.FindMenuItem(menu, "es-teh")]
	assert.Equal(t, int64(8000), teh.QRISPrice, "QRIS price defaults to the cash price")
	assert.Equal(t, int64(6), menu[model.FindMenuItem(menu, "roti")].Stock)

	stock := c.Stock["store-1"]
	require.Len(t, stock, 2)
	assert.Equal(t, "cup-kopi", stock[0].ID)
	assert.Equal(t, int64(10), stock[0].InitialStock)
	assert.Zero(t, stock[0].CurrentStock)
	assert.Equal(t, []string{"kopi-susu"}, stock[0].MenuItemIDs)
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no CUE files")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("package bad\nstores: \"s\": {name: 1}\n"), 0o644))
	_, err = LoadDir(dir)
	assert.Error(t, err)
}

func TestLoadString_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"negative price", `
stores: s1: name: "A"
menu: s1: m1: {name: "M", cash_price: -1}`},
		{"float price", `
stores: s1: name: "A"
menu: s1: m1: {name: "M", cash_price: 1.5}`},
		{"negative stock", `
stores: s1: name: "A"
stock: s1: c1: {name: "C", initial_stock: -3}`},
		{"unknown field", `
stores: s1: {name: "A", colour: "red"}`},
		{"missing initial stock", `
stores: s1: name: "A"
stock: s1: c1: {name: "C"}`},
		{"id mismatch", `
stores: s1: {id: "s2", name: "A"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestLoadString_References(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown store", `
stores: s1: name: "A"
menu: s9: m1: {name: "M", cash_price: 1}`, "unknown store"},
		{"unknown branch", `
stores: s1: {name: "A", branch_id: "b9"}`, "unknown branch"},
		{"unknown category", `
stores: s1: name: "A"
menu: s1: m1: {name: "M", cash_price: 1, category_id: "nope"}`, "unknown category"},
		{"unknown linked item", `
stores: s1: name: "A"
menu: s1: m1: {name: "M", cash_price: 1}
stock: s1: c1: {name: "C", initial_stock: 1, menu_item_ids: ["m2"]}`, "linked menu item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	c, err := LoadDir("testdata/demo")
	require.NoError(t, err)

	st := testutil.OpenStore(t)
	require.NoError(t, Seed(ctx, st, c))

	var stores []model.Store
	found, err := st.Get(ctx, model.StoresKey, &stores)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, stores, 2)

	var settings model.StoreSettings
	_, err = st.Get(ctx, model.StoreSettingsKey("store-2"), &settings)
	require.NoError(t, err)
	assert.True(t, settings.Holiday)

	var menu []model.MenuItem
	_, err = st.Get(ctx, model.MenuItemsKey("store-1"), &menu)
	require.NoError(t, err)
	assert.Len(t, menu, 3)

	var stock []model.StockItem
	_, err = st.Get(ctx, model.StockItemsKey("store-1"), &stock)
	require.NoError(t, err)
	assert.Len(t, stock, 2)
}
