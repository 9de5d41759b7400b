package testutil

import (
	"context"
	"testing"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/store"
)

// StoreID is the store used by fixtures.
const StoreID = "store-1"

// Menu returns the fixture menu: two drinks backed by stock items and one
// pastry with its own count.
func Menu() []model.MenuItem {
	return []model.MenuItem{
		{ID: "kopi-susu", Name: "Kopi Susu", CashPrice: 20000, QRISPrice: 21000, CategoryID: "coffee"},
		{ID: "es-teh", Name: "Es Teh", CashPrice: 8000, QRISPrice: 8000, CategoryID: "tea"},
		{ID: "roti", Name: "Roti Bakar", CashPrice: 12000, QRISPrice: 12500, CategoryID: "food", Stock: 6},
	}
}

// Stock returns the fixture stock items linked to Menu.
func Stock() []model.StockItem {
	return []model.StockItem{
		{ID: "cup-kopi", Name: "Kopi cup", Unit: "cup", MinimumStock: 3, InitialStock: 10, MenuItemIDs: []string{"kopi-susu"}},
		{ID: "cup-teh", Name: "Teh cup", Unit: "cup", MinimumStock: 2, InitialStock: 5, MenuItemIDs: []string{"es-teh"}},
	}
}

// Seed writes the fixture menu and stock for StoreID.
func Seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, model.MenuItemsKey(StoreID), Menu()); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	if err := s.Set(ctx, model.StockItemsKey(StoreID), Stock()); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}
