package model

// RecomputeAvailability sets the stock of every menu item that has at least
// one linked stock item to the minimum current stock among those items.
// Menu items with no linked stock item keep their own count.
func RecomputeAvailability(menu []MenuItem, stock []StockItem) {
	for i := range menu {
		linked := false
		var lowest int64
		for _, s := range stock {
			if !s.Links(menu[i].ID) {
				continue
			}
			if !linked || s.CurrentStock < lowest {
				lowest = s.CurrentStock
			}
			linked = true
		}
		if linked {
			menu[i].Stock = lowest
		}
	}
}

// ZeroStock returns copies of menu and stock with every count set to zero.
// Used for reads while a store's selling session is closed.
func ZeroStock(menu []MenuItem, stock []StockItem) ([]MenuItem, []StockItem) {
	m := make([]MenuItem, len(menu))
	for i, item := range menu {
		item.Stock = 0
		m[i] = item
	}
	s := make([]StockItem, len(stock))
	for i, item := range stock {
		item.CurrentStock = 0
		s[i] = item
	}
	return m, s
}

// FindMenuItem returns the index of the menu item with the given id, or -1.
func FindMenuItem(menu []MenuItem, id string) int {
	for i := range menu {
		if menu[i].ID == id {
			return i
		}
	}
	return -1
}

// FindStockItem returns the index of the stock item with the given id, or -1.
func FindStockItem(stock []StockItem, id string) int {
	for i := range stock {
		if stock[i].ID == id {
			return i
		}
	}
	return -1
}
