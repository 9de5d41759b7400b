package model

import "fmt"

// Local durable store keys. Values are JSON.
const (
	StoresKey     = "stores"
	CategoriesKey = "categories"
	BranchesKey   = "branches"
	UsersKey      = "users"
)

// MenuItemsKey holds []MenuItem for a store.
func MenuItemsKey(storeID string) string {
	return "menuItems:" + storeID
}

// StockItemsKey holds []StockItem for a store.
func StockItemsKey(storeID string) string {
	return "stockItems:" + storeID
}

// SellingSessionKey holds the SellingSession of a store on a date (YYYY-MM-DD).
func SellingSessionKey(storeID, date string) string {
	return fmt.Sprintf("sellingSession:%s:%s", storeID, date)
}

// StoreSettingsKey holds StoreSettings for a store.
func StoreSettingsKey(storeID string) string {
	return "storeSettings:" + storeID
}

// TransactionKey holds one Transaction.
func TransactionKey(storeID, txID string) string {
	return TransactionsPrefix(storeID) + txID
}

// TransactionsPrefix is the key prefix of all transactions of a store.
func TransactionsPrefix(storeID string) string {
	return fmt.Sprintf("transactions:%s:", storeID)
}
