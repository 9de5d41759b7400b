// Package model holds the entity snapshots shared by the till and the
// back-office: menu and stock items, selling sessions, transactions and the
// organisational entities carried by update operations.
//
// Money is int64 in the smallest currency unit (rupiah). Floats never appear
// in entities because entities are hashed through canonical JSON.
package model

import (
	"fmt"
	"slices"
	"time"
)

// PaymentMethod selects which price column applies to a sale.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQRIS PaymentMethod = "qris"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentQRIS
}

// ParsePaymentMethod converts user input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q (want cash or qris)", s)
	}
	return m, nil
}

// MenuItem is a sellable product.
type MenuItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CashPrice   int64  `json:"cash_price"`
	QRISPrice   int64  `json:"qris_price"`
	CategoryID  string `json:"category_id,omitempty"`
	Stock       int64  `json:"stock"`
}

// PriceFor returns the unit price under the given payment method.
func (m MenuItem) PriceFor(method PaymentMethod) int64 {
	if method == PaymentQRIS {
		return m.QRISPrice
	}
	return m.CashPrice
}

// StockItem is an ingredient or packaged good consumed by menu items.
// CurrentStock is authoritative only while the store's selling session is
// active.
type StockItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	MinimumStock int64    `json:"minimum_stock"`
	InitialStock int64    `json:"initial_stock"`
	CurrentStock int64    `json:"current_stock"`
	MenuItemIDs  []string `json:"menu_item_ids"`
}

// Links reports whether the stock item feeds the given menu item.
func (s StockItem) Links(menuItemID string) bool {
	return slices.Contains(s.MenuItemIDs, menuItemID)
}

// Low reports whether current stock fell under the minimum threshold.
func (s StockItem) Low() bool {
	return s.CurrentStock < s.MinimumStock
}

// Store is a single outlet.
type Store struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
}

// StoreSettings holds per-store switches read at checkout.
type StoreSettings struct {
	StoreID string `json:"store_id"`
	Holiday bool   `json:"holiday"`
}

// Category groups menu items.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Branch groups stores.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a staff member as seen by the back-office.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	StoreID  string `json:"store_id,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

// SellingSession is the per (store, date) stock cycle.
type SellingSession struct {
	StoreID    string           `json:"store_id"`
	Date       string           `json:"date"`
	Active     bool             `json:"active"`
	Quantities map[string]int64 `json:"quantities"`
	StartedAt  time.Time        `json:"started_at"`
	StartedBy  string           `json:"started_by"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	EndedBy    string           `json:"ended_by,omitempty"`
}

// CartItem is a transient cart line.
type CartItem struct {
	Item     MenuItem `json:"item"`
	Quantity int64    `json:"quantity"`
}

// LineItem is an immutable transaction line.
type LineItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	LineTotal  int64  `json:"line_total"`
}

// Transaction is a completed sale. Never mutated after creation.
type Transaction struct {
	ID            string        `json:"id"`
	StoreID       string        `json:"store_id"`
	CashierID     string        `json:"cashier_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []LineItem    `json:"items"`
	Total         int64         `json:"total"`
	CreatedAt     time.Time     `json:"created_at"`
}
