// Package report summarises a store's sales for one day.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/store"
)

// ItemSales is the quantity and revenue of one menu item.
type ItemSales struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	Revenue    int64  `json:"revenue"`
}

// Summary is a daily sales summary.
type Summary struct {
	StoreID       string          `json:"store_id"`
	Date          string          `json:"date"`
	Transactions  int             `json:"transactions"`
	Total         int64           `json:"total"`
	CashTotal     int64           `json:"cash_total"`
	QRISTotal     int64           `json:"qris_total"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
	// QRISShare is the percentage of revenue paid by QRIS.
	QRISShare decimal.Decimal `json:"qris_share"`
	Items     []ItemSales     `json:"items"`

	// SessionActive reports whether the day's selling session is open.
	// LowStock is only computed while it is, since closed stores hold no stock.
	SessionActive bool              `json:"session_active"`
	LowStock      []model.StockItem `json:"low_stock,omitempty"`
}

// Transactions returns the stored transactions of a store ordered by id.
func Transactions(ctx context.Context, st *store.Store, storeID string) ([]model.Transaction, error) {
	keys, err := st.Keys(ctx, model.TransactionsPrefix(storeID))
	if err != nil {
		return nil, err
	}
	txns := make([]model.Transaction, 0, len(keys))
	for _, k := range keys {
		var txn model.Transaction
		if _, err := st.Get(ctx, k, &txn); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// Daily builds the summary for storeID on date (YYYY-MM-DD in loc).
func Daily(ctx context.Context, st *store.Store, storeID, date string, loc *time.Location) (Summary, error) {
	if _, err := time.ParseInLocation(time.DateOnly, date, loc); err != nil {
		return Summary{}, fmt.Errorf("report: invalid date %q: %w", date, err)
	}

	txns, err := Transactions(ctx, st, storeID)
	if err != nil {
		return Summary{}, fmt.Errorf("report: load transactions: %w", err)
	}

	s := Summary{StoreID: storeID, Date: date, AverageTicket: decimal.Zero, QRISShare: decimal.Zero}
	items := make(map[string]*ItemSales)
	for _, txn := range txns {
		if txn.CreatedAt.In(loc).Format(time.DateOnly) != date {
			continue
		}
		s.Transactions++
		s.Total += txn.Total
		if txn.PaymentMethod == model.PaymentQRIS {
			s.QRISTotal += txn.Total
		} else {
			s.CashTotal += txn.Total
		}
		for _, line := range txn.Items {
			is, ok := items[line.MenuItemID]
			if !ok {
				is = &ItemSales{MenuItemID: line.MenuItemID, Name: line.Name}
				items[line.MenuItemID] = is
			}
			is.Quantity += line.Quantity
			is.Revenue += line.LineTotal
		}
	}

	if s.Transactions > 0 {
		total := decimal.NewFromInt(s.Total)
		s.AverageTicket = total.Div(decimal.NewFromInt(int64(s.Transactions))).Round(0)
		if !total.IsZero() {
			s.QRISShare = decimal.NewFromInt(s.QRISTotal).Div(total).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}

	s.Items = make([]ItemSales, 0, len(items))
	for _, is := range items {
		s.Items = append(s.Items, *is)
	}
	sort.Slice(s.Items, func(i, j int) bool {
		if s.Items[i].Quantity != s.Items[j].Quantity {
			return s.Items[i].Quantity > s.Items[j].Quantity
		}
		return s.Items[i].MenuItemID < s.Items[j].MenuItemID
	})

	var sess model.SellingSession
	found, err := st.Get(ctx, model.SellingSessionKey(storeID, date), &sess)
	if err != nil {
		return Summary{}, fmt.Errorf("report: load session: %w", err)
	}
	s.SessionActive = found && sess.Active
	if s.SessionActive {
		var stock []model.StockItem
		if _, err := st.Get(ctx, model.StockItemsKey(storeID), &stock); err != nil {
			return Summary{}, fmt.Errorf("report: load stock: %w", err)
		}
		for _, item := range stock {
			if item.Low() {
				s.LowStock = append(s.LowStock, item)
			}
		}
	}
	return s, nil
}

// Format renders a summary as text with Indonesian number formatting.
func Format(s Summary) string {
	p := message.NewPrinter(language.Indonesian)
	var b strings.Builder

	b.WriteString(p.Sprintf("Daily report %s %s\n", s.StoreID, s.Date))
	b.WriteString(p.Sprintf("Transactions:   %d\n", s.Transactions))
	b.WriteString(p.Sprintf("Total:          Rp%d\n", s.Total))
	b.WriteString(p.Sprintf("  Cash:         Rp%d\n", s.CashTotal))
	b.WriteString(p.Sprintf("  QRIS:         Rp%d (%s%%)\n", s.QRISTotal, s.QRISShare.StringFixed(2)))
	b.WriteString(p.Sprintf("Average ticket: Rp%d\n", s.AverageTicket.IntPart()))

	if len(s.Items) > 0 {
		b.WriteString("Items:\n")
		for _, is := range s.Items {
			b.WriteString(p.Sprintf("  %-20s %4d  Rp%d\n", is.Name, is.Quantity, is.Revenue))
		}
	}
	switch {
	case !s.SessionActive:
		b.WriteString("Selling session closed\n")
	case len(s.LowStock) > 0:
		b.WriteString("Low stock:\n")
		for _, item := range s.LowStock {
			b.WriteString(p.Sprintf("  %-20s %d/%d %s\n", item.Name, item.CurrentStock, item.MinimumStock, item.Unit))
		}
	}
	return b.String()
}
