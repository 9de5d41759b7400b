package pos

import (
	"context"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// Checkout turns the cart into a Transaction.
//
// Holiday mode or a closed selling session block the sale
// (TRANSACTION_BLOCKED); an empty cart fails with EMPTY_CART. Stock is
// re-validated inside the write transaction, which persists the
// transaction record, the decremented stock and the create-transaction and
// update-stock operations together. The cart is cleared only after commit.
func (e *Engine) Checkout(ctx context.Context) (model.Transaction, error) {
	if !e.user.Can(session.ActionCheckout, e.storeID) {
		return model.Transaction{}, apperr.Forbidden(string(e.user.Role), string(session.ActionCheckout))
	}

	holiday, err := e.holiday.IsHoliday(ctx, e.storeID)
	if err != nil {
		return model.Transaction{}, err
	}
	if holiday {
		return model.Transaction{}, apperr.TransactionBlocked(e.storeID, "store is in holiday mode")
	}

	txn, staged, err := e.commit(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	logCheckout(txn, staged)
	return txn, e.repl.Publish(ctx, e.store, staged)
}

// commit persists the cart as a sale under the cart lock. Publishing
// happens after the lock is released.
func (e *Engine) commit(ctx context.Context) (model.Transaction, reconcile.Staged, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.cart) == 0 {
		return model.Transaction{}, reconcile.Staged{}, apperr.EmptyCart()
	}

	now := e.clock.Now()
	txn := model.Transaction{
		ID:            e.ids.NewID(),
		StoreID:       e.storeID,
		CashierID:     e.user.UserID,
		PaymentMethod: e.method,
		CreatedAt:     now,
	}
	for _, c := range e.cart {
		price := c.Item.PriceFor(e.method)
		txn.Items = append(txn.Items, model.LineItem{
			MenuItemID: c.Item.ID,
			Name:       c.Item.Name,
			Quantity:   c.Quantity,
			UnitPrice:  price,
			LineTotal:  price * c.Quantity,
		})
	}
	txn.Total = total(e.cart, e.method)

	var staged reconcile.Staged
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		active, err := selling.ActiveIn(ctx, tx, e.storeID, clock.Date(now))
		if err != nil {
			return err
		}
		if !active {
			return apperr.TransactionBlocked(e.storeID, "selling session is closed")
		}

		var (
			menu  []model.MenuItem
			stock []model.StockItem
		)
		if _, err := tx.Get(ctx, model.MenuItemsKey(e.storeID), &menu); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, model.StockItemsKey(e.storeID), &stock); err != nil {
			return err
		}

		menuLevels, stockLevels, err := applySale(txn.Items, menu, stock)
		if err != nil {
			return err
		}

		if err := tx.Set(ctx, model.TransactionKey(e.storeID, txn.ID), txn); err != nil {
			return err
		}
		if err := tx.Set(ctx, model.MenuItemsKey(e.storeID), menu); err != nil {
			return err
		}
		if err := tx.Set(ctx, model.StockItemsKey(e.storeID), stock); err != nil {
			return err
		}

		staged, err = e.repl.Stage(ctx, tx, checkoutOps(txn, menuLevels, stockLevels)...)
		return err
	})
	if err != nil {
		return model.Transaction{}, reconcile.Staged{}, apperr.Persistence("checkout", err)
	}

	e.cart = nil
	return txn, staged, nil
}

// applySale decrements menu and stock items in place and returns the
// resulting levels. Fails with STOCK_LIMIT_EXCEEDED if any menu item or
// shared stock item cannot cover the sale; the slices must then be
// discarded.
func applySale(lines []model.LineItem, menu []model.MenuItem, stock []model.StockItem) ([]ops.StockLevel, []ops.StockLevel, error) {
	need := make(map[string]int64)
	var menuLevels []ops.StockLevel

	for _, line := range lines {
		idx := model.FindMenuItem(menu, line.MenuItemID)
		if idx < 0 {
			return nil, nil, apperr.Validation("menu item %q no longer exists", line.MenuItemID)
		}
		if line.Quantity > menu[idx].Stock {
			return nil, nil, apperr.StockLimitExceeded(line.MenuItemID, line.Quantity, menu[idx].Stock)
		}
		menu[idx].Stock -= line.Quantity
		menuLevels = append(menuLevels, ops.StockLevel{ID: line.MenuItemID, Delta: -line.Quantity})

		for _, s := range stock {
			if s.Links(line.MenuItemID) {
				need[s.ID] += line.Quantity
			}
		}
	}

	var stockLevels []ops.StockLevel
	for i := range stock {
		n, ok := need[stock[i].ID]
		if !ok {
			continue
		}
		if n > stock[i].CurrentStock {
			item := firstLinked(lines, stock[i])
			return nil, nil, apperr.StockLimitExceeded(item, n, stock[i].CurrentStock)
		}
		stock[i].CurrentStock -= n
		stockLevels = append(stockLevels, ops.StockLevel{ID: stock[i].ID, Delta: -n, Stock: stock[i].CurrentStock})
	}

	model.RecomputeAvailability(menu, stock)
	for i := range menuLevels {
		menuLevels[i].Stock = menu[model.FindMenuItem(menu, menuLevels[i].ID)].Stock
	}
	return menuLevels, stockLevels, nil
}

// firstLinked names the first sold menu item fed by s, for error messages.
func firstLinked(lines []model.LineItem, s model.StockItem) string {
	for _, line := range lines {
		if s.Links(line.MenuItemID) {
			return line.MenuItemID
		}
	}
	return s.ID
}
