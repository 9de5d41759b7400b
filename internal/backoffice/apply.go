package backoffice

import (
	"context"
	"fmt"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/store"
)

// Apply applies one operation in a single store transaction.
//
// The idempotency record and the state change commit together, so a
// conflict rolls the record back and the till may retry the same id once
// the conflict is resolved. Returns duplicate=true for an id applied before
// with the same digest.
func Apply(ctx context.Context, st *store.Store, e ops.Entry) (duplicate bool, err error) {
	err = st.Update(ctx, func(tx *store.Tx) error {
		inserted, existing, err := tx.MarkApplied(ctx, e.ID, e.Kind, e.Digest)
		if err != nil {
			return err
		}
		if !inserted {
			if existing != e.Digest {
				return apperr.Conflict(fmt.Sprintf("operation id %s reused with a different payload", e.ID))
			}
			duplicate = true
			return nil
		}
		return applyPayload(ctx, tx, e.Payload)
	})
	return duplicate, err
}

func applyPayload(ctx context.Context, tx *store.Tx, p ops.Payload) error {
	switch v := p.(type) {
	case ops.StartSelling:
		return startSelling(ctx, tx, v)
	case ops.EndSelling:
		return endSelling(ctx, tx, v)
	case ops.UpdateStockItem:
		return updateStockItem(ctx, tx, v)
	case ops.CreateTransaction:
		return createTransaction(ctx, tx, v)
	case ops.UpdateStock:
		return updateStock(ctx, tx, v)
	case ops.UpdateMenuItem:
		return store.UpsertList(ctx, tx, model.MenuItemsKey(v.StoreID), v.Item, func(m model.MenuItem) string { return m.ID })
	case ops.UpdateCategory:
		return store.UpsertList(ctx, tx, model.CategoriesKey, v.Category, func(c model.Category) string { return c.ID })
	case ops.UpdateBranch:
		return store.UpsertList(ctx, tx, model.BranchesKey, v.Branch, func(b model.Branch) string { return b.ID })
	case ops.UpdateStore:
		if err := store.UpsertList(ctx, tx, model.StoresKey, v.Store, func(s model.Store) string { return s.ID }); err != nil {
			return err
		}
		return tx.Set(ctx, model.StoreSettingsKey(v.Store.ID), v.Settings)
	case ops.UpdateUser:
		return store.UpsertList(ctx, tx, model.UsersKey, v.User, func(u model.User) string { return u.ID })
	default:
		return fmt.Errorf("unsupported operation kind %q", p.Kind())
	}
}

func startSelling(ctx context.Context, tx *store.Tx, p ops.StartSelling) error {
	key := model.SellingSessionKey(p.StoreID, p.Date)
	var sess model.SellingSession
	found, err := tx.Get(ctx, key, &sess)
	if err != nil {
		return err
	}
	if found && sess.Active {
		return apperr.Conflict(fmt.Sprintf("selling session for %s on %s already active", p.StoreID, p.Date))
	}

	var stock []model.StockItem
	if _, err := tx.Get(ctx, model.StockItemsKey(p.StoreID), &stock); err != nil {
		return err
	}
	quantities := make(map[string]int64, len(p.Items))
	for _, snap := range p.Items {
		quantities[snap.StockItemID] = snap.Quantity
		if idx := model.FindStockItem(stock, snap.StockItemID); idx >= 0 {
			stock[idx].CurrentStock = snap.Quantity
		} else {
			stock = append(stock, model.StockItem{ID: snap.StockItemID, InitialStock: snap.Quantity, CurrentStock: snap.Quantity})
		}
	}
	if err := tx.Set(ctx, model.StockItemsKey(p.StoreID), stock); err != nil {
		return err
	}
	if err := recompute(ctx, tx, p.StoreID, stock); err != nil {
		return err
	}

	return tx.Set(ctx, key, model.SellingSession{
		StoreID:    p.StoreID,
		Date:       p.Date,
		Active:     true,
		Quantities: quantities,
		StartedAt:  p.StartedAt,
		StartedBy:  p.StartedBy,
	})
}

func endSelling(ctx context.Context, tx *store.Tx, p ops.EndSelling) error {
	key := model.SellingSessionKey(p.StoreID, p.Date)
	var sess model.SellingSession
	found, err := tx.Get(ctx, key, &sess)
	if err != nil {
		return err
	}
	if !found || !sess.Active {
		return apperr.Conflict(fmt.Sprintf("no active selling session for %s on %s", p.StoreID, p.Date))
	}

	var stock []model.StockItem
	if _, err := tx.Get(ctx, model.StockItemsKey(p.StoreID), &stock); err != nil {
		return err
	}
	for i := range stock {
		stock[i].CurrentStock = 0
	}
	if err := tx.Set(ctx, model.StockItemsKey(p.StoreID), stock); err != nil {
		return err
	}
	if err := recompute(ctx, tx, p.StoreID, stock); err != nil {
		return err
	}

	ended := p.EndedAt
	sess.Active = false
	sess.EndedAt = &ended
	sess.EndedBy = p.EndedBy
	return tx.Set(ctx, key, sess)
}

func updateStockItem(ctx context.Context, tx *store.Tx, p ops.UpdateStockItem) error {
	var stock []model.StockItem
	if _, err := tx.Get(ctx, model.StockItemsKey(p.StoreID), &stock); err != nil {
		return err
	}
	idx := model.FindStockItem(stock, p.StockItemID)
	if idx < 0 {
		return apperr.Conflict(fmt.Sprintf("unknown stock item %s at %s", p.StockItemID, p.StoreID))
	}
	stock[idx].CurrentStock = p.Quantity
	if err := tx.Set(ctx, model.StockItemsKey(p.StoreID), stock); err != nil {
		return err
	}
	return recompute(ctx, tx, p.StoreID, stock)
}

func createTransaction(ctx context.Context, tx *store.Tx, p ops.CreateTransaction) error {
	key := model.TransactionKey(p.Transaction.StoreID, p.Transaction.ID)
	var existing model.Transaction
	found, err := tx.Get(ctx, key, &existing)
	if err != nil {
		return err
	}
	if found {
		return apperr.Conflict(fmt.Sprintf("transaction %s already recorded", p.Transaction.ID))
	}
	return tx.Set(ctx, key, p.Transaction)
}

// updateStock writes absolute levels, so applying the same update twice
// converges.
func updateStock(ctx context.Context, tx *store.Tx, p ops.UpdateStock) error {
	var menu []model.MenuItem
	if _, err := tx.Get(ctx, model.MenuItemsKey(p.StoreID), &menu); err != nil {
		return err
	}
	for _, lvl := range p.MenuItems {
		if idx := model.FindMenuItem(menu, lvl.ID); idx >= 0 {
			menu[idx].Stock = lvl.Stock
		}
	}
	if err := tx.Set(ctx, model.MenuItemsKey(p.StoreID), menu); err != nil {
		return err
	}

	var stock []model.StockItem
	if _, err := tx.Get(ctx, model.StockItemsKey(p.StoreID), &stock); err != nil {
		return err
	}
	for _, lvl := range p.StockItems {
		if idx := model.FindStockItem(stock, lvl.ID); idx >= 0 {
			stock[idx].CurrentStock = lvl.Stock
		}
	}
	return tx.Set(ctx, model.StockItemsKey(p.StoreID), stock)
}

func recompute(ctx context.Context, tx *store.Tx, storeID string, stock []model.StockItem) error {
	var menu []model.MenuItem
	found, err := tx.Get(ctx, model.MenuItemsKey(storeID), &menu)
	if err != nil || !found {
		return err
	}
	model.RecomputeAvailability(menu, stock)
	return tx.Set(ctx, model.MenuItemsKey(storeID), menu)
}
