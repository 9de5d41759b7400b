// Package selling implements the per-store daily selling session.
//
// A store's session for a date is CLOSED until a manager starts selling,
// which resets every stock item to its initial quantity. Ending the session
// zeroes stock. While CLOSED, every stock read for the store yields 0
// regardless of what is persisted.
package selling

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// State is the session state of a store for today.
type State string

const (
	StateClosed State = "CLOSED"
	StateActive State = "ACTIVE"
)

// ErrAlreadyActive is returned by StartSelling when today's session is
// already open. It is a warning: nothing changed.
var ErrAlreadyActive = errors.New("selling session already active")

// IsAlreadyActive reports whether err is the already-active warning.
func IsAlreadyActive(err error) bool {
	return errors.Is(err, ErrAlreadyActive)
}

// Manager runs selling sessions on behalf of the signed-in user.
type Manager struct {
	store *store.Store
	repl  *reconcile.Replicator
	clock clock.Clock
	user  session.Context
}

// NewManager creates a Manager.
func NewManager(st *store.Store, repl *reconcile.Replicator, clk clock.Clock, user session.Context) *Manager {
	return &Manager{store: st, repl: repl, clock: clk, user: user}
}

// Today returns the selling date for the manager's clock.
func (m *Manager) Today() string {
	return clock.Date(m.clock.Now())
}

// StartSelling opens today's session for storeID.
//
// Every stock item's current stock is reset to its initial stock and menu
// availability is recomputed. Returns the existing session and
// ErrAlreadyActive if the session is already open.
func (m *Manager) StartSelling(ctx context.Context, storeID string) (model.SellingSession, error) {
	if err := m.authorize(storeID); err != nil {
		return model.SellingSession{}, err
	}

	now := m.clock.Now()
	date := clock.Date(now)
	var (
		sess   model.SellingSession
		staged reconcile.Staged
	)

	err := m.store.Update(ctx, func(tx *store.Tx) error {
		found, err := tx.Get(ctx, model.SellingSessionKey(storeID, date), &sess)
		if err != nil {
			return err
		}
		if found && sess.Active {
			return ErrAlreadyActive
		}

		menu, stock, err := loadItems(ctx, tx, storeID)
		if err != nil {
			return err
		}

		quantities := make(map[string]int64, len(stock))
		snapshot := make([]ops.StockSnapshot, 0, len(stock))
		for i := range stock {
			stock[i].CurrentStock = stock[i].InitialStock
			quantities[stock[i].ID] = stock[i].InitialStock
			snapshot = append(snapshot, ops.StockSnapshot{StockItemID: stock[i].ID, Quantity: stock[i].InitialStock})
		}
		model.RecomputeAvailability(menu, stock)

		sess = model.SellingSession{
			StoreID:    storeID,
			Date:       date,
			Active:     true,
			Quantities: quantities,
			StartedAt:  now,
			StartedBy:  m.user.UserID,
		}
		if err := saveItems(ctx, tx, storeID, menu, stock); err != nil {
			return err
		}
		if err := tx.Set(ctx, model.SellingSessionKey(storeID, date), sess); err != nil {
			return err
		}

		staged, err = m.repl.Stage(ctx, tx, ops.StartSelling{
			StoreID:   storeID,
			Date:      date,
			StartedBy: m.user.UserID,
			StartedAt: now,
			Items:     snapshot,
		})
		return err
	})
	if IsAlreadyActive(err) {
		log.Warn().Str("store_id", storeID).Str("date", date).Msg("selling already active")
		return sess, err
	}
	if err != nil {
		return model.SellingSession{}, apperr.Persistence("start selling", err)
	}

	log.Info().Str("store_id", storeID).Str("date", date).Int("items", len(sess.Quantities)).Msg("selling started")
	return sess, m.repl.Publish(ctx, m.store, staged)
}

// EndSelling closes today's session for storeID and zeroes its stock.
// Ending a closed session is a validation error.
func (m *Manager) EndSelling(ctx context.Context, storeID string) (model.SellingSession, error) {
	if err := m.authorize(storeID); err != nil {
		return model.SellingSession{}, err
	}

	now := m.clock.Now()
	date := clock.Date(now)
	var (
		sess   model.SellingSession
		staged reconcile.Staged
	)

	err := m.store.Update(ctx, func(tx *store.Tx) error {
		found, err := tx.Get(ctx, model.SellingSessionKey(storeID, date), &sess)
		if err != nil {
			return err
		}
		if !found || !sess.Active {
			return apperr.Validation("no active selling session for store %s on %s", storeID, date)
		}

		menu, stock, err := loadItems(ctx, tx, storeID)
		if err != nil {
			return err
		}
		for i := range stock {
			stock[i].CurrentStock = 0
		}
		// Unlinked menu items keep their own count for the next session;
		// closed-session reads zero them anyway.
		model.RecomputeAvailability(menu, stock)

		ended := now
		sess.Active = false
		sess.EndedAt = &ended
		sess.EndedBy = m.user.UserID

		if err := saveItems(ctx, tx, storeID, menu, stock); err != nil {
			return err
		}
		if err := tx.Set(ctx, model.SellingSessionKey(storeID, date), sess); err != nil {
			return err
		}

		staged, err = m.repl.Stage(ctx, tx, ops.EndSelling{
			StoreID: storeID,
			Date:    date,
			EndedBy: m.user.UserID,
			EndedAt: now,
		})
		return err
	})
	if err != nil {
		return model.SellingSession{}, apperr.Persistence("end selling", err)
	}

	log.Info().Str("store_id", storeID).Str("date", date).Dur("open_for", now.Sub(sess.StartedAt)).Msg("selling ended")
	return sess, m.repl.Publish(ctx, m.store, staged)
}

// AdjustStock overwrites one stock item's current quantity while the
// session is active and recomputes menu availability.
func (m *Manager) AdjustStock(ctx context.Context, storeID, stockItemID string, qty int64) (model.StockItem, error) {
	if err := m.authorize(storeID); err != nil {
		return model.StockItem{}, err
	}
	if qty < 0 {
		return model.StockItem{}, apperr.Validation("stock quantity %d is negative", qty)
	}

	date := m.Today()
	var (
		item   model.StockItem
		staged reconcile.Staged
	)

	err := m.store.Update(ctx, func(tx *store.Tx) error {
		active, err := ActiveIn(ctx, tx, storeID, date)
		if err != nil {
			return err
		}
		if !active {
			return apperr.Validation("stock can only be adjusted while selling is active")
		}

		menu, stock, err := loadItems(ctx, tx, storeID)
		if err != nil {
			return err
		}
		idx := model.FindStockItem(stock, stockItemID)
		if idx < 0 {
			return apperr.Validation("unknown stock item %q", stockItemID)
		}
		stock[idx].CurrentStock = qty
		model.RecomputeAvailability(menu, stock)
		item = stock[idx]

		if err := saveItems(ctx, tx, storeID, menu, stock); err != nil {
			return err
		}
		staged, err = m.repl.Stage(ctx, tx, ops.UpdateStockItem{
			StoreID:     storeID,
			StockItemID: stockItemID,
			Quantity:    qty,
			AdjustedBy:  m.user.UserID,
		})
		return err
	})
	if err != nil {
		return model.StockItem{}, apperr.Persistence("adjust stock", err)
	}

	log.Info().Str("store_id", storeID).Str("stock_item", stockItemID).Int64("qty", qty).Msg("stock adjusted")
	return item, m.repl.Publish(ctx, m.store, staged)
}

// State returns today's session state for storeID.
func (m *Manager) State(ctx context.Context, storeID string) (State, error) {
	active, err := m.IsActive(ctx, storeID)
	if err != nil {
		return StateClosed, err
	}
	if active {
		return StateActive, nil
	}
	return StateClosed, nil
}

// IsActive reports whether today's session for storeID is open.
func (m *Manager) IsActive(ctx context.Context, storeID string) (bool, error) {
	sess, found, err := m.Session(ctx, storeID)
	if err != nil {
		return false, err
	}
	return found && sess.Active, nil
}

// Session returns today's session record for storeID, if any.
func (m *Manager) Session(ctx context.Context, storeID string) (model.SellingSession, bool, error) {
	var sess model.SellingSession
	found, err := m.store.Get(ctx, model.SellingSessionKey(storeID, m.Today()), &sess)
	if err != nil {
		return model.SellingSession{}, false, apperr.Persistence("read selling session", err)
	}
	return sess, found, nil
}

// StockItems returns the store's stock items; counts are 0 while closed.
func (m *Manager) StockItems(ctx context.Context, storeID string) ([]model.StockItem, error) {
	_, stock, err := m.Items(ctx, storeID)
	return stock, err
}

// MenuItems returns the store's menu items; counts are 0 while closed.
func (m *Manager) MenuItems(ctx context.Context, storeID string) ([]model.MenuItem, error) {
	menu, _, err := m.Items(ctx, storeID)
	return menu, err
}

// Items returns menu and stock items with counts zeroed while closed.
func (m *Manager) Items(ctx context.Context, storeID string) ([]model.MenuItem, []model.StockItem, error) {
	active, err := m.IsActive(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}

	var (
		menu  []model.MenuItem
		stock []model.StockItem
	)
	if _, err := m.store.Get(ctx, model.MenuItemsKey(storeID), &menu); err != nil {
		return nil, nil, apperr.Persistence("read menu items", err)
	}
	if _, err := m.store.Get(ctx, model.StockItemsKey(storeID), &stock); err != nil {
		return nil, nil, apperr.Persistence("read stock items", err)
	}
	if !active {
		menu, stock = model.ZeroStock(menu, stock)
	}
	return menu, stock, nil
}

// ActiveIn reports, inside a store transaction, whether the session of
// storeID on date is open.
func ActiveIn(ctx context.Context, tx *store.Tx, storeID, date string) (bool, error) {
	var sess model.SellingSession
	found, err := tx.Get(ctx, model.SellingSessionKey(storeID, date), &sess)
	if err != nil {
		return false, err
	}
	return found && sess.Active, nil
}

func (m *Manager) authorize(storeID string) error {
	if !m.user.Can(session.ActionManageSelling, storeID) {
		return apperr.Forbidden(string(m.user.Role), string(session.ActionManageSelling))
	}
	return nil
}

func loadItems(ctx context.Context, tx *store.Tx, storeID string) ([]model.MenuItem, []model.StockItem, error) {
	var (
		menu  []model.MenuItem
		stock []model.StockItem
	)
	if _, err := tx.Get(ctx, model.MenuItemsKey(storeID), &menu); err != nil {
		return nil, nil, fmt.Errorf("load menu items: %w", err)
	}
	if _, err := tx.Get(ctx, model.StockItemsKey(storeID), &stock); err != nil {
		return nil, nil, fmt.Errorf("load stock items: %w", err)
	}
	return menu, stock, nil
}

func saveItems(ctx context.Context, tx *store.Tx, storeID string, menu []model.MenuItem, stock []model.StockItem) error {
	if err := tx.Set(ctx, model.MenuItemsKey(storeID), menu); err != nil {
		return err
	}
	return tx.Set(ctx, model.StockItemsKey(storeID), stock)
}
