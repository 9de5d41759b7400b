package pos

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// Records edits catalog and organisation records locally and replicates
// each edit. Store-scoped records need a manager; brand-wide records
// (categories, branches, users) need the owner.
type Records struct {
	store *store.Store
	repl  *reconcile.Replicator
	user  session.Context
}

// NewRecords creates a Records editor.
func NewRecords(st *store.Store, repl *reconcile.Replicator, user session.Context) *Records {
	return &Records{store: st, repl: repl, user: user}
}

// SaveMenuItem creates or replaces a menu item of storeID. A linked item's
// stock is recomputed from its stock items.
func (r *Records) SaveMenuItem(ctx context.Context, storeID string, item model.MenuItem) error {
	return r.save(ctx, ops.UpdateMenuItem{StoreID: storeID, Item: item}, func(tx *store.Tx) error {
		var (
			menu  []model.MenuItem
			stock []model.StockItem
		)
		if err := store.UpsertList(ctx, tx, model.MenuItemsKey(storeID), item, func(m model.MenuItem) string { return m.ID }); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, model.MenuItemsKey(storeID), &menu); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, model.StockItemsKey(storeID), &stock); err != nil {
			return err
		}
		model.RecomputeAvailability(menu, stock)
		return tx.Set(ctx, model.MenuItemsKey(storeID), menu)
	})
}

// SaveCategory creates or replaces a category.
func (r *Records) SaveCategory(ctx context.Context, c model.Category) error {
	return r.save(ctx, ops.UpdateCategory{Category: c}, func(tx *store.Tx) error {
		return store.UpsertList(ctx, tx, model.CategoriesKey, c, func(c model.Category) string { return c.ID })
	})
}

// SaveBranch creates or replaces a branch.
func (r *Records) SaveBranch(ctx context.Context, b model.Branch) error {
	return r.save(ctx, ops.UpdateBranch{Branch: b}, func(tx *store.Tx) error {
		return store.UpsertList(ctx, tx, model.BranchesKey, b, func(b model.Branch) string { return b.ID })
	})
}

// SaveUser creates or replaces a staff record.
func (r *Records) SaveUser(ctx context.Context, u model.User) error {
	return r.save(ctx, ops.UpdateUser{User: u}, func(tx *store.Tx) error {
		return store.UpsertList(ctx, tx, model.UsersKey, u, func(u model.User) string { return u.ID })
	})
}

// save runs write and stages p in one local transaction, then publishes.
func (r *Records) save(ctx context.Context, p ops.Payload, write func(tx *store.Tx) error) error {
	action := ops.ActionOf(p)
	if !r.user.Can(action, ops.StoreOf(p)) {
		return apperr.Forbidden(string(r.user.Role), string(action))
	}

	var staged reconcile.Staged
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		if err := write(tx); err != nil {
			return err
		}
		var err error
		staged, err = r.repl.Stage(ctx, tx, p)
		return err
	})
	if err != nil {
		return apperr.Persistence(fmt.Sprintf("save %s", p.Kind()), err)
	}

	log.Info().Str("op_kind", string(p.Kind())).Str("user_id", r.user.UserID).Msg("record saved")
	return r.repl.Publish(ctx, r.store, staged)
}
