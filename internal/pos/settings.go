package pos

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// HolidayChecker reports whether a store is in holiday mode.
type HolidayChecker interface {
	IsHoliday(ctx context.Context, storeID string) (bool, error)
}

// Settings reads and writes per-store settings in the local store.
type Settings struct {
	store *store.Store
	repl  *reconcile.Replicator
	user  session.Context
}

// NewSettings creates a Settings.
func NewSettings(st *store.Store, repl *reconcile.Replicator, user session.Context) *Settings {
	return &Settings{store: st, repl: repl, user: user}
}

// IsHoliday implements HolidayChecker. A store with no settings record is
// not on holiday.
func (s *Settings) IsHoliday(ctx context.Context, storeID string) (bool, error) {
	var settings model.StoreSettings
	if _, err := s.store.Get(ctx, model.StoreSettingsKey(storeID), &settings); err != nil {
		return false, apperr.Persistence("read store settings", err)
	}
	return settings.Holiday, nil
}

// SetHoliday switches holiday mode and replicates the store record.
func (s *Settings) SetHoliday(ctx context.Context, storeID string, on bool) error {
	if !s.user.Can(session.ActionManageCatalog, storeID) {
		return apperr.Forbidden(string(s.user.Role), string(session.ActionManageCatalog))
	}

	var staged reconcile.Staged
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		settings := model.StoreSettings{StoreID: storeID}
		if _, err := tx.Get(ctx, model.StoreSettingsKey(storeID), &settings); err != nil {
			return err
		}
		settings.StoreID = storeID
		settings.Holiday = on
		if err := tx.Set(ctx, model.StoreSettingsKey(storeID), settings); err != nil {
			return err
		}

		st := model.Store{ID: storeID}
		var stores []model.Store
		if _, err := tx.Get(ctx, model.StoresKey, &stores); err != nil {
			return err
		}
		for _, candidate := range stores {
			if candidate.ID == storeID {
				st = candidate
			}
		}

		var err error
		staged, err = s.repl.Stage(ctx, tx, ops.UpdateStore{Store: st, Settings: settings})
		return err
	})
	if err != nil {
		return apperr.Persistence("set holiday mode", err)
	}

	log.Info().Str("store_id", storeID).Bool("holiday", on).Msg("holiday mode changed")
	return s.repl.Publish(ctx, s.store, staged)
}
