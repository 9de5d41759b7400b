package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/clock"
	"github.com/roach88/possync/internal/config"
	"github.com/roach88/possync/internal/lease"
	"github.com/roach88/possync/internal/netstatus"
	"github.com/roach88/possync/internal/notify"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/reconcile"
	"github.com/roach88/possync/internal/remote"
	"github.com/roach88/possync/internal/selling"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// terminal is the wired POS core of one till.
type terminal struct {
	cfg     *config.Config
	user    session.Context
	clock   clock.Clock
	store   *store.Store
	monitor *netstatus.Monitor

	// client and prober are nil without a remote_url.
	client *remote.Client
	prober *netstatus.Prober

	lease      lease.Lease
	replicator *reconcile.Replicator
	reconciler *reconcile.Reconciler
	selling    *selling.Manager
	settings   *pos.Settings
	records    *pos.Records

	closers []func() error
}

// openTerminal opens the store, probes the back-office once and wires the
// core for the configured user.
func openTerminal(ctx context.Context, cfg *config.Config) (*terminal, error) {
	user, err := cfg.Session()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configured user", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	t := &terminal{
		cfg:     cfg,
		user:    user,
		clock:   clock.System{Location: cfg.Location()},
		store:   st,
		monitor: netstatus.NewMonitor(netstatus.Offline),
		closers: []func() error{st.Close},
	}

	t.lease, err = t.openLease()
	if err != nil {
		t.Close()
		return nil, WrapExitError(ExitCommandError, "open lease", err)
	}

	var rem reconcile.Remote
	if cfg.RemoteURL != "" {
		token, err := terminalToken(cfg, user)
		if err != nil {
			t.Close()
			return nil, WrapExitError(ExitCommandError, "terminal token", err)
		}
		t.client = remote.New(cfg.RemoteURL, token, cfg.RemoteTimeout)
		t.prober = netstatus.NewProber(t.monitor, t.client, cfg.ProbeInterval)
		t.prober.ProbeOnce(ctx)
		rem = t.client
	}

	notifier := notify.Log{}
	t.replicator = reconcile.NewReplicator(t.monitor, rem,
		reconcile.WithReplicatorNotifier(notifier),
		reconcile.WithReplicatorClock(t.clock.Now))
	if rem != nil {
		t.reconciler = reconcile.NewReconciler(st, rem,
			reconcile.WithNotifier(notifier),
			reconcile.WithLease(t.lease),
			reconcile.WithClock(t.clock.Now))
	}
	t.selling = selling.NewManager(st, t.replicator, t.clock, user)
	t.settings = pos.NewSettings(st, t.replicator, user)
	t.records = pos.NewRecords(st, t.replicator, user)

	log.Debug().
		Str("db", cfg.Database).
		Str("user", user.UserID).
		Str("status", string(t.monitor.Status())).
		Msg("terminal ready")
	return t, nil
}

func (t *terminal) openLease() (lease.Lease, error) {
	lc := t.cfg.Lease
	switch lc.Backend {
	case config.LeaseSQLite:
		return lease.NewSQLite(t.store.DB(), lc.Key, lc.TTL), nil
	case config.LeaseRedis:
		l, err := lease.DialRedis(lc.RedisURL, lc.Key, lc.TTL)
		if err != nil {
			return nil, err
		}
		t.closers = append(t.closers, l.Close)
		return l, nil
	default:
		return lease.None{}, nil
	}
}

// engine returns a transaction engine selling at storeID ("" for the
// user's own store).
func (t *terminal) engine(storeID string) *pos.Engine {
	opts := []pos.Option{pos.WithClock(t.clock), pos.WithHolidayChecker(t.settings)}
	if storeID != "" {
		opts = append(opts, pos.WithStore(storeID))
	}
	return pos.NewEngine(t.store, t.selling, t.replicator, t.user, opts...)
}

// storeID resolves a --store flag against the user's store.
func (t *terminal) storeID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if t.user.StoreID == "" {
		return "", NewExitError(ExitCommandError, "--store is required for users without a store")
	}
	return t.user.StoreID, nil
}

// Close releases everything in reverse order of opening and waits for
// status hooks.
func (t *terminal) Close() error {
	t.monitor.Wait()
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		errs = append(errs, t.closers[i]())
	}
	return errors.Join(errs...)
}

// terminalToken returns the configured token, or signs one when the
// terminal knows the shared secret.
func terminalToken(cfg *config.Config, user session.Context) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("remote_url is set but neither token nor jwt_secret is configured")
	}
	return session.Sign(user, []byte(cfg.JWTSecret), cfg.TokenTTL, time.Now())
}

// withTerminal opens the terminal for the duration of fn.
func withTerminal(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, t *terminal) error) error {
	ctx := cmd.Context()
	t, err := openTerminal(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Msg("close terminal")
		}
	}()
	return fn(ctx, t)
}

// domainError maps a core error to an exit code. Domain failures exit 1;
// persistence failures are command errors.
func domainError(message string, err error) error {
	if apperr.IsPersistence(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}
