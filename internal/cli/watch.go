package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/remote"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Probe the back-office and drain the queue whenever it is reachable",
		Long: `Run the connectivity monitor in the foreground.

The back-office health endpoint is probed every probe_interval. Each
offline to online transition drains the pending operation queue; while
online, leftovers from a failed drain are retried on the next probe.

Example:
  possync watch --db ./till.db
  POSSYNC_REMOTE_URL=http://backoffice:8080 possync watch -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}
}

func runWatch(opts *RootOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	t, err := openTerminal(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer t.Close()
	if t.reconciler == nil {
		return WrapExitError(ExitCommandError, "watch", remote.ErrNoRemote)
	}

	drain := func(reason string) {
		res, err := t.reconciler.Reconcile(ctx)
		if err != nil {
			log.Warn().Err(err).Str("reason", reason).Int("remaining", res.Remaining).Msg("drain failed")
			return
		}
		if res.Succeeded > 0 {
			log.Info().Str("reason", reason).Int("synced", res.Succeeded).Msg("queue drained")
		}
	}
	t.monitor.OnOnline(func() { drain("online") })

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (status %s). Press Ctrl-C to stop.\n", opts.cfg.RemoteURL, t.monitor.Status())
	if t.monitor.Online() {
		drain("startup")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- t.prober.Run(ctx) }()

	ticker := time.NewTicker(opts.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return WrapExitError(ExitFailure, "prober", err)
			}
			log.Info().Msg("watch stopped")
			return nil
		case <-ticker.C:
			if !t.monitor.Online() {
				continue
			}
			if n, err := t.store.PendingCount(ctx); err == nil && n > 0 {
				drain("retry")
			}
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, or when
// parent is done.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
