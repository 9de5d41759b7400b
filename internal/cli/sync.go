package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/netstatus"
	"github.com/roach88/possync/internal/remote"
)

type syncResult struct {
	Status    netstatus.Status `json:"status"`
	Skipped   bool             `json:"skipped"`
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Remaining int              `json:"remaining"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending queue once",
		Long: `Replay queued operations to the back-office in order.

The drain stops at the first failure and leaves the rest queued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				if t.reconciler == nil {
					return WrapExitError(ExitCommandError, "sync", remote.ErrNoRemote)
				}
				if !t.monitor.Online() {
					return NewExitError(ExitFailure, fmt.Sprintf("back-office %s unreachable", opts.cfg.RemoteURL))
				}

				res, err := t.reconciler.Reconcile(ctx)
				if err != nil {
					return domainError("sync", err)
				}
				out := syncResult{
					Status:    t.monitor.Status(),
					Skipped:   res.Skipped,
					Attempted: res.Attempted,
					Succeeded: res.Succeeded,
					Remaining: res.Remaining,
				}
				text := fmt.Sprintf("Synced %d operations\n", res.Succeeded)
				if res.Skipped {
					text = "Another drain is in progress\n"
				}
				return opts.formatter(cmd).Emit(text, out)
			})
		},
	}
}
