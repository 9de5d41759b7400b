package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/store"
)

type queueRow struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Kind       ops.Kind  `json:"kind"`
	StoreID    string    `json:"store_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the pending operation queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued operations in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			entries, err := st.PendingOperations(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "read queue", err)
			}

			rows := make([]queueRow, 0, len(entries))
			var b strings.Builder
			fmt.Fprintf(&b, "%d pending\n", len(entries))
			for _, e := range entries {
				row := queueRow{Seq: e.Seq, ID: e.ID, Kind: e.Kind, StoreID: ops.StoreOf(e.Payload), EnqueuedAt: e.EnqueuedAt}
				rows = append(rows, row)
				fmt.Fprintf(&b, "%6d  %-20s %-36s %s\n", row.Seq, row.Kind, row.ID, row.EnqueuedAt.Format(time.RFC3339))
			}
			return opts.formatter(cmd).Emit(b.String(), rows)
		},
	})
	return cmd
}
