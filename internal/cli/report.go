package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/report"
	"github.com/roach88/possync/internal/store"
)

// NewReportCommand creates the report command group.
func NewReportCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sales reports",
	}

	var storeFlag, date string
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Daily sales summary for a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			storeID := storeFlag
			if storeID == "" {
				storeID = cfg.StoreID
			}
			if storeID == "" {
				return NewExitError(ExitCommandError, "--store is required")
			}
			loc := cfg.Location()
			if date == "" {
				date = time.Now().In(loc).Format(time.DateOnly)
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			s, err := report.Daily(cmd.Context(), st, storeID, date, loc)
			if err != nil {
				return WrapExitError(ExitFailure, "daily report", err)
			}
			return opts.formatter(cmd).Emit(report.Format(s), s)
		},
	}
	daily.Flags().StringVar(&storeFlag, "store", "", "store id (default: store_id from config)")
	daily.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD (default: today)")
	cmd.AddCommand(daily)
	return cmd
}
