package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/catalog"
	"github.com/roach88/possync/internal/store"
)

type seedResult struct {
	Stores     int `json:"stores"`
	Categories int `json:"categories"`
	MenuItems  int `json:"menu_items"`
	StockItems int `json:"stock_items"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog-dir>",
		Short: "Load a CUE catalog into the local store",
		Long: `Validate a CUE catalog (stores, categories, menu and stock items) and
write it to the database. Existing catalog entries are replaced.

Example:
  possync seed --db ./till.db ./catalog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.LoadDir(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "load catalog", err)
			}

			st, err := store.Open(opts.cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			if err := catalog.Seed(cmd.Context(), st, c); err != nil {
				return WrapExitError(ExitFailure, "seed", err)
			}

			res := seedResult{Stores: len(c.Stores), Categories: len(c.Categories)}
			for _, m := range c.Menu {
				res.MenuItems += len(m)
			}
			for _, s := range c.Stock {
				res.StockItems += len(s)
			}
			text := fmt.Sprintf("Seeded %d stores, %d categories, %d menu items, %d stock items\n",
				res.Stores, res.Categories, res.MenuItems, res.StockItems)
			return opts.formatter(cmd).Emit(text, res)
		},
	}
}
