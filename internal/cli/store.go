package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/model"
)

// NewStoreCommand creates the store command group.
func NewStoreCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store settings",
	}

	var storeFlag string
	holiday := &cobra.Command{
		Use:       "holiday [on|off]",
		Short:     "Show or toggle holiday mode (blocks checkout)",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					if err := t.settings.SetHoliday(ctx, storeID, args[0] == "on"); err != nil {
						return domainError("set holiday", err)
					}
				}
				on, err := t.settings.IsHoliday(ctx, storeID)
				if err != nil {
					return domainError("read holiday", err)
				}
				state := "off"
				if on {
					state = "on"
				}
				text := fmt.Sprintf("Holiday mode for %s: %s\n", storeID, state)
				return opts.formatter(cmd).Emit(text, map[string]any{"store_id": storeID, "holiday": on})
			})
		},
	}
	holiday.Flags().StringVar(&storeFlag, "store", "", "store id (default: the user's store)")
	cmd.AddCommand(holiday, newMenuItemCommand(opts))
	return cmd
}

func newMenuItemCommand(opts *RootOptions) *cobra.Command {
	var (
		storeFlag string
		edit      model.MenuItem
	)
	cmd := &cobra.Command{
		Use:   "menu-item <id>",
		Short: "Create or update a menu item",
		Long: `Create or update a menu item of the store. Only the given flags change
an existing item. The edit is replicated like any other local write.`,
		Example: `  possync store menu-item roti --cash 15000 --qris 15500
  possync store menu-item pisang --name "Pisang Goreng" --cash 8000 --qris 8500 --stock 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}

				var menu []model.MenuItem
				if _, err := t.store.Get(ctx, model.MenuItemsKey(storeID), &menu); err != nil {
					return domainError("read menu", err)
				}
				item := model.MenuItem{ID: args[0], Name: args[0]}
				if idx := model.FindMenuItem(menu, args[0]); idx >= 0 {
					item = menu[idx]
				}

				flags := cmd.Flags()
				if flags.Changed("name") {
					item.Name = edit.Name
				}
				if flags.Changed("cash") {
					item.CashPrice = edit.CashPrice
				}
				if flags.Changed("qris") {
					item.QRISPrice = edit.QRISPrice
				}
				if flags.Changed("category") {
					item.CategoryID = edit.CategoryID
				}
				if flags.Changed("stock") {
					item.Stock = edit.Stock
				}

				if err := t.records.SaveMenuItem(ctx, storeID, item); err != nil {
					return domainError("save menu item", err)
				}
				text := fmt.Sprintf("Saved %s at %s: cash %d, qris %d\n", item.ID, storeID, item.CashPrice, item.QRISPrice)
				return opts.formatter(cmd).Emit(text, item)
			})
		},
	}
	cmd.Flags().StringVar(&storeFlag, "store", "", "store id (default: the user's store)")
	cmd.Flags().StringVar(&edit.Name, "name", "", "display name")
	cmd.Flags().Int64Var(&edit.CashPrice, "cash", 0, "cash price in rupiah")
	cmd.Flags().Int64Var(&edit.QRISPrice, "qris", 0, "QRIS price in rupiah")
	cmd.Flags().StringVar(&edit.CategoryID, "category", "", "category id")
	cmd.Flags().Int64Var(&edit.Stock, "stock", 0, "own stock count (ignored for items linked to stock items)")
	return cmd
}
