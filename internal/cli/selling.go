package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/selling"
)

// NewSellingCommand creates the selling command group.
func NewSellingCommand(opts *RootOptions) *cobra.Command {
	var storeFlag string
	cmd := &cobra.Command{
		Use:   "selling",
		Short: "Open, close and adjust today's selling session",
	}
	cmd.PersistentFlags().StringVar(&storeFlag, "store", "", "store id (default: the user's store)")

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Open today's selling session and reset stock to initial levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}
				sess, err := t.selling.StartSelling(ctx, storeID)
				if selling.IsAlreadyActive(err) {
					text := fmt.Sprintf("Selling already active for %s on %s\n", sess.StoreID, sess.Date)
					return opts.formatter(cmd).Emit(text, sess)
				}
				if err != nil {
					return domainError("start selling", err)
				}
				text := fmt.Sprintf("Selling started for %s on %s (%d stock items)\n", sess.StoreID, sess.Date, len(sess.Quantities))
				return opts.formatter(cmd).Emit(text, sess)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "end",
		Short: "Close today's selling session and zero all stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}
				sess, err := t.selling.EndSelling(ctx, storeID)
				if err != nil {
					return domainError("end selling", err)
				}
				text := fmt.Sprintf("Selling ended for %s on %s\n", sess.StoreID, sess.Date)
				return opts.formatter(cmd).Emit(text, sess)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "adjust <stock-item-id> <quantity>",
		Short: "Set a stock item's current quantity during an active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "quantity", err)
			}
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}
				item, err := t.selling.AdjustStock(ctx, storeID, args[0], qty)
				if err != nil {
					return domainError("adjust stock", err)
				}
				text := fmt.Sprintf("%s now at %d %s\n", item.ID, item.CurrentStock, item.Unit)
				return opts.formatter(cmd).Emit(text, item)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show today's session state and stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				storeID, err := t.storeID(storeFlag)
				if err != nil {
					return err
				}
				state, err := t.selling.State(ctx, storeID)
				if err != nil {
					return domainError("selling state", err)
				}
				menu, stock, err := t.selling.Items(ctx, storeID)
				if err != nil {
					return domainError("load items", err)
				}

				text := fmt.Sprintf("%s %s: %s\n", storeID, t.selling.Today(), state)
				for _, m := range menu {
					text += fmt.Sprintf("  %-20s %d\n", m.ID, m.Stock)
				}
				for _, s := range stock {
					text += fmt.Sprintf("  %-20s %d/%d %s\n", s.ID, s.CurrentStock, s.InitialStock, s.Unit)
				}
				return opts.formatter(cmd).Emit(text, map[string]any{
					"state": state, "menu_items": menu, "stock_items": stock,
				})
			})
		},
	})

	return cmd
}
