package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/pos"
)

// NewSellCommand creates the sell command.
func NewSellCommand(opts *RootOptions) *cobra.Command {
	var (
		items     []string
		pay       string
		storeFlag string
	)
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Ring up a transaction",
		Long: `Add items to a cart and check out in one step.

Each --item is a menu item id with an optional quantity (default 1).
The sale is committed locally and replicated to the back-office, or
queued when it is unreachable.

Example:
  possync sell --item kopi-susu:2 --item roti --pay qris`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := model.ParsePaymentMethod(pay)
			if err != nil {
				return WrapExitError(ExitCommandError, "payment method", err)
			}
			lines, err := parseItems(items)
			if err != nil {
				return WrapExitError(ExitCommandError, "items", err)
			}

			return withTerminal(cmd, opts, func(ctx context.Context, t *terminal) error {
				engine := t.engine(storeFlag)
				for _, l := range lines {
					if err := engine.AddToCart(ctx, l.id, l.qty); err != nil {
						return domainError("add "+l.id, err)
					}
				}
				if err := engine.SetPaymentMethod(method); err != nil {
					return domainError("payment method", err)
				}
				txn, err := engine.Checkout(ctx)
				if err != nil {
					return domainError("checkout", err)
				}
				return opts.formatter(cmd).Emit(pos.Receipt(txn), txn)
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "menu item id[:quantity] (repeatable)")
	cmd.Flags().StringVar(&pay, "pay", string(model.PaymentCash), "payment method (cash|qris)")
	cmd.Flags().StringVar(&storeFlag, "store", "", "store id (default: the user's store)")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

type itemArg struct {
	id  string
	qty int64
}

// parseItems parses "id[:qty]" arguments.
func parseItems(args []string) ([]itemArg, error) {
	out := make([]itemArg, 0, len(args))
	for _, a := range args {
		id, qtyText, hasQty := strings.Cut(a, ":")
		if id == "" {
			return nil, fmt.Errorf("empty item id in %q", a)
		}
		qty := int64(1)
		if hasQty {
			n, err := strconv.ParseInt(qtyText, 10, 64)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid quantity in %q", a)
			}
			qty = n
		}
		out = append(out, itemArg{id: id, qty: qty})
	}
	return out, nil
}
