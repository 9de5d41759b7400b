package reconcile

import (
	"context"
	"fmt"

	"github.com/roach88/possync/internal/ops"
)

// Remote is the back-office mutation interface, one method per operation
// kind. Every call carries the operation id as an idempotency key; a
// resubmitted id must be acknowledged without being re-applied.
type Remote interface {
	StartSelling(ctx context.Context, meta ops.Meta, p ops.StartSelling) error
	EndSelling(ctx context.Context, meta ops.Meta, p ops.EndSelling) error
	UpdateStockItem(ctx context.Context, meta ops.Meta, p ops.UpdateStockItem) error
	CreateTransaction(ctx context.Context, meta ops.Meta, p ops.CreateTransaction) error
	UpdateStock(ctx context.Context, meta ops.Meta, p ops.UpdateStock) error
	UpdateMenuItem(ctx context.Context, meta ops.Meta, p ops.UpdateMenuItem) error
	UpdateCategory(ctx context.Context, meta ops.Meta, p ops.UpdateCategory) error
	UpdateBranch(ctx context.Context, meta ops.Meta, p ops.UpdateBranch) error
	UpdateStore(ctx context.Context, meta ops.Meta, p ops.UpdateStore) error
	UpdateUser(ctx context.Context, meta ops.Meta, p ops.UpdateUser) error
}

// Apply sends one entry to the matching remote method.
func Apply(ctx context.Context, r Remote, e ops.Entry) error {
	meta := e.Meta()
	switch p := e.Payload.(type) {
	case ops.StartSelling:
		return r.StartSelling(ctx, meta, p)
	case ops.EndSelling:
		return r.EndSelling(ctx, meta, p)
	case ops.UpdateStockItem:
		return r.UpdateStockItem(ctx, meta, p)
	case ops.CreateTransaction:
		return r.CreateTransaction(ctx, meta, p)
	case ops.UpdateStock:
		return r.UpdateStock(ctx, meta, p)
	case ops.UpdateMenuItem:
		return r.UpdateMenuItem(ctx, meta, p)
	case ops.UpdateCategory:
		return r.UpdateCategory(ctx, meta, p)
	case ops.UpdateBranch:
		return r.UpdateBranch(ctx, meta, p)
	case ops.UpdateStore:
		return r.UpdateStore(ctx, meta, p)
	case ops.UpdateUser:
		return r.UpdateUser(ctx, meta, p)
	default:
		return fmt.Errorf("no remote mutation for operation kind %q", e.Kind)
	}
}
