package remote

import (
	"context"

	"github.com/roach88/possync/internal/ops"
)

func (c *Client) submit(ctx context.Context, meta ops.Meta, p ops.Payload) error {
	_, err := c.Submit(ctx, meta, p)
	return err
}

func (c *Client) StartSelling(ctx context.Context, meta ops.Meta, p ops.StartSelling) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) EndSelling(ctx context.Context, meta ops.Meta, p ops.EndSelling) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateStockItem(ctx context.Context, meta ops.Meta, p ops.UpdateStockItem) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) CreateTransaction(ctx context.Context, meta ops.Meta, p ops.CreateTransaction) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateStock(ctx context.Context, meta ops.Meta, p ops.UpdateStock) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateMenuItem(ctx context.Context, meta ops.Meta, p ops.UpdateMenuItem) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateCategory(ctx context.Context, meta ops.Meta, p ops.UpdateCategory) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateBranch(ctx context.Context, meta ops.Meta, p ops.UpdateBranch) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateStore(ctx context.Context, meta ops.Meta, p ops.UpdateStore) error {
	return c.submit(ctx, meta, p)
}

func (c *Client) UpdateUser(ctx context.Context, meta ops.Meta, p ops.UpdateUser) error {
	return c.submit(ctx, meta, p)
}
