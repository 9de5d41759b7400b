package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/ops"
)

func TestFakeRemote_IdempotentByID(t *testing.T) {
	f := NewFakeRemote()
	ctx := context.Background()
	p := ops.EndSelling{StoreID: "s1", Date: "2026-10-17", EndedBy: "u-1"}

	require.NoError(t, f.EndSelling(ctx, ops.Meta{ID: "op-1"}, p))
	require.NoError(t, f.EndSelling(ctx, ops.Meta{ID: "op-1"}, p))

	assert.Len(t, f.Calls(), 1)
	assert.Equal(t, 2, f.Attempts())
}

func TestFakeRemote_InjectedFailures(t *testing.T) {
	f := NewFakeRemote()
	ctx := context.Background()
	p := ops.UpdateCategory{}

	f.FailNext(nil)
	assert.ErrorIs(t, f.UpdateCategory(ctx, ops.Meta{ID: "a"}, p), ErrUnreachable)
	assert.NoError(t, f.UpdateCategory(ctx, ops.Meta{ID: "a"}, p))

	f.FailAlways(nil)
	assert.Error(t, f.Ping(ctx))
	assert.Error(t, f.UpdateCategory(ctx, ops.Meta{ID: "b"}, p))

	f.Recover()
	f.ConflictOn(ops.KindUpdateCategory)
	assert.True(t, apperr.IsConflict(f.UpdateCategory(ctx, ops.Meta{ID: "c"}, p)))

	f.Recover()
	assert.NoError(t, f.Ping(ctx))
	assert.Equal(t, []ops.Kind{ops.KindUpdateCategory}, f.Kinds())
}
