package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	_, err := c.Get(ctx, id)
	require.ErrorIs(t, err, ErrMiss)

	gen, err := c.Generation(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.SetAt(ctx, id, gen, 120_00))
	v, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(120_00), v)

	require.NoError(t, c.Invalidate(ctx, id))
	_, err = c.Get(ctx, id)
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheDropsWriteAfterInvalidate(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	gen, err := c.Generation(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, id))

	require.ErrorIs(t, c.SetAt(ctx, id, gen, 50_00), ErrSuperseded)
	_, err = c.Get(ctx, id)
	require.ErrorIs(t, err, ErrMiss)

	gen, err = c.Generation(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.SetAt(ctx, id, gen, 75_00))
}

func TestBalanceKey(t *testing.T) {
	id := uuid.MustParse("7f1c0d6e-8a34-4b1e-9d1a-2b8f3c4d5e6f")
	assert.Equal(t, "wallet:balance:7f1c0d6e-8a34-4b1e-9d1a-2b8f3c4d5e6f", balanceKey(id))
	assert.Equal(t, "wallet:balance:7f1c0d6e-8a34-4b1e-9d1a-2b8f3c4d5e6f:gen", generationKey(id))
}
