package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestMemoryUpsertReplacesByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, Item{ItemID: "A-1", Quantity: 5}))
	require.NoError(t, m.Upsert(ctx, Item{ItemID: "A-1", Quantity: 9, SKU: strptr("SKU-1")}))
	require.NoError(t, m.Upsert(ctx, Item{ItemID: "B-2", Quantity: 1}))

	assert.Equal(t, 2, m.Len())

	item, ok := m.Get("A-1")
	require.True(t, ok)
	assert.Equal(t, 9, item.Quantity)
	require.NotNil(t, item.SKU)
	assert.Equal(t, "SKU-1", *item.SKU)
}

func TestMemoryUpsertRejectsMissingID(t *testing.T) {
	m := NewMemory()

	err := m.Upsert(context.Background(), Item{Quantity: 3})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Equal(t, 0, m.Len())
}
