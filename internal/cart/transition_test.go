package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionMergesGuestCart(t *testing.T) {
	f := newFixture(t)
	tr := NewTransition(f.svc, logger.Nop())
	userID := uuid.New()

	guest := NewGuestCart(t0)
	guest.Add("p1", 2, t0)

	res := tr.Complete(context.Background(), userID, guest)
	require.NoError(t, res.Err)
	assert.True(t, res.Merged)
	assert.True(t, res.GuestCleared)
	assert.Equal(t, 2, res.Cart.Quantity("p1"))

	stored, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Quantity("p1"))
}

func TestTransitionWithEmptyGuestCart(t *testing.T) {
	f := newFixture(t)
	tr := NewTransition(f.svc, logger.Nop())

	res := tr.Complete(context.Background(), uuid.New(), nil)
	require.NoError(t, res.Err)
	assert.False(t, res.Merged)
	assert.True(t, res.GuestCleared)
	require.NotNil(t, res.Cart)
	assert.Zero(t, f.store.puts)
}

func TestTransitionKeepsGuestCartWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	f.store.failPuts = 100
	tr := NewTransition(f.svc, logger.Nop())

	guest := NewGuestCart(t0)
	guest.Add("p1", 2, t0)

	res := tr.Complete(context.Background(), uuid.New(), guest)
	assert.Error(t, res.Err)
	assert.False(t, res.GuestCleared)
	assert.Nil(t, res.Cart)
	assert.Equal(t, 2, guest.Quantity("p1"), "guest cart is left intact")
}

func TestTransitionMergesDamagedGuestCookieLines(t *testing.T) {
	f := newFixture(t)
	tr := NewTransition(f.svc, logger.Nop())
	ctx := context.Background()
	userID := uuid.New()

	guest := DecodeGuestOrEmpty(ctx, logger.Nop(), encodeRaw(`{"items":[{"itemId":"p1","quantity":0},{"itemId":"p2","quantity":-4}],"updatedAt":1}`), t0)
	require.Len(t, guest.Items, 2)

	res := tr.Complete(ctx, userID, guest)
	require.NoError(t, res.Err)
	assert.True(t, res.Merged)
	assert.True(t, res.GuestCleared)
	assert.Equal(t, []Line{{ItemID: "p1", Quantity: 1}, {ItemID: "p2", Quantity: 1}}, res.Cart.Items)

	stored, err := f.store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, res.Cart.Items, stored.Items)
}
