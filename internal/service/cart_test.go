package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tshop/backend/internal/models"
)

func TestCartService_AddToCart_Validation(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	product := seedProduct(t, r.DB, "keyboard", 49.90)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, user.ID, 0, 1)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddToCart(ctx, user.ID, product.ID, 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddToCart(ctx, user.ID, product.ID, 100)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddToCart(ctx, user.ID, 9999, 1)
	require.ErrorIs(t, err, ErrNotFound)

	item, err := svc.AddToCart(ctx, user.ID, product.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, uint(99), item.Quantity)
}

func TestCartService_AddToCart_MergesQuantity(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	product := seedProduct(t, r.DB, "mouse", 19.99)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	view, err := svc.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, uint(5), view.Items[0].Quantity)
}

func TestCartService_RemoveFromCart_FloorsAtZero(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	product := seedProduct(t, r.DB, "cable", 4.50)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	deleted, item, err := svc.RemoveFromCart(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, uint(1), item.Quantity)

	// removing more than remains deletes the row instead of going negative
	deleted, _, err = svc.RemoveFromCart(ctx, user.ID, product.ID, 5)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.GetCart(ctx, user.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCartService_Total(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	book := seedProduct(t, r.DB, "book", 10.00)
	pen := seedProduct(t, r.DB, "pen", 2.75)
	ctx := context.Background()

	fillCart(t, r, user.ID, map[uint]uint{book.ID: 2, pen.ID: 3})

	totals, err := svc.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 28.25, totals.TotalDecimal, 0.001)
	assert.Equal(t, "28.25", totals.Formatted)
}

func TestCartService_Total_EmptyCartIsZero(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)

	totals, err := svc.Total(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalDecimal)
	assert.Equal(t, "0.00", totals.Formatted)
}

func TestCartService_Total_MalformedRowContributesZero(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	good := seedProduct(t, r.DB, "good", 10.00)
	bad := seedProduct(t, r.DB, "bad", 5.00)
	ctx := context.Background()

	fillCart(t, r, user.ID, map[uint]uint{good.ID: 1, bad.ID: 1})

	// corrupt one price directly, bypassing the service
	require.NoError(t, r.DB.Model(&models.Product{}).Where("id = ?", bad.ID).Update("price", -3.0).Error)

	totals, err := svc.Total(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10.00, totals.TotalDecimal, 0.001)
}

func TestCartService_ClearCart(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	user := seedUser(t, r.DB)
	product := seedProduct(t, r.DB, "lamp", 30.00)
	ctx := context.Background()

	fillCart(t, r, user.ID, map[uint]uint{product.ID: 2})
	require.NoError(t, svc.ClearCart(ctx, user.ID))

	_, err := svc.GetCart(ctx, user.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
