package cart

import (
	"context"
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products   map[int64]*models.Product
	variations map[int64]map[int64]*models.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return f.products[id], nil
}

func (f *fakeCatalog) GetVariation(_ context.Context, productID, variationID int64) (*models.Product, error) {
	if vs, ok := f.variations[productID]; ok {
		return vs[variationID], nil
	}
	return nil, nil
}

type fakeCoupons struct {
	coupons map[string]*models.Coupon
}

func (f *fakeCoupons) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	return f.coupons[code], nil
}

func newTestReconciler() (*Reconciler, *fakeCatalog, *fakeCoupons) {
	catalog := &fakeCatalog{
		products: map[int64]*models.Product{
			1: {ID: 1, Name: "Walker", SKU: "WLK-1", Price: 100, InStock: true, CategoryIDs: []int64{5}},
			2: {ID: 2, Name: "Cushion", SKU: "CSH-2", Price: 50, InStock: true, OnSale: true, CategoryIDs: []int64{6}},
			3: {ID: 3, Name: "Rail", SKU: "RL-3", Price: 25, InStock: false},
		},
		variations: map[int64]map[int64]*models.Product{
			1: {11: {ID: 11, Name: "Walker - Tall", SKU: "WLK-1-T", Price: 120, InStock: true}},
		},
	}
	coupons := &fakeCoupons{coupons: map[string]*models.Coupon{}}
	return NewReconciler(catalog, coupons), catalog, coupons
}

func TestReconcileUsesCatalogPrices(t *testing.T) {
	r, _, _ := newTestReconciler()

	// client claims a tampered price of 1.00
	cart, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, Quantity: 2, Price: 1.00},
	}, "")
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 100.0, cart.Items[0].VerifiedPrice)
	assert.Equal(t, 200.0, cart.Subtotal)
}

func TestReconcileUnknownProduct(t *testing.T) {
	r, _, _ := newTestReconciler()

	_, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 999, Quantity: 1},
	}, "")

	var invalid *InvalidCartError
	require.ErrorAs(t, err, &invalid)
}

func TestReconcileOutOfStock(t *testing.T) {
	r, _, _ := newTestReconciler()

	_, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 3, Quantity: 1},
	}, "")

	var invalid *InvalidCartError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "out of stock")
}

func TestReconcileFabricatedVariation(t *testing.T) {
	r, _, _ := newTestReconciler()

	_, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, VariationID: 999, Quantity: 1},
	}, "")

	var invalid *InvalidCartError
	require.ErrorAs(t, err, &invalid)
}

func TestReconcileVariationPriceWins(t *testing.T) {
	r, _, _ := newTestReconciler()

	cart, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, VariationID: 11, Quantity: 1},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, 120.0, cart.Items[0].VerifiedPrice)
	// variation inherits the parent's categories
	assert.Equal(t, []int64{5}, cart.Items[0].CategoryIDs)
}

func TestReconcileMixedCartSubtotal(t *testing.T) {
	r, _, _ := newTestReconciler()

	cart, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 3},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, 250.0, cart.Subtotal)
	assert.Nil(t, cart.CouponApplied)
	assert.Zero(t, cart.Discount)
}

func TestReconcileAppliesCoupon(t *testing.T) {
	r, _, coupons := newTestReconciler()
	coupons.coupons["SAVE10"] = &models.Coupon{
		Code:         "SAVE10",
		Status:       "publish",
		Amount:       10,
		DiscountType: models.DiscountTypePercent,
	}

	cart, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, Quantity: 2},
	}, "SAVE10")
	require.NoError(t, err)

	require.NotNil(t, cart.CouponApplied)
	assert.Equal(t, "SAVE10", cart.CouponApplied.Code)
	assert.Equal(t, 20.0, cart.Discount)
}

func TestReconcileRejectsUnknownCoupon(t *testing.T) {
	r, _, _ := newTestReconciler()

	_, err := r.Reconcile(context.Background(), []models.LineItem{
		{ProductID: 1, Quantity: 1},
	}, "NOPE")

	var couponErr *CouponError
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "NOPE", couponErr.Code)
}
