// Package cart revalidates client-submitted carts against the authoritative
// catalog. Quantities and ids are taken from the request; prices never are.
package cart

import (
	"context"
	"fmt"
	"math"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Catalog is the authoritative product/pricing collaborator.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetVariation(ctx context.Context, productID, variationID int64) (*models.Product, error)
}

// InvalidCartError signals that the submitted cart cannot be honored: an item
// is unknown, out of stock, or carries a fabricated variation id.
type InvalidCartError struct {
	Reason string
}

func (e *InvalidCartError) Error() string {
	return "invalid cart: " + e.Reason
}

// Reconciler rebuilds an authoritative view of the cart per request.
type Reconciler struct {
	catalog Catalog
	coupons CouponSource
	logger  *zap.Logger
}

func NewReconciler(catalog Catalog, coupons CouponSource) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		coupons: coupons,
		logger:  util.GetLogger(),
	}
}

// Reconcile verifies every line item against the catalog and validates the
// coupon, if any, against the verified items. The result is ephemeral; it is
// consumed immediately by order assembly and never persisted.
func (r *Reconciler) Reconcile(ctx context.Context, items []models.LineItem, couponCode string) (*models.ReconciledCart, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	verified := make([]models.ReconciledItem, 0, len(items))
	var subtotal float64

	for _, item := range items {
		product, err := r.resolve(ctx, item)
		if err != nil {
			return nil, err
		}

		if !product.InStock {
			util.CartReconciliationFailures.WithLabelValues("out_of_stock").Inc()
			return nil, &InvalidCartError{Reason: fmt.Sprintf("product %d is out of stock", item.ProductID)}
		}

		if item.Price != 0 && item.Price != product.Price {
			r.logger.Warn("Client price differs from catalog, using catalog price",
				zap.Int64("product_id", item.ProductID),
				zap.Float64("client_price", item.Price),
				zap.Float64("catalog_price", product.Price))
		}

		verified = append(verified, models.ReconciledItem{
			ProductID:     item.ProductID,
			VariationID:   item.VariationID,
			Quantity:      item.Quantity,
			VerifiedPrice: product.Price,
			Name:          product.Name,
			SKU:           product.SKU,
			OnSale:        product.OnSale,
			CategoryIDs:   product.CategoryIDs,
		})
		subtotal += product.Price * float64(item.Quantity)
	}

	cart := &models.ReconciledCart{
		Items:    verified,
		Subtotal: round2(subtotal),
	}

	if couponCode != "" {
		coupon, discount, err := r.validateCoupon(ctx, couponCode, cart)
		if err != nil {
			return nil, err
		}
		cart.CouponApplied = coupon
		cart.Discount = discount
	}

	return cart, nil
}

// resolve looks up the line item's product, following the variation when one
// is declared. A variation id the catalog does not recognize for this product
// invalidates the whole cart.
func (r *Reconciler) resolve(ctx context.Context, item models.LineItem) (*models.Product, error) {
	product, err := r.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup for product %d: %w", item.ProductID, err)
	}
	if product == nil {
		util.CartReconciliationFailures.WithLabelValues("unknown_product").Inc()
		return nil, &InvalidCartError{Reason: fmt.Sprintf("product %d not found", item.ProductID)}
	}

	if item.VariationID == 0 {
		return product, nil
	}

	variation, err := r.catalog.GetVariation(ctx, item.ProductID, item.VariationID)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup for variation %d/%d: %w", item.ProductID, item.VariationID, err)
	}
	if variation == nil {
		util.CartReconciliationFailures.WithLabelValues("invalid_variation").Inc()
		return nil, &InvalidCartError{Reason: fmt.Sprintf("variation %d does not belong to product %d", item.VariationID, item.ProductID)}
	}

	// variations inherit the parent's categories for coupon applicability
	if len(variation.CategoryIDs) == 0 {
		variation.CategoryIDs = product.CategoryIDs
	}
	return variation, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
