package cart

import (
	"context"
	"fmt"
	"math"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// CouponSource is the authoritative coupon collaborator.
type CouponSource interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// CouponError signals a coupon that exists but cannot be applied to this cart,
// or a code that resolves to nothing.
type CouponError struct {
	Code   string
	Reason string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}

// validateCoupon checks the code against status, expiry, usage limit and
// minimum spend, then computes the discount over the applicable items.
func (r *Reconciler) validateCoupon(ctx context.Context, code string, cart *models.ReconciledCart) (*models.Coupon, float64, error) {
	coupon, err := r.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, 0, fmt.Errorf("coupon lookup for %q: %w", code, err)
	}
	if coupon == nil {
		return nil, 0, rejected(code, "not_found", "code does not exist")
	}

	if coupon.Status != "publish" {
		return nil, 0, rejected(code, "unpublished", "coupon is not published")
	}
	if coupon.DateExpires != nil && coupon.DateExpires.Before(time.Now()) {
		return nil, 0, rejected(code, "expired", "coupon has expired")
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return nil, 0, rejected(code, "usage_limit", "coupon usage limit reached")
	}
	if coupon.MinimumAmount > 0 && cart.Subtotal < coupon.MinimumAmount {
		return nil, 0, rejected(code, "minimum_amount",
			fmt.Sprintf("order total below minimum spend of %.2f", coupon.MinimumAmount))
	}

	discount := ComputeDiscount(coupon, cart.Items)
	return coupon, discount, nil
}

// ComputeDiscount applies the coupon's discount type over the applicable
// subset of items. The result never exceeds the applicable subtotal.
func ComputeDiscount(coupon *models.Coupon, items []models.ReconciledItem) float64 {
	applicable := applicableItems(coupon, items)
	if len(applicable) == 0 {
		return 0
	}

	var base float64
	for _, it := range applicable {
		base += it.VerifiedPrice * float64(it.Quantity)
	}

	var discount float64
	switch coupon.DiscountType {
	case models.DiscountTypePercent:
		discount = base * coupon.Amount / 100
		if coupon.MaximumAmount > 0 && discount > coupon.MaximumAmount {
			discount = coupon.MaximumAmount
		}
	case models.DiscountTypeFixedCart:
		discount = coupon.Amount
	case models.DiscountTypeFixedProduct:
		for _, it := range applicable {
			lineTotal := it.VerifiedPrice * float64(it.Quantity)
			discount += math.Min(coupon.Amount*float64(it.Quantity), lineTotal)
		}
	default:
		return 0
	}

	if discount > base {
		discount = base
	}
	return round2(discount)
}

// applicableItems narrows the cart to the items the coupon covers: the
// product inclusion list intersected with exclusions, category filters, and
// the sale-item exclusion.
func applicableItems(coupon *models.Coupon, items []models.ReconciledItem) []models.ReconciledItem {
	out := make([]models.ReconciledItem, 0, len(items))
	for _, it := range items {
		if coupon.ExcludeSaleItems && it.OnSale {
			continue
		}
		if len(coupon.ProductIDs) > 0 && !containsID(coupon.ProductIDs, it.ProductID) {
			continue
		}
		if containsID(coupon.ExcludedProductIDs, it.ProductID) {
			continue
		}
		if len(coupon.ProductCategories) > 0 && !intersects(coupon.ProductCategories, it.CategoryIDs) {
			continue
		}
		if intersects(coupon.ExcludedProductCategories, it.CategoryIDs) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func rejected(code, metric, reason string) *CouponError {
	util.CouponRejectedTotal.WithLabelValues(metric).Inc()
	return &CouponError{Code: code, Reason: reason}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []int64) bool {
	for _, v := range a {
		if containsID(b, v) {
			return true
		}
	}
	return false
}
