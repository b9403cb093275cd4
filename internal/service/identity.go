package service

import (
	"context"

	"checkout-service/internal/models"

	"go.uber.org/zap"
)

// IdentitySource is the commerce-customer lookup collaborator.
type IdentitySource interface {
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
}

// customerResolver is one strategy in the identity fallback chain. A false
// second return means "try the next strategy"; failure of any strategy is
// non-fatal.
type customerResolver func(ctx context.Context, user *models.User) (int64, bool)

// resolveCustomerID walks the resolver chain in order. Absence of identity is
// not an error: the order proceeds as a guest order with id 0.
func (s *CheckoutService) resolveCustomerID(ctx context.Context, user *models.User) int64 {
	if user == nil {
		return 0
	}
	for _, resolve := range s.resolvers {
		if id, ok := resolve(ctx, user); ok {
			return id
		}
	}
	return 0
}

// byCustomerRecord resolves through the upstream customer record for the
// session email.
func (s *CheckoutService) byCustomerRecord(ctx context.Context, user *models.User) (int64, bool) {
	if user.Email == "" {
		return 0, false
	}
	customer, err := s.identity.GetCustomerByEmail(ctx, user.Email)
	if err != nil {
		s.logger.Warn("Customer lookup failed, falling back",
			zap.String("email", user.Email),
			zap.Error(err))
		return 0, false
	}
	if customer == nil {
		return 0, false
	}
	return customer.ID, true
}

// byRawUserID falls back to the session's own user id.
func (s *CheckoutService) byRawUserID(_ context.Context, user *models.User) (int64, bool) {
	if user.ID == 0 {
		return 0, false
	}
	return user.ID, true
}
