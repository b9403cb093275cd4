package service

import (
	"context"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// PaymentVerifier decides whether an online payment method may be marked paid
// at order creation. An online order must never be set paid without an
// explicit confirmation signal passing through this interface.
type PaymentVerifier interface {
	Verified(ctx context.Context, req *models.CheckoutRequest) (bool, error)
}

// ClientAssertedVerifier trusts the client's payment_processed flag.
//
// KNOWN GAP: this is a placeholder, not a pattern to copy. A client-supplied
// boolean is not a trusted confirmation signal; production deployments must
// replace this with a verifier that looks up the payment intent at the
// gateway (signature-checked webhook or server-side intent retrieval) before
// reporting true. The interface exists precisely so that swap is a one-line
// wiring change in main.
type ClientAssertedVerifier struct{}

func (ClientAssertedVerifier) Verified(_ context.Context, req *models.CheckoutRequest) (bool, error) {
	if req.PaymentProcessed {
		util.GetLogger().Warn("Marking order paid from client-asserted flag; no gateway verification performed",
			zap.String("payment_method", req.PaymentMethod),
			zap.String("transaction_id", req.TransactionID))
	}
	return req.PaymentProcessed, nil
}
