package service

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/checkoutlock"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartReconciler revalidates a submitted cart against the catalog.
type CartReconciler interface {
	Reconcile(ctx context.Context, items []models.LineItem, couponCode string) (*models.ReconciledCart, error)
}

// OrderAPI is the upstream order-creation collaborator.
type OrderAPI interface {
	CreateOrder(ctx context.Context, payload *models.OrderPayload) (*models.OrderResult, error)
	GetOrder(ctx context.Context, id int64) (*models.OrderResult, error)
	AppendNote(ctx context.Context, orderID int64, note string) error
}

// EventPublisher emits checkout lifecycle events. Publishing is best effort
// and never affects the checkout outcome.
type EventPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error
	PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error
}

// CheckoutInput carries the validated request plus connection metadata the
// handler extracted.
type CheckoutInput struct {
	Request  *models.CheckoutRequest
	ClientIP string
	User     *models.User
}

// CheckoutResponse is the outcome returned to the HTTP layer.
type CheckoutResponse struct {
	Order          *models.OrderResult
	IdempotencyKey string
	RedirectURL    string
	Duplicate      bool
}

// CheckoutService orchestrates a checkout attempt: idempotency check, order
// lock, cart reconciliation, order assembly and submission.
type CheckoutService struct {
	idem       idempotency.Store
	locks      checkoutlock.Registry
	reconciler CartReconciler
	orders     OrderAPI
	identity   IdentitySource
	verifier   PaymentVerifier
	events     EventPublisher
	resolvers  []customerResolver

	redirectBase string
	logger       *zap.Logger
}

// NewCheckoutService wires the orchestrator. events may be nil when no broker
// is configured.
func NewCheckoutService(
	idem idempotency.Store,
	locks checkoutlock.Registry,
	reconciler CartReconciler,
	orders OrderAPI,
	identity IdentitySource,
	verifier PaymentVerifier,
	events EventPublisher,
	redirectBase string,
) *CheckoutService {
	s := &CheckoutService{
		idem:         idem,
		locks:        locks,
		reconciler:   reconciler,
		orders:       orders,
		identity:     identity,
		verifier:     verifier,
		events:       events,
		redirectBase: redirectBase,
		logger:       util.GetLogger(),
	}
	s.resolvers = []customerResolver{s.byCustomerRecord, s.byRawUserID}
	return s
}

// Checkout runs one checkout attempt end to end. The order lock is released
// on every path once acquired, including upstream timeouts.
func (s *CheckoutService) Checkout(ctx context.Context, in *CheckoutInput) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	req := in.Request
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	util.CheckoutAttemptsTotal.Inc()

	key := req.IdempotencyKey
	if key == "" {
		key = idempotency.ComputeKey(req.LineItems, req.CartTotal)
	}

	if dup, cached, err := s.idem.Check(ctx, key); err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	} else if dup {
		util.CheckoutDuplicateTotal.Inc()
		s.logger.Info("Duplicate checkout suppressed",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", cached.ID))
		return &CheckoutResponse{Order: cached, IdempotencyKey: key, Duplicate: true}, nil
	}

	acquired, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	if !acquired {
		util.CheckoutLockContentionTotal.Inc()
		return nil, ErrOrderLocked
	}
	// Release on every path. A detached context keeps release working even
	// when the request context was cancelled mid-flight.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, key); err != nil {
			s.logger.Error("Failed to release order lock",
				zap.String("idempotency_key", key),
				zap.Error(err))
		}
	}()

	cart, err := s.reconciler.Reconcile(ctx, req.LineItems, req.CouponCode)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("reconciliation").Inc()
		s.publishFailed(req.PaymentMethod, err)
		return nil, err
	}

	result, err := s.submitOrder(ctx, in, cart, key)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("upstream").Inc()
		s.publishFailed(req.PaymentMethod, err)
		return nil, err
	}

	if err := s.idem.Put(ctx, key, result); err != nil {
		// the order exists upstream; a failed cache write only weakens
		// duplicate suppression for this key
		s.logger.Error("Failed to store idempotency record",
			zap.String("idempotency_key", key),
			zap.Error(err))
	}

	util.CheckoutCompletedTotal.Inc()
	s.publishCompleted(req, result, key)

	return &CheckoutResponse{
		Order:          result,
		IdempotencyKey: key,
		RedirectURL:    fmt.Sprintf("%s/checkout/order-received/%d/?key=%s", s.redirectBase, result.ID, result.OrderKey),
	}, nil
}

// submitOrder assembles the payload from the reconciled cart and submits it,
// then appends the audit note best-effort.
func (s *CheckoutService) submitOrder(ctx context.Context, in *CheckoutInput, cart *models.ReconciledCart, key string) (*models.OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.submitOrder")
	defer span.End()

	req := in.Request

	paid := false
	if isOnlineMethod(req.PaymentMethod) {
		verified, err := s.verifier.Verified(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("payment verification: %w", err)
		}
		paid = verified
	}
	status, setPaid := DeriveStatus(req.PaymentMethod, paid)

	payload := &models.OrderPayload{
		PaymentMethod:      req.PaymentMethod,
		PaymentMethodTitle: PaymentMethodTitle(req.PaymentMethod),
		Status:             status,
		SetPaid:            setPaid,
		CustomerID:         s.resolveCustomerID(ctx, in.User),
		CustomerIP:         in.ClientIP,
		Billing:            req.Billing,
		Shipping:           shippingAddress(req),
		LineItems:          payloadItems(cart),
		ShippingLines:      payloadShipping(req.ShippingLines),
		MetaData:           buildMetadata(req, key),
	}
	if cart.CouponApplied != nil {
		payload.CouponLines = []models.CouponLine{{Code: cart.CouponApplied.Code}}
	}

	result, err := s.orders.CreateOrder(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", result.ID),
		zap.String("status", result.Status),
		zap.String("payment_method", req.PaymentMethod))

	note := auditNote(req, setPaid)
	if err := s.orders.AppendNote(ctx, result.ID, note); err != nil {
		// the order is already real; a missing note never fails the checkout
		util.AuditNoteFailuresTotal.Inc()
		s.logger.Error("Failed to append audit note",
			zap.Int64("order_id", result.ID),
			zap.Error(err))
	}

	return result, nil
}

// GetOrder proxies an order read to the upstream API.
func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*models.OrderResult, error) {
	return s.orders.GetOrder(ctx, id)
}

// DeriveStatus maps a payment method and confirmation state onto the order
// status and set_paid flag at creation time.
func DeriveStatus(method string, paymentConfirmed bool) (status string, setPaid bool) {
	switch method {
	case models.PaymentMethodCOD:
		return models.OrderStatusProcessing, false
	case models.PaymentMethodBACS, models.PaymentMethodBankTransfer, models.PaymentMethodCheque:
		return models.OrderStatusPending, false
	default:
		if paymentConfirmed {
			return models.OrderStatusProcessing, true
		}
		return models.OrderStatusPending, false
	}
}

func isOnlineMethod(method string) bool {
	switch method {
	case models.PaymentMethodCOD, models.PaymentMethodBACS, models.PaymentMethodBankTransfer, models.PaymentMethodCheque:
		return false
	default:
		return true
	}
}

// PaymentMethodTitle returns the display title for a payment method id.
func PaymentMethodTitle(method string) string {
	switch method {
	case models.PaymentMethodCOD:
		return "Cash on Delivery"
	case models.PaymentMethodBACS, models.PaymentMethodBankTransfer:
		return "Direct Bank Transfer"
	case models.PaymentMethodCheque:
		return "Cheque Payment"
	case "paypal":
		return "PayPal"
	case "stripe":
		return "Credit Card (Stripe)"
	default:
		return method
	}
}

// validateRequest gates the request before any lock or side effect.
func validateRequest(req *models.CheckoutRequest) error {
	switch {
	case req.Billing.Email == "":
		return &ValidationError{Field: "billing.email", Message: "is required"}
	case req.Billing.FirstName == "":
		return &ValidationError{Field: "billing.first_name", Message: "is required"}
	case req.Billing.LastName == "":
		return &ValidationError{Field: "billing.last_name", Message: "is required"}
	case req.PaymentMethod == "":
		return &ValidationError{Field: "payment_method", Message: "is required"}
	case len(req.LineItems) == 0:
		return &ValidationError{Field: "line_items", Message: "must not be empty"}
	}
	for i, item := range req.LineItems {
		if item.ProductID == 0 || item.Quantity < 1 {
			return &ValidationError{
				Field:   fmt.Sprintf("line_items[%d]", i),
				Message: "needs a product id and a positive quantity",
			}
		}
	}
	return nil
}

// buildMetadata appends the domain fields present on the request plus the
// idempotency key for traceability.
func buildMetadata(req *models.CheckoutRequest, key string) []models.MetaEntry {
	meta := make([]models.MetaEntry, 0, 6)
	if req.NDISNumber != "" {
		meta = append(meta, models.MetaEntry{Key: "ndis_number", Value: req.NDISNumber})
	}
	if req.HCPNumber != "" {
		meta = append(meta, models.MetaEntry{Key: "hcp_number", Value: req.HCPNumber})
	}
	if req.DeliveryAuthority != "" {
		meta = append(meta, models.MetaEntry{Key: "delivery_authority", Value: models.DeliveryAuthorityLabel(req.DeliveryAuthority)})
	}
	if req.DeliveryInstructions != "" {
		meta = append(meta, models.MetaEntry{Key: "delivery_instructions", Value: req.DeliveryInstructions})
	}
	if req.NewsletterOptIn {
		meta = append(meta, models.MetaEntry{Key: "newsletter_opt_in", Value: "yes"})
	}
	meta = append(meta, models.MetaEntry{Key: "idempotency_key", Value: key})
	return meta
}

func shippingAddress(req *models.CheckoutRequest) models.Address {
	if req.Shipping != nil {
		return *req.Shipping
	}
	return req.Billing
}

func payloadItems(cart *models.ReconciledCart) []models.PayloadLineItem {
	items := make([]models.PayloadLineItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, models.PayloadLineItem{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
		})
	}
	return items
}

func payloadShipping(lines []models.ShippingLine) []models.PayloadShippingLine {
	out := make([]models.PayloadShippingLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.PayloadShippingLine{
			MethodID:    l.MethodID,
			MethodTitle: l.MethodTitle,
			Total:       fmt.Sprintf("%.2f", l.Total),
		})
	}
	return out
}

func auditNote(req *models.CheckoutRequest, setPaid bool) string {
	paymentState := "awaiting payment"
	if setPaid {
		paymentState = "paid"
	}
	note := fmt.Sprintf("Checkout via headless storefront. Payment: %s (%s)",
		PaymentMethodTitle(req.PaymentMethod), paymentState)
	if req.TransactionID != "" {
		note += fmt.Sprintf(", txn %s", req.TransactionID)
	}
	note += fmt.Sprintf(", at %s", time.Now().UTC().Format(time.RFC3339))
	return note
}

func (s *CheckoutService) publishCompleted(req *models.CheckoutRequest, result *models.OrderResult, key string) {
	if s.events == nil {
		return
	}
	event := &models.CheckoutCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutCompleted,
			Timestamp: time.Now(),
		},
		OrderID:         result.ID,
		Status:          result.Status,
		Total:           result.Total,
		PaymentMethod:   req.PaymentMethod,
		Email:           req.Billing.Email,
		NewsletterOptIn: req.NewsletterOptIn,
		IdempotencyKey:  key,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishCheckoutCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutCompleted event", zap.Error(err))
	}
}

func (s *CheckoutService) publishFailed(paymentMethod string, cause error) {
	if s.events == nil {
		return
	}
	event := &models.CheckoutFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutFailed,
			Timestamp: time.Now(),
		},
		PaymentMethod: paymentMethod,
		Reason:        cause.Error(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.events.PublishCheckoutFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutFailed event", zap.Error(err))
	}
}
