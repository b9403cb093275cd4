package models

import "time"

// Event types
const (
	EventTypeCheckoutCompleted = "CHECKOUT_COMPLETED"
	EventTypeCheckoutFailed    = "CHECKOUT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCompletedEvent published after an order is created upstream
type CheckoutCompletedEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	Status          string `json:"status"`
	Total           string `json:"total"`
	PaymentMethod   string `json:"payment_method"`
	Email           string `json:"email"`
	NewsletterOptIn bool   `json:"newsletter_opt_in"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// CheckoutFailedEvent published when a checkout attempt fails after passing
// validation
type CheckoutFailedEvent struct {
	BaseEvent
	PaymentMethod string `json:"payment_method"`
	Reason        string `json:"reason"`
}
