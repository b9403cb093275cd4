package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total number of checkout attempts accepted past validation",
	})

	CheckoutCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_completed_total",
		Help: "Total number of checkouts that created an upstream order",
	})

	CheckoutDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_duplicate_total",
		Help: "Total number of checkouts short-circuited by the idempotency store",
	})

	CheckoutLockContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_lock_contention_total",
		Help: "Total number of checkouts rejected because the order lock was held",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CartReconciliationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconciliation_failures_total",
		Help: "Total number of carts rejected during reconciliation",
	}, []string{"reason"})

	CouponRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_rejected_total",
		Help: "Total number of coupon codes rejected",
	}, []string{"reason"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latency of upstream commerce API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	AuditNoteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_note_failures_total",
		Help: "Total number of audit note appends that failed after order creation",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
