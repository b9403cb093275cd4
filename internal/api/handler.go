package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/cart"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"
	"checkout-service/internal/wooclient"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthUserKey is the gin context key under which the session middleware (out
// of scope here) stores the authenticated *models.User, if any.
const AuthUserKey = "auth.user"

// Handler contains HTTP handlers
type Handler struct {
	checkout    *service.CheckoutService
	requireCSRF bool
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutService, requireCSRF bool) *Handler {
	return &Handler{
		checkout:    checkout,
		requireCSRF: requireCSRF,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.createCheckout)
		v1.GET("/orders/:id", h.getOrder)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createCheckout handles the checkout attempt
func (h *Handler) createCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": validationErrorsToMap(err),
		})
		return
	}

	if err := h.verifyCSRF(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), &service.CheckoutInput{
		Request:  &req,
		ClientIP: clientIP(c),
		User:     authUser(c),
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	if resp.Duplicate {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"order":   resp.Order,
			"message": "Order already processed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"order":           resp.Order,
		"idempotency_key": resp.IdempotencyKey,
		"redirect_url":    resp.RedirectURL,
	})
}

// getOrder proxies an order read to the upstream commerce API
func (h *Handler) getOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.checkout.GetOrder(c.Request.Context(), id)
	if err != nil {
		var apiErr *wooclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// writeCheckoutError maps orchestrator failures onto the response contract:
// 400 for validation/cart/coupon, 409 for lock contention, the upstream's own
// status for known upstream failures, 500 otherwise.
func (h *Handler) writeCheckoutError(c *gin.Context, err error) {
	var (
		valErr    *service.ValidationError
		cartErr   *cart.InvalidCartError
		couponErr *cart.CouponError
		apiErr    *wooclient.APIError
	)

	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
	case errors.As(err, &cartErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": cartErr.Error()})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": couponErr.Error()})
	case errors.Is(err, service.ErrOrderLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is being processed. Please wait."})
	case errors.As(err, &apiErr):
		c.JSON(apiErr.StatusCode, gin.H{
			"error":   "Failed to create order",
			"details": apiErr.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create order",
			"details": err.Error(),
		})
	}
}

// verifyCSRF enforces the double-submit check: the x-csrf-token header must
// match the csrf-token cookie. Enforcement is config-driven so API-only
// deployments behind token auth can turn it off; when off, stray cookies from
// the storefront session are ignored.
func (h *Handler) verifyCSRF(c *gin.Context) error {
	if !h.requireCSRF {
		return nil
	}

	header := c.GetHeader("x-csrf-token")
	cookie, err := c.Cookie("csrf-token")
	if err != nil || cookie == "" || header != cookie {
		return errors.New("invalid CSRF token")
	}
	return nil
}

// clientIP extracts the customer IP from proxy headers in priority order.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("x-forwarded-for"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if ip := c.GetHeader("x-real-ip"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("cf-connecting-ip"); ip != "" {
		return ip
	}
	return "Unknown"
}

func authUser(c *gin.Context) *models.User {
	if v, ok := c.Get(AuthUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
