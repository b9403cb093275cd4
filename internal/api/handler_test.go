package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/internal/checkoutlock"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/wooclient"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReconciler struct{}

func (stubReconciler) Reconcile(_ context.Context, items []models.LineItem, _ string) (*models.ReconciledCart, error) {
	out := &models.ReconciledCart{}
	for _, it := range items {
		out.Items = append(out.Items, models.ReconciledItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return out, nil
}

type stubOrderAPI struct {
	createErr error
}

func (s *stubOrderAPI) CreateOrder(_ context.Context, payload *models.OrderPayload) (*models.OrderResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.OrderResult{ID: 42, OrderKey: "wc_order_xyz", Status: payload.Status}, nil
}

func (s *stubOrderAPI) GetOrder(_ context.Context, id int64) (*models.OrderResult, error) {
	if id == 404 {
		return nil, &wooclient.APIError{StatusCode: http.StatusNotFound, Message: "order not found"}
	}
	return &models.OrderResult{ID: id}, nil
}

func (s *stubOrderAPI) AppendNote(_ context.Context, _ int64, _ string) error { return nil }

type stubIdentity struct{}

func (stubIdentity) GetCustomerByEmail(_ context.Context, _ string) (*models.Customer, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, orders service.OrderAPI, locks checkoutlock.Registry, requireCSRF bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewCheckoutService(
		idempotency.NewMemoryStore(time.Hour),
		locks,
		stubReconciler{},
		orders,
		stubIdentity{},
		service.ClientAssertedVerifier{},
		nil,
		"https://shop.example.com",
	)

	router := gin.New()
	NewHandler(svc, requireCSRF).SetupRoutes(router)
	return router
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"billing": map[string]interface{}{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      "ada@example.com",
		},
		"payment_method": "cod",
		"line_items": []map[string]interface{}{
			{"product_id": 1, "quantity": 2},
		},
		"cart_total": 20,
	}
}

func postCheckout(router *gin.Engine, body interface{}, mutate func(*http.Request)) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckoutEndpointSuccess(t *testing.T) {
	router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)

	w := postCheckout(router, checkoutBody(), func(r *http.Request) {
		r.Header.Set("x-forwarded-for", "203.0.113.9, 10.0.0.1")
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success        bool               `json:"success"`
		Order          models.OrderResult `json:"order"`
		IdempotencyKey string             `json:"idempotency_key"`
		RedirectURL    string             `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(42), resp.Order.ID)
	assert.NotEmpty(t, resp.IdempotencyKey)
	assert.Contains(t, resp.RedirectURL, "order-received/42")
}

func TestCheckoutEndpointMissingEmail(t *testing.T) {
	router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)

	body := checkoutBody()
	body["billing"].(map[string]interface{})["email"] = ""

	w := postCheckout(router, body, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "billing.email")
}

func TestCheckoutEndpointDuplicate(t *testing.T) {
	router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)

	first := postCheckout(router, checkoutBody(), nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := postCheckout(router, checkoutBody(), nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "Order already processed")
}

func TestCheckoutEndpointLockContention(t *testing.T) {
	locks := checkoutlock.NewMemoryRegistry(time.Minute)
	router := newTestRouter(t, &stubOrderAPI{}, locks, false)

	body := checkoutBody()
	key := idempotency.ComputeKey([]models.LineItem{{ProductID: 1, Quantity: 2}}, 20)
	ok, err := locks.Acquire(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)

	w := postCheckout(router, body, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "being processed")
}

func TestCheckoutEndpointProxiesUpstreamStatus(t *testing.T) {
	orders := &stubOrderAPI{createErr: &wooclient.APIError{
		StatusCode: http.StatusPaymentRequired,
		Message:    "payment declined",
	}}
	router := newTestRouter(t, orders, checkoutlock.NewMemoryRegistry(time.Minute), false)

	w := postCheckout(router, checkoutBody(), nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "payment declined")
}

func TestCheckoutEndpointCSRF(t *testing.T) {
	router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), true)

	t.Run("missing token rejected", func(t *testing.T) {
		w := postCheckout(router, checkoutBody(), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "CSRF")
	})

	t.Run("mismatched token rejected", func(t *testing.T) {
		w := postCheckout(router, checkoutBody(), func(r *http.Request) {
			r.Header.Set("x-csrf-token", "aaa")
			r.AddCookie(&http.Cookie{Name: "csrf-token", Value: "bbb"})
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("matching token accepted", func(t *testing.T) {
		w := postCheckout(router, checkoutBody(), func(r *http.Request) {
			r.Header.Set("x-csrf-token", "tok-1")
			r.AddCookie(&http.Cookie{Name: "csrf-token", Value: "tok-1"})
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCheckoutEndpointCSRFDisabled(t *testing.T) {
	// Browsers attach the storefront's csrf-token cookie on their own; with
	// enforcement off a stray cookie or header must not block the checkout.
	t.Run("cookie without header accepted", func(t *testing.T) {
		router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)
		w := postCheckout(router, checkoutBody(), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "csrf-token", Value: "tok-1"})
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("header without cookie accepted", func(t *testing.T) {
		router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)
		w := postCheckout(router, checkoutBody(), func(r *http.Request) {
			r.Header.Set("x-csrf-token", "tok-1")
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("mismatched pair accepted", func(t *testing.T) {
		router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)
		w := postCheckout(router, checkoutBody(), func(r *http.Request) {
			r.Header.Set("x-csrf-token", "aaa")
			r.AddCookie(&http.Cookie{Name: "csrf-token", Value: "bbb"})
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetOrderEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubOrderAPI{}, checkoutlock.NewMemoryRegistry(time.Minute), false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/404", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClientIPPriority(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded-for first hop", map[string]string{"x-forwarded-for": "198.51.100.7, 10.0.0.1"}, "198.51.100.7"},
		{"real-ip fallback", map[string]string{"x-real-ip": "198.51.100.8"}, "198.51.100.8"},
		{"cdn fallback", map[string]string{"cf-connecting-ip": "198.51.100.9"}, "198.51.100.9"},
		{"forwarded-for wins over others", map[string]string{
			"x-forwarded-for":  "198.51.100.7",
			"x-real-ip":        "198.51.100.8",
			"cf-connecting-ip": "198.51.100.9",
		}, "198.51.100.7"},
		{"nothing present", nil, "Unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(c))
		})
	}
}
