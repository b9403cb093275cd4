// Package wooclient is the HTTP client for the upstream WooCommerce REST API.
// It owns wire-format concerns (decimal strings, stock_status enums) and
// returns the typed models the core consumes.
package wooclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// APIError carries the upstream's own status and message so the boundary can
// proxy a known upstream failure instead of a generic 500.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a client for the given store. timeout bounds every call,
// including order submission; the order lock is released by the orchestrator
// when a call times out.
func NewClient(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:        baseURL,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         util.GetLogger(),
	}
}

// wire DTOs: WooCommerce serializes money as decimal strings.

type wireProduct struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	SKU         string       `json:"sku"`
	Price       string       `json:"price"`
	OnSale      bool         `json:"on_sale"`
	StockStatus string       `json:"stock_status"`
	Categories  []wireIDName `json:"categories"`
}

type wireIDName struct {
	ID int64 `json:"id"`
}

type wireCoupon struct {
	ID                        int64   `json:"id"`
	Code                      string  `json:"code"`
	Status                    string  `json:"status"`
	Amount                    string  `json:"amount"`
	DiscountType              string  `json:"discount_type"`
	DateExpires               string  `json:"date_expires_gmt"`
	UsageLimit                int     `json:"usage_limit"`
	UsageCount                int     `json:"usage_count"`
	MinimumAmount             string  `json:"minimum_amount"`
	MaximumAmount             string  `json:"maximum_amount"`
	ProductIDs                []int64 `json:"product_ids"`
	ExcludedProductIDs        []int64 `json:"excluded_product_ids"`
	ProductCategories         []int64 `json:"product_categories"`
	ExcludedProductCategories []int64 `json:"excluded_product_categories"`
	ExcludeSaleItems          bool    `json:"exclude_sale_items"`
}

// GetProduct fetches a product by id. Returns (nil, nil) when the catalog has
// no such product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var wp wireProduct
	found, err := c.get(ctx, fmt.Sprintf("/wp-json/wc/v3/products/%d", id), nil, "get_product", &wp)
	if err != nil || !found {
		return nil, err
	}
	return toProduct(&wp), nil
}

// GetVariation fetches a variation of a product. Returns (nil, nil) when the
// variation does not exist under that product.
func (c *Client) GetVariation(ctx context.Context, productID, variationID int64) (*models.Product, error) {
	var wp wireProduct
	path := fmt.Sprintf("/wp-json/wc/v3/products/%d/variations/%d", productID, variationID)
	found, err := c.get(ctx, path, nil, "get_variation", &wp)
	if err != nil || !found {
		return nil, err
	}
	return toProduct(&wp), nil
}

// GetCouponByCode fetches a coupon definition by its code. Returns (nil, nil)
// when the code resolves to nothing.
func (c *Client) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupons []wireCoupon
	q := url.Values{"code": {code}}
	found, err := c.get(ctx, "/wp-json/wc/v3/coupons", q, "get_coupon", &coupons)
	if err != nil {
		return nil, err
	}
	if !found || len(coupons) == 0 {
		return nil, nil
	}
	return toCoupon(&coupons[0]), nil
}

// CreateOrder submits the assembled order payload.
func (c *Client) CreateOrder(ctx context.Context, payload *models.OrderPayload) (*models.OrderResult, error) {
	var result models.OrderResult
	if err := c.post(ctx, "/wp-json/wc/v3/orders", payload, "create_order", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrder fetches an order back from the upstream API.
func (c *Client) GetOrder(ctx context.Context, id int64) (*models.OrderResult, error) {
	var result models.OrderResult
	found, err := c.get(ctx, fmt.Sprintf("/wp-json/wc/v3/orders/%d", id), nil, "get_order", &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("order %d not found", id)}
	}
	return &result, nil
}

// AppendNote records an order note. The caller treats failure as non-fatal.
func (c *Client) AppendNote(ctx context.Context, orderID int64, note string) error {
	body := map[string]string{"note": note}
	path := fmt.Sprintf("/wp-json/wc/v3/orders/%d/notes", orderID)
	return c.post(ctx, path, body, "append_note", nil)
}

// GetCustomerByEmail looks up the commerce customer record for an email.
// Returns (nil, nil) when no customer matches.
func (c *Client) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customers []models.Customer
	q := url.Values{"email": {email}}
	found, err := c.get(ctx, "/wp-json/wc/v3/customers", q, "get_customer", &customers)
	if err != nil {
		return nil, err
	}
	if !found || len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// get performs an authenticated GET. Returns found=false on 404 instead of an
// error, since absence is a valid outcome for catalog lookups.
func (c *Client) get(ctx context.Context, path string, query url.Values, op string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.do(req, op)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, c.apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", op, err)
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, op string, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return c.apiError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error("Upstream request failed",
			zap.String("operation", op),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// apiError extracts the upstream's message body, falling back to the status
// text when the body is not the usual {code,message} shape.
func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Message string `json:"message"`
	}
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		msg = wire.Message
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func toProduct(wp *wireProduct) *models.Product {
	price, _ := strconv.ParseFloat(wp.Price, 64)
	cats := make([]int64, 0, len(wp.Categories))
	for _, c := range wp.Categories {
		cats = append(cats, c.ID)
	}
	return &models.Product{
		ID:          wp.ID,
		Name:        wp.Name,
		SKU:         wp.SKU,
		Price:       price,
		OnSale:      wp.OnSale,
		InStock:     wp.StockStatus == "instock",
		CategoryIDs: cats,
	}
}

func toCoupon(wc *wireCoupon) *models.Coupon {
	amount, _ := strconv.ParseFloat(wc.Amount, 64)
	minAmount, _ := strconv.ParseFloat(wc.MinimumAmount, 64)
	maxAmount, _ := strconv.ParseFloat(wc.MaximumAmount, 64)

	coupon := &models.Coupon{
		ID:                        wc.ID,
		Code:                      wc.Code,
		Status:                    wc.Status,
		Amount:                    amount,
		DiscountType:              wc.DiscountType,
		UsageLimit:                wc.UsageLimit,
		UsageCount:                wc.UsageCount,
		MinimumAmount:             minAmount,
		MaximumAmount:             maxAmount,
		ProductIDs:                wc.ProductIDs,
		ExcludedProductIDs:        wc.ExcludedProductIDs,
		ProductCategories:         wc.ProductCategories,
		ExcludedProductCategories: wc.ExcludedProductCategories,
		ExcludeSaleItems:          wc.ExcludeSaleItems,
	}

	if wc.DateExpires != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", wc.DateExpires); err == nil {
			coupon.DateExpires = &t
		}
	}
	return coupon
}
