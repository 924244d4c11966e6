package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tshop/backend/internal/payment"
)

const (
	sandboxBase = "https://api-m.sandbox.paypal.com"
	liveBase    = "https://api-m.paypal.com"

	// provider reports captures and orders as COMPLETED on success
	statusCompleted = "COMPLETED"

	tokenExpirySlack = time.Minute
)

type Config struct {
	ClientID     string
	ClientSecret string
	Environment  string // "sandbox" or "live"
	Currency     string
	BrandName    string
	BaseURL      string // overrides Environment when set, used by tests
}

// Client talks to the PayPal REST API. The OAuth client-credentials token is
// cached in memory with expiry; concurrent callers share one in-flight fetch.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	sf       singleflight.Group

	now func() time.Time
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Environment == "live" {
			base = liveBase
		} else {
			base = sandboxBase
		}
	}
	return &Client{
		cfg:     cfg,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
}

func (c *Client) Name() string { return "paypal" }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AccessToken returns the cached OAuth token, fetching a fresh one when the
// cache is empty or expired. Concurrent refreshes collapse into one request.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("oauth_token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", payment.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: token request returned %d: %s", payment.ErrUnavailable, resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", payment.ErrUnavailable)
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.tokenExp = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySlack)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type Order struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []Capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

type ShippingAddress struct {
	FullName   string
	Street     string
	City       string
	Country    string
	PostalCode string
}

// CreateOrder creates a provider order sized to amount. The request carries a
// PayPal-Request-Id derived from the user and the current time so provider-side
// retries do not duplicate the payment object.
func (c *Client) CreateOrder(ctx context.Context, userID uint, amount string, ship ShippingAddress) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount":    map[string]string{"currency_code": c.cfg.Currency, "value": amount},
			"custom_id": fmt.Sprint(userID),
			"shipping": map[string]any{
				"name": map[string]string{"full_name": ship.FullName},
				"address": map[string]string{
					"address_line_1": ship.Street,
					"admin_area_2":   ship.City,
					"postal_code":    ship.PostalCode,
					"country_code":   ship.Country,
				},
			},
		}},
		"application_context": map[string]string{
			"user_action":         "PAY_NOW",
			"shipping_preference": "SET_PROVIDED_ADDRESS",
			"brand_name":          c.cfg.BrandName,
		},
	}

	requestID := fmt.Sprintf("order-%d-%d", userID, c.now().UnixMilli())
	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, requestID, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder finalizes payment server-side. The provider reporting the order
// as already captured is a success, not an error: the existing capture is
// fetched and returned.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", map[string]any{}, "", &order)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity && apiErr.AlreadyCaptured() {
			return c.GetOrder(ctx, orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.doJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, "", &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetCapture(ctx context.Context, captureID string) (*Capture, error) {
	var capture Capture
	if err := c.doJSON(ctx, http.MethodGet, "/v2/payments/captures/"+captureID, nil, "", &capture); err != nil {
		return nil, err
	}
	return &capture, nil
}

// VerifyCapture implements payment.Provider against the captures endpoint.
func (c *Client) VerifyCapture(ctx context.Context, reference string) (payment.Capture, error) {
	capture, err := c.GetCapture(ctx, reference)
	if err != nil {
		return payment.Capture{}, err
	}

	amount, err := strconv.ParseFloat(capture.Amount.Value, 64)
	if err != nil {
		return payment.Capture{}, fmt.Errorf("parse captured amount %q: %w", capture.Amount.Value, err)
	}

	return payment.Capture{
		Reference: capture.ID,
		Status:    capture.Status,
		Amount:    amount,
		Currency:  capture.Amount.CurrencyCode,
		Completed: capture.Status == statusCompleted,
	}, nil
}

// Completed reports whether the provider settled the order.
func (o *Order) Completed() bool {
	return o.Status == statusCompleted
}

// FirstCapture pulls the capture id and status out of an order response.
func (o *Order) FirstCapture() (Capture, bool) {
	for _, pu := range o.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			return pu.Payments.Captures[0], true
		}
	}
	return Capture{}, false
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: api returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) AlreadyCaptured() bool {
	return strings.Contains(e.Body, "ORDER_ALREADY_CAPTURED") || strings.Contains(e.Body, "ORDER_ALREADY_COMPLETED")
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requestID string, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", payment.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", payment.ErrUnavailable, apiErr)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
