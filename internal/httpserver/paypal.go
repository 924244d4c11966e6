package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tshop/backend/internal/events"
	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/payment/paypal"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/service"
	"github.com/tshop/backend/internal/transport"
)

// PayPalHTTP drives the redirect checkout flow: create a provider order
// sized to the cart, capture it when the buyer approves, then finalize.
type PayPalHTTP struct {
	Client   *paypal.Client
	Carts    *service.CartService
	Finalize *service.FinalizeService
	Producer *events.Producer
}

func (h *PayPalHTTP) publishOrderPlaced(c echo.Context, userID uint, result *service.FinalizeResult) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, fmt.Sprint(userID), map[string]any{
		"type":     "order_placed",
		"order_id": result.OrderID,
		"user_id":  userID,
		"total":    result.TotalAmount,
		"provider": "paypal",
	})
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *PayPalHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "paypal.create_order")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.PayPalCreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ship := req.ShippingAddress
	if ship.FullName == "" || ship.Street == "" || ship.City == "" || ship.Country == "" || ship.PostalCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "shipping_address is incomplete")
	}

	totals, err := h.Carts.Total(ctx, userID)
	if err != nil {
		l.Error("create_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if totals.TotalDecimal <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	order, err := h.Client.CreateOrder(ctx, userID, totals.Formatted, paypal.ShippingAddress{
		FullName:   ship.FullName,
		Street:     ship.Street,
		City:       ship.City,
		Country:    ship.Country,
		PostalCode: ship.PostalCode,
	})
	if err != nil {
		l.Error("create_order_error", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
	}

	l.Info("create_order_success", "user_id", userID, "paypal_order_id", order.ID)
	return respond(c, http.StatusCreated, "paypal order created", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
		"amount":   totals.Formatted,
	})
}

// CaptureOrder captures an approved provider order. A replayed capture is
// answered with the original capture, not an error.
func (h *PayPalHTTP) CaptureOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "paypal.capture_order")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("capture_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID := c.Param("orderId")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order id required")
	}

	order, err := h.Client.CaptureOrder(ctx, orderID)
	if err != nil {
		l.Error("capture_order_error", "paypal_order_id", orderID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "capture failed")
	}

	capture, ok := order.FirstCapture()
	if !ok {
		l.Error("capture_order_error", "paypal_order_id", orderID, "error", "no capture in response")
		return echo.NewHTTPError(http.StatusBadGateway, "capture failed")
	}
	if !order.Completed() {
		l.Warn("capture_order_incomplete", "paypal_order_id", orderID, "status", order.Status)
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("order status is %s", order.Status))
	}

	l.Info("capture_order_success", "user_id", userID, "capture_id", capture.ID)
	return respond(c, http.StatusOK, "payment captured", map[string]any{
		"order_id":   order.ID,
		"status":     order.Status,
		"capture_id": capture.ID,
		"amount":     capture.Amount.Value,
		"currency":   capture.Amount.CurrencyCode,
	})
}

// FinalizeOrder persists the order for a captured payment. Replays against
// the same capture return the existing order.
func (h *PayPalHTTP) FinalizeOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "paypal.finalize")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("finalize_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.FinalizeOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("finalize_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.PaymentReference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payment_reference required")
	}

	result, err := h.Finalize.FinalizeOrder(ctx, userID, service.FinalizeInput{
		Address: repo.AddressInput{
			Street:      req.Street,
			City:        req.City,
			Country:     req.Country,
			PostalCode:  req.PostalCode,
			PhoneNumber: req.PhoneNumber,
		},
		PaymentProvider:  "paypal",
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		l.Warn("finalize_error", "user_id", userID, "reference", req.PaymentReference, "error", err)
		return serviceHTTPError(err)
	}

	if result.AlreadyPlaced {
		l.Info("finalize_replay", "user_id", userID, "order_id", result.OrderID)
		return respond(c, http.StatusOK, "order already placed", result)
	}

	h.publishOrderPlaced(c, userID, result)

	l.Info("finalize_success", "user_id", userID, "order_id", result.OrderID)
	return respond(c, http.StatusCreated, "order placed", result)
}

// GetOrderDetails proxies the provider order for the approval UI.
func (h *PayPalHTTP) GetOrderDetails(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "paypal.get_order")

	if _, err := GetID(c); err != nil {
		l.Warn("get_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID := c.Param("orderId")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order id required")
	}

	order, err := h.Client.GetOrder(ctx, orderID)
	if err != nil {
		l.Error("get_order_error", "paypal_order_id", orderID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
	}

	return respond(c, http.StatusOK, "paypal order retrieved", order)
}
