package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tshop/backend/internal/events"
	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/service"
	"github.com/tshop/backend/internal/transport"
	"github.com/tshop/backend/internal/util"
)

type OrderHTTP struct {
	Svc      *service.OrderService
	Producer *events.Producer
}

func (h *OrderHTTP) publish(c echo.Context, key string, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func orderIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("orderId"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "order id must be a positive integer")
	}
	return uint(id), nil
}

// Checkout places an order for the user's active cart without an attached
// payment. The order starts out pending.
func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("checkout_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	addr := repo.AddressInput{
		Street:      req.Street,
		City:        req.City,
		Country:     req.Country,
		PostalCode:  req.PostalCode,
		PhoneNumber: req.PhoneNumber,
	}

	result, err := h.Svc.PlaceOrder(ctx, userID, addr, nil)
	if err != nil {
		l.Warn("checkout_error", "user_id", userID, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(userID), map[string]any{
		"type":     "order_placed",
		"order_id": result.OrderID,
		"user_id":  userID,
		"total":    result.TotalAmount,
	})

	l.Info("checkout_success", "user_id", userID, "order_id", result.OrderID)
	return respond(c, http.StatusCreated, "order placed", result)
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("my_orders_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("count"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Svc.MyOrders(ctx, userID, limit, offset)
	if err != nil {
		l.Error("my_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return respond(c, http.StatusOK, "orders retrieved", orders)
}

func (h *OrderHTTP) AllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.all")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("count"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Svc.AllOrders(ctx, limit, offset)
	if err != nil {
		l.Error("all_orders_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return respond(c, http.StatusOK, "orders retrieved", orders)
}

func (h *OrderHTTP) TrackOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.track")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("track_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	order, err := h.Svc.TrackOrder(ctx, orderID, userID, isAdmin(c))
	if err != nil {
		l.Warn("track_order_error", "order_id", orderID, "error", err)
		return serviceHTTPError(err)
	}

	return respond(c, http.StatusOK, "order status retrieved", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

// UpdateStatus applies an admin lifecycle transition. Invalid targets and
// backward hops come back as 400 with the stored status untouched.
func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_status_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		l.Warn("update_status_error", "order_id", orderID, "target", req.Status, "error", err)
		return serviceHTTPError(err)
	}

	h.publish(c, fmt.Sprint(order.UserID), map[string]any{
		"type":     "order_status_changed",
		"order_id": order.ID,
		"status":   order.Status,
	})

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return respond(c, http.StatusOK, "order status updated", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
}
