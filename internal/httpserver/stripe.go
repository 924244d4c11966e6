package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	stripego "github.com/stripe/stripe-go/v76"

	"github.com/tshop/backend/internal/events"
	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/payment/stripe"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/service"
	"github.com/tshop/backend/internal/transport"
)

// StripeHTTP drives the webhook checkout flow: an intent sized to the cart
// is handed to the client, and the signed payment_intent.succeeded event
// finalizes the order asynchronously.
type StripeHTTP struct {
	Gateway  *stripe.Gateway
	Carts    *service.CartService
	Finalize *service.FinalizeService
	Producer *events.Producer
}

func (h *StripeHTTP) publishOrderPlaced(c echo.Context, userID uint, result *service.FinalizeResult) {
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
		"provider": "stripe",
	})
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *StripeHTTP) CreatePaymentIntent(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stripe.create_intent")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("create_intent_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreatePaymentIntentRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_intent_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Street == "" || req.City == "" || req.Country == "" || req.PostalCode == "" || req.PhoneNumber == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address is incomplete")
	}

	view, err := h.Carts.GetCart(ctx, userID)
	if err != nil {
		return serviceHTTPError(err)
	}
	totals, err := h.Carts.Total(ctx, userID)
	if err != nil {
		l.Error("create_intent_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if totals.TotalDecimal <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	clientSecret, intentID, err := h.Gateway.CreateIntent(ctx, totals.TotalDecimal, stripe.IntentMetadata{
		UserID:      userID,
		Street:      req.Street,
		City:        req.City,
		Country:     req.Country,
		PostalCode:  req.PostalCode,
		PhoneNumber: req.PhoneNumber,
	}, view.Items)
	if err != nil {
		l.Error("create_intent_error", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
	}

	l.Info("create_intent_success", "user_id", userID, "intent_id", intentID)
	return respond(c, http.StatusCreated, "payment intent created", map[string]any{
		"client_secret": clientSecret,
		"intent_id":     intentID,
		"amount":        totals.Formatted,
	})
}

// Webhook handles signed provider events. The signature is checked before
// anything else; a bad signature is a 400. Once an event is accepted the
// response is 200 even when finalization fails, so the provider does not
// retry a payment the finalizer will reconcile through its idempotency
// lookup anyway.
func (h *StripeHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stripe.webhook")

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("webhook_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	event, err := h.Gateway.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		l.Warn("webhook_signature_rejected", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	if event.Type != "payment_intent.succeeded" {
		l.Debug("webhook_ignored", "type", event.Type)
		return respond(c, http.StatusOK, "event ignored", nil)
	}

	var pi stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		l.Error("webhook_error", "event_id", event.ID, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
	}

	meta, err := stripe.MetadataFromIntent(&pi)
	if err != nil {
		l.Error("webhook_error", "intent_id", pi.ID, "error", err)
		return respond(c, http.StatusOK, "event received", nil)
	}

	result, err := h.Finalize.FinalizeOrder(ctx, meta.UserID, service.FinalizeInput{
		Address: repo.AddressInput{
			Street:      meta.Street,
			City:        meta.City,
			Country:     meta.Country,
			PostalCode:  meta.PostalCode,
			PhoneNumber: meta.PhoneNumber,
		},
		PaymentProvider:  "stripe",
		PaymentReference: pi.ID,
	})
	if err != nil {
		l.Error("webhook_finalize_error", "intent_id", pi.ID, "user_id", meta.UserID, "error", err)
		return respond(c, http.StatusOK, "event received", nil)
	}

	if result.AlreadyPlaced {
		l.Info("webhook_replay", "intent_id", pi.ID, "order_id", result.OrderID)
	} else {
		h.publishOrderPlaced(c, meta.UserID, result)
		l.Info("webhook_finalized", "intent_id", pi.ID, "order_id", result.OrderID)
	}
	return respond(c, http.StatusOK, "order finalized", map[string]any{"order_id": result.OrderID})
}
