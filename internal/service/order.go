package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/repo"
)

type OrderService struct {
	Repo *repo.GormRepo
}

// Admin-settable targets. "paid" is deliberately absent: pending→paid is
// system-initiated by the finalizer only.
var adminStatuses = map[string]bool{
	models.OrderStatusPending:   true,
	models.OrderStatusShipped:   true,
	models.OrderStatusDelivered: true,
	models.OrderStatusCancelled: true,
}

// transitions is the order lifecycle: pending → paid → shipped → delivered,
// with cancelled reachable from pending or paid. delivered and cancelled are
// terminal.
var transitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusPaid:      {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
	models.OrderStatusDelivered: {},
	models.OrderStatusCancelled: {},
}

func transitionAllowed(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validateAddress(addr repo.AddressInput) error {
	switch {
	case addr.Street == "":
		return fmt.Errorf("street required: %w", ErrValidation)
	case addr.City == "":
		return fmt.Errorf("city required: %w", ErrValidation)
	case addr.Country == "":
		return fmt.Errorf("country required: %w", ErrValidation)
	case addr.PostalCode == "":
		return fmt.Errorf("postal_code required: %w", ErrValidation)
	}
	return nil
}

// PlaceOrder runs the atomic placement transaction for the user's active
// cart. Payment metadata, when present, lands on the order row inside the
// same transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, addr repo.AddressInput, pay *repo.PaymentMeta) (*repo.PlaceOrderResult, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user id required: %w", ErrValidation)
	}
	if err := validateAddress(addr); err != nil {
		return nil, err
	}

	result, err := s.Repo.PlaceOrder(ctx, userID, addr, pay)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrEmptyCart):
			return nil, fmt.Errorf("%w", ErrEmptyCart)
		case errors.Is(err, repo.ErrCartUnavailable):
			return nil, fmt.Errorf("cart already checked out: %w", ErrConflict)
		}
		return nil, err
	}
	return result, nil
}

func (s *OrderService) MyOrders(ctx context.Context, userID uint, limit, offset int) ([]models.Order, error) {
	return s.Repo.ListOrdersByUser(ctx, userID, limit, offset)
}

func (s *OrderService) AllOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	return s.Repo.ListAllOrders(ctx, limit, offset)
}

// TrackOrder returns the order's current status. Non-admin callers can only
// see their own orders.
func (s *OrderService) TrackOrder(ctx context.Context, orderID, userID uint, admin bool) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !admin && order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// UpdateStatus applies an admin-initiated lifecycle transition. Targets
// outside the admin set and backward hops are both rejected with
// ErrInvalidStatus; the stored status is left untouched.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target string) (*models.Order, error) {
	if orderID == 0 {
		return nil, fmt.Errorf("order id must be a positive integer: %w", ErrValidation)
	}
	if !adminStatuses[target] {
		return nil, fmt.Errorf("status %q: %w", target, ErrInvalidStatus)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(order.Status, target) {
		return nil, fmt.Errorf("transition %s -> %s: %w", order.Status, target, ErrInvalidStatus)
	}

	ok, err := s.Repo.SetOrderStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d status changed concurrently: %w", orderID, ErrConflict)
	}

	order.Status = target
	return order, nil
}
