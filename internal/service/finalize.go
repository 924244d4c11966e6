package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/payment"
	"github.com/tshop/backend/internal/repo"
)

// amountTolerance absorbs floating rounding between the captured amount and
// the recomputed cart total.
const amountTolerance = 0.01

type FinalizeInput struct {
	Address          repo.AddressInput
	PaymentProvider  string
	PaymentReference string
}

type FinalizeResult struct {
	OrderID           uint    `json:"order_id"`
	TotalAmount       float64 `json:"total_amount"`
	ShippingAddressID uint    `json:"shipping_address_id,omitempty"`
	BillingAddressID  uint    `json:"billing_address_id,omitempty"`
	AlreadyPlaced     bool    `json:"already_placed"`
}

// FinalizeService turns a confirmed payment into a persisted order. The
// (provider, reference) pair is the single authoritative idempotency guard.
type FinalizeService struct {
	Repo      *repo.GormRepo
	Orders    *OrderService
	Carts     *CartService
	Providers map[string]payment.Provider
}

func (s *FinalizeService) provider(name string) (payment.Provider, error) {
	p, ok := s.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q: %w", name, ErrValidation)
	}
	return p, nil
}

// FinalizeOrder verifies a claimed payment against provider truth, applies
// the idempotency check, and on first success runs the placement transaction
// with the payment metadata attached.
func (s *FinalizeService) FinalizeOrder(ctx context.Context, userID uint, in FinalizeInput) (*FinalizeResult, error) {
	if err := validateAddress(in.Address); err != nil {
		return nil, err
	}
	if in.Address.PhoneNumber == "" {
		return nil, fmt.Errorf("phone_number required: %w", ErrValidation)
	}

	hasPayment := in.PaymentProvider != "" && in.PaymentReference != ""

	if hasPayment {
		existing, err := s.Repo.FindOrderByPayment(ctx, in.PaymentProvider, in.PaymentReference)
		if err == nil {
			return &FinalizeResult{OrderID: existing.ID, TotalAmount: existing.TotalAmount, AlreadyPlaced: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if err := s.verifyPayment(ctx, userID, in.PaymentProvider, in.PaymentReference); err != nil {
			return nil, err
		}
	}

	var pay *repo.PaymentMeta
	if hasPayment {
		pay = &repo.PaymentMeta{
			Provider:  in.PaymentProvider,
			Reference: in.PaymentReference,
			Status:    models.PaymentStatusCompleted,
		}
	}

	placed, err := s.Orders.PlaceOrder(ctx, userID, in.Address, pay)
	if err != nil {
		// a concurrent finalize for the same payment may have won the
		// placement race; the unique (provider, reference) index or the cart
		// guard surfaces that here
		if hasPayment {
			if existing, findErr := s.Repo.FindOrderByPayment(ctx, in.PaymentProvider, in.PaymentReference); findErr == nil {
				return &FinalizeResult{OrderID: existing.ID, TotalAmount: existing.TotalAmount, AlreadyPlaced: true}, nil
			}
		}
		return nil, err
	}

	return &FinalizeResult{
		OrderID:           placed.OrderID,
		TotalAmount:       placed.TotalAmount,
		ShippingAddressID: placed.ShippingAddressID,
		BillingAddressID:  placed.BillingAddressID,
	}, nil
}

// verifyPayment fetches authoritative payment state from the provider and
// compares the captured amount against the current cart total. An order is
// never created for a payment that does not cover the cart.
func (s *FinalizeService) verifyPayment(ctx context.Context, userID uint, providerName, reference string) error {
	p, err := s.provider(providerName)
	if err != nil {
		return err
	}

	capture, err := p.VerifyCapture(ctx, reference)
	if err != nil {
		return err
	}
	if !capture.Completed {
		return fmt.Errorf("provider reports status %q: %w", capture.Status, ErrPaymentNotCompleted)
	}

	totals, err := s.Carts.Total(ctx, userID)
	if err != nil {
		return err
	}
	if math.Abs(capture.Amount-totals.TotalDecimal) > amountTolerance {
		return fmt.Errorf("expected %.2f, captured %.2f: %w", totals.TotalDecimal, capture.Amount, ErrAmountMismatch)
	}
	return nil
}
