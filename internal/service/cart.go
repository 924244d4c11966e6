package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/logging"
	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/repo"
)

const maxItemQuantity = 100

type CartService struct {
	Repo *repo.GormRepo
}

type CartView struct {
	CartID uint            `json:"cart_id"`
	UserID uint            `json:"user_id"`
	Items  []repo.CartLine `json:"items"`
}

type Totals struct {
	TotalDecimal float64 `json:"total_decimal"`
	Formatted    string  `json:"formatted"`
}

func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	lines, err := s.Repo.CartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no active cart: %w", ErrNotFound)
	}
	return &CartView{CartID: lines[0].CartID, UserID: userID, Items: lines}, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID, productID uint, quantity uint) (*models.CartItem, error) {
	if productID == 0 {
		return nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}
	if quantity == 0 || quantity >= maxItemQuantity {
		return nil, fmt.Errorf("quantity must be in range 1-%d: %w", maxItemQuantity-1, ErrValidation)
	}

	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, err
	}

	return s.Repo.AddToCart(ctx, userID, productID, quantity)
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID uint, quantity uint) (bool, *models.CartItem, error) {
	if productID == 0 {
		return false, nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}
	if quantity == 0 {
		quantity = 1
	}

	deleted, item, err := s.Repo.RemoveFromCart(ctx, userID, productID, quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, fmt.Errorf("cart item: %w", ErrNotFound)
	}
	return deleted, item, err
}

func (s *CartService) ClearCart(ctx context.Context, userID uint) error {
	return s.Repo.ClearCart(ctx, userID)
}

// Total computes the consistent monetary total of the user's active cart at
// this point in time. An empty or absent cart is a valid, priceable state and
// yields a zero total. A malformed price or quantity contributes zero instead
// of poisoning the sum; such rows are logged as data-integrity events.
func (s *CartService) Total(ctx context.Context, userID uint) (Totals, error) {
	lines, err := s.Repo.CartLines(ctx, userID)
	if err != nil {
		return Totals{}, err
	}

	l := logging.FromContext(ctx)
	var total float64
	for _, line := range lines {
		price := line.ProductPrice
		qty := float64(line.Quantity)
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			l.Error("data_integrity", "reason", "malformed product price",
				"user_id", userID, "product_id", line.ProductID, "price", price)
			price = 0
		}
		if qty <= 0 {
			l.Error("data_integrity", "reason", "malformed cart quantity",
				"user_id", userID, "product_id", line.ProductID, "quantity", line.Quantity)
			qty = 0
		}
		total += price * qty
	}

	return Totals{TotalDecimal: total, Formatted: fmt.Sprintf("%.2f", total)}, nil
}
