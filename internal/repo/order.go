package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
)

type AddressInput struct {
	Street      string
	City        string
	Country     string
	PostalCode  string
	PhoneNumber string
}

// PaymentMeta carries an already-verified payment into the placement
// transaction so the order row is created with its payment fields populated.
type PaymentMeta struct {
	Provider  string
	Reference string
	Status    string
}

type PlaceOrderResult struct {
	OrderID           uint    `json:"order_id"`
	TotalAmount       float64 `json:"total_amount"`
	ShippingAddressID uint    `json:"shipping_address_id"`
	BillingAddressID  uint    `json:"billing_address_id"`
}

// PlaceOrder turns the user's active cart into an immutable order inside one
// transaction: two fresh address rows, the cart snapshot read, the order row,
// one order item per cart line with the price frozen from the same snapshot,
// and the cart deactivation. The deactivation requires is_active to still be
// true and exactly one row to change; a concurrent placement that lost the
// race rolls the whole transaction back with ErrCartUnavailable.
func (r *GormRepo) PlaceOrder(ctx context.Context, userID uint, addr AddressInput, pay *PaymentMeta) (*PlaceOrderResult, error) {
	var result PlaceOrderResult

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipping := models.Address{
			UserID:      userID,
			Street:      addr.Street,
			City:        addr.City,
			Country:     addr.Country,
			PostalCode:  addr.PostalCode,
			PhoneNumber: addr.PhoneNumber,
		}
		if err := tx.Create(&shipping).Error; err != nil {
			return err
		}

		// billing duplicates shipping on purpose: every order always holds
		// two distinct address rows
		billing := shipping
		billing.ID = 0
		if err := tx.Create(&billing).Error; err != nil {
			return err
		}

		lines, err := cartLines(tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		var total float64
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			total += line.ProductPrice * float64(line.Quantity)
			items = append(items, models.OrderItem{
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				PriceAtPurchase: line.ProductPrice,
			})
		}

		order := models.Order{
			UserID:            userID,
			TotalAmount:       total,
			Status:            models.OrderStatusPending,
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
		}
		if pay != nil {
			order.Status = models.OrderStatusPaid
			order.PaymentProvider = &pay.Provider
			order.PaymentRef = &pay.Reference
			order.PaymentStatus = &pay.Status
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Cart{}).
			Where("id = ? AND is_active = ?", lines[0].CartID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrCartUnavailable
		}

		result = PlaceOrderResult{
			OrderID:           order.ID,
			TotalAmount:       total,
			ShippingAddressID: shipping.ID,
			BillingAddressID:  billing.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *GormRepo) FindOrderByPayment(ctx context.Context, provider, reference string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Where("payment_provider = ? AND payment_ref = ?", provider, reference).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		First(&order, orderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListAllOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SetOrderStatus transitions the order from a known current status. Zero rows
// affected means the order raced with another transition.
func (r *GormRepo) SetOrderStatus(ctx context.Context, orderID uint, from, to string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
