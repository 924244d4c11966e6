package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
)

// CartLine is one row of the active-cart snapshot joined with the current
// product price.
type CartLine struct {
	CartID       uint    `json:"cart_id"`
	CartItemID   uint    `json:"cart_item_id"`
	ProductID    uint    `json:"product_id"`
	ProductTitle string  `json:"product_title"`
	ProductPrice float64 `json:"product_price"`
	ProductImage string  `json:"product_image"`
	Quantity     uint    `json:"quantity"`
}

func (r *GormRepo) ActiveCart(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CartLines reads the caller's active-cart items joined with current product
// price, ordered by product id. An absent cart yields an empty slice.
func (r *GormRepo) CartLines(ctx context.Context, userID uint) ([]CartLine, error) {
	return cartLines(r.DB.WithContext(ctx), userID)
}

func cartLines(tx *gorm.DB, userID uint) ([]CartLine, error) {
	var lines []CartLine
	err := tx.Table("carts AS c").
		Select("c.id AS cart_id, ci.id AS cart_item_id, ci.product_id, ci.quantity, p.price AS product_price, p.title AS product_title, p.image_url AS product_image").
		Joins("JOIN cart_items ci ON ci.cart_id = c.id").
		Joins("JOIN products p ON p.id = ci.product_id").
		Where("c.user_id = ? AND c.is_active = ?", userID, true).
		Order("p.id ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// AddToCart creates the user's active cart lazily and upserts the item:
// an existing (cart, product) row gets its quantity incremented.
func (r *GormRepo) AddToCart(ctx context.Context, userID, productID uint, quantity uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cart = models.Cart{UserID: userID, IsActive: true}
			if err := tx.Create(&cart).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Update("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
		}

		item = models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveFromCart subtracts quantity from the (cart, product) row, deleting it
// when the count reaches zero. Reports whether the row was deleted.
func (r *GormRepo) RemoveFromCart(ctx context.Context, userID, productID uint, quantity uint) (bool, *models.CartItem, error) {
	var item models.CartItem
	deleted := false

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&cart).Error; err != nil {
			return err
		}

		if err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error; err != nil {
			return err
		}

		if item.Quantity > quantity {
			if err := tx.Model(&item).Update("quantity", gorm.Expr("quantity - ?", quantity)).Error; err != nil {
				return err
			}
			return tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
		}

		deleted = true
		return tx.Delete(&item).Error
	})
	if err != nil {
		return false, nil, err
	}
	return deleted, &item, nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
}
