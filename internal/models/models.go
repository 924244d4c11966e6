package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey"      json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"         json:"id"`
	Title       string    `gorm:"size:100;not null"                json:"title"`
	Description string    `gorm:"default:No description available" json:"description"`
	Price       float64   `gorm:"not null"                         json:"price"`
	Stock       uint      `gorm:"not null"                         json:"stock"`
	ImageURL    string    `json:"image_url"`
	CategoryID  *uint     `gorm:"index"                            json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cart is created lazily on first add and deactivated exactly once when an
// order is placed from it. At most one active cart per user.
type Cart struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                            json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// Address rows are immutable checkout snapshots, always inserted fresh.
type Address struct {
	ID          uint      `gorm:"primaryKey"        json:"id"`
	UserID      uint      `gorm:"index;not null"    json:"user_id"`
	Street      string    `gorm:"size:100;not null" json:"street"`
	City        string    `gorm:"size:100;not null" json:"city"`
	Country     string    `gorm:"size:100;not null" json:"country"`
	PostalCode  string    `gorm:"size:20;not null"  json:"postal_code"`
	PhoneNumber string    `gorm:"size:30"           json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const PaymentStatusCompleted = "completed"

// Order is immutable after creation except for status and the payment
// subsection. (payment_provider, payment_ref) is the idempotency key that
// blocks duplicate orders from retried finalize calls or replayed webhooks.
type Order struct {
	ID                uint      `gorm:"primaryKey"                             json:"id"`
	UserID            uint      `gorm:"index;not null"                         json:"user_id"`
	TotalAmount       float64   `gorm:"not null"                               json:"total_amount"`
	Status            string    `gorm:"size:20;not null;default:pending"       json:"status"`
	ShippingAddressID uint      `gorm:"not null"                               json:"shipping_address_id"`
	BillingAddressID  uint      `gorm:"not null"                               json:"billing_address_id"`
	PaymentProvider   *string   `gorm:"size:32;uniqueIndex:idx_orders_payment" json:"payment_provider"`
	PaymentRef        *string   `gorm:"size:128;uniqueIndex:idx_orders_payment" json:"payment_ref"`
	PaymentStatus     *string   `gorm:"size:32"                                json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

type OrderItem struct {
	ID              uint      `gorm:"primaryKey"                  json:"id"`
	OrderID         uint      `gorm:"index;not null"              json:"order_id"`
	ProductID       uint      `gorm:"not null"                    json:"product_id"`
	Quantity        uint      `gorm:"not null;check:quantity > 0" json:"quantity"`
	PriceAtPurchase float64   `gorm:"not null"                    json:"price_at_purchase"`
	CreatedAt       time.Time `json:"created_at"`
}
