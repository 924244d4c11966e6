package transport

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

type CreateProductRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       uint    `json:"stock"`
	ImageURL    string  `json:"image_url"`
	CategoryID  *uint   `json:"category_id"`
}

// UpdateProductRequest carries optional fields; only present ones are
// applied.
type UpdateProductRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *uint    `json:"stock"`
	ImageURL    *string  `json:"image_url"`
	CategoryID  *uint    `json:"category_id"`
}

// UpdateUserRequest carries optional fields; role is ignored unless the
// caller is an admin.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type CartItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  uint `json:"quantity"`
}

type AddressRequest struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code"`
	PhoneNumber string `json:"phone_number"`
}

type CheckoutRequest struct {
	AddressRequest
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type PayPalCreateOrderRequest struct {
	ShippingAddress struct {
		FullName   string `json:"fullname"`
		Street     string `json:"street"`
		City       string `json:"city"`
		Country    string `json:"country"`
		PostalCode string `json:"postal_code"`
	} `json:"shipping_address"`
}

type FinalizeOrderRequest struct {
	AddressRequest
	PaymentProvider  string `json:"payment_provider"`
	PaymentReference string `json:"payment_reference"`
}

type CreatePaymentIntentRequest struct {
	AddressRequest
}
