package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tshop/backend/internal/middleware/auth"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth    *AuthHTTP
	User    *UserHTTP
	Product *ProductHTTP
	Cart    *CartHTTP
	Order   *OrderHTTP
	PayPal  *PayPalHTTP
	Stripe  *StripeHTTP
}

// Register mounts all routes. The stripe webhook is deliberately outside the
// auth groups: its caller is the provider, authenticated by signature.
func Register(e *echo.Echo, h Handlers, authmw *auth.Middleware) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	users := api.Group("/users", authmw.RequireAuth)
	users.GET("/me", h.User.Me)
	users.PUT("/me", h.User.UpdateMe)
	users.PATCH("/me", h.User.UpdateMe)
	users.DELETE("/me", h.User.DeleteMe)
	users.GET("", h.User.ListUsers, authmw.RequireAdmin)
	users.GET("/:id", h.User.GetUser, authmw.RequireAdmin)
	users.PUT("/:id", h.User.UpdateUser, authmw.RequireAdmin)
	users.PATCH("/:id", h.User.UpdateUser, authmw.RequireAdmin)
	users.DELETE("/:id", h.User.DeleteUser, authmw.RequireAdmin)

	products := api.Group("/products")
	products.GET("", h.Product.GetProducts)
	products.GET("/search", h.Product.SearchProducts)
	products.GET("/:id", h.Product.GetProduct)
	products.POST("", h.Product.CreateProduct, authmw.RequireAdmin)
	products.PUT("/:id", h.Product.UpdateProduct, authmw.RequireAdmin)
	products.PATCH("/:id", h.Product.UpdateProduct, authmw.RequireAdmin)
	products.DELETE("/:id", h.Product.DeleteProduct, authmw.RequireAdmin)

	cart := api.Group("/cart", authmw.RequireAuth)
	cart.GET("", h.Cart.GetCart)
	cart.GET("/total", h.Cart.CartTotal)
	cart.POST("/items", h.Cart.AddToCart)
	cart.DELETE("/items", h.Cart.RemoveFromCart)
	cart.DELETE("", h.Cart.ClearCart)

	orders := api.Group("/orders")
	orders.POST("/checkout", h.Order.Checkout, authmw.RequireAuth)
	orders.GET("/my", h.Order.MyOrders, authmw.RequireAuth)
	orders.GET("/:orderId/track-order", h.Order.TrackOrder, authmw.RequireAuth)
	orders.GET("", h.Order.AllOrders, authmw.RequireAdmin)
	orders.PATCH("/:orderId/status", h.Order.UpdateStatus, authmw.RequireAdmin)

	paypal := e.Group("/payments/paypal", authmw.RequireAuth)
	paypal.POST("/create-order", h.PayPal.CreateOrder)
	paypal.POST("/capture-order/:orderId", h.PayPal.CaptureOrder)
	paypal.GET("/orders/:orderId", h.PayPal.GetOrderDetails)
	paypal.POST("/orders/finalize", h.PayPal.FinalizeOrder)

	stripeGroup := e.Group("/payments/stripe")
	stripeGroup.POST("/create-payment-intent", h.Stripe.CreatePaymentIntent, authmw.RequireAuth)
	stripeGroup.POST("/webhook", h.Stripe.Webhook)
}
