package httpserver

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/payment"
	"github.com/tshop/backend/internal/payment/stripe"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/service"
)

type handlerEnv struct {
	stripe   *StripeHTTP
	orders   *OrderHTTP
	users    *UserHTTP
	repo     *repo.GormRepo
	provider *stubProvider
	user     models.User
	echo     *echo.Echo
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Cart{}, &models.CartItem{},
		&models.Address{}, &models.Order{}, &models.OrderItem{},
	))

	user := models.User{Name: "buyer", Email: "buyer@example.com", PasswordHash: "x", Role: "user"}
	require.NoError(t, db.Create(&user).Error)

	store := &repo.GormRepo{DB: db}
	provider := &stubProvider{captures: map[string]payment.Capture{}}
	carts := &service.CartService{Repo: store}
	orderSvc := &service.OrderService{Repo: store}
	finalize := &service.FinalizeService{
		Repo:      store,
		Orders:    orderSvc,
		Carts:     carts,
		Providers: map[string]payment.Provider{"stripe": provider},
	}

	return &handlerEnv{
		stripe: &StripeHTTP{
			Gateway:  stripe.New("sk_test_x", webhookTestSecret, "USD"),
			Carts:    carts,
			Finalize: finalize,
		},
		orders:   &OrderHTTP{Svc: orderSvc},
		users:    &UserHTTP{Svc: &service.UserService{Repo: store}},
		repo:     store,
		provider: provider,
		user:     user,
		echo:     echo.New(),
	}
}

func (env *handlerEnv) seedCart(t *testing.T, price float64, qty uint) {
	t.Helper()
	product := models.Product{Title: "thing", Price: price, Stock: 10}
	require.NoError(t, env.repo.DB.Create(&product).Error)
	_, err := env.repo.AddToCart(context.Background(), env.user.ID, product.ID, qty)
	require.NoError(t, err)
}
