package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Address{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func newTestRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	return &repo.GormRepo{DB: newTestDB(t)}
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{Name: "test user", Email: "user@example.com", PasswordHash: "x", Role: "user"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, title string, price float64) models.Product {
	t.Helper()
	product := models.Product{Title: title, Description: "test product", Price: price, Stock: 100}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func fillCart(t *testing.T, r *repo.GormRepo, userID uint, items map[uint]uint) {
	t.Helper()
	for productID, qty := range items {
		_, err := r.AddToCart(context.Background(), userID, productID, qty)
		require.NoError(t, err)
	}
}

func testAddress() repo.AddressInput {
	return repo.AddressInput{
		Street:      "12 Baker St",
		City:        "London",
		Country:     "GB",
		PostalCode:  "NW1 6XE",
		PhoneNumber: "+44 20 7946 0000",
	}
}
