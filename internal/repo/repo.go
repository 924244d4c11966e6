package repo

import (
	"errors"

	"gorm.io/gorm"
)

// Domain conditions surfaced by the data layer; services wrap these into
// their own sentinels.
var (
	ErrEmptyCart       = errors.New("no items in active cart")
	ErrCartUnavailable = errors.New("cart already checked out")
)

type GormRepo struct {
	DB *gorm.DB
}
