package repo

import (
	"context"

	"github.com/tshop/backend/internal/models"
)

// ProductPatch is a typed partial update: only present fields become
// parameterized assignments, column names never come from request data.
type ProductPatch struct {
	Title       *string
	Description *string
	Price       *float64
	Stock       *uint
	ImageURL    *string
	CategoryID  *uint
}

func (p ProductPatch) assignments() map[string]any {
	set := map[string]any{}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.Stock != nil {
		set["stock"] = *p.Stock
	}
	if p.ImageURL != nil {
		set["image_url"] = *p.ImageURL
	}
	if p.CategoryID != nil {
		set["category_id"] = *p.CategoryID
	}
	return set
}

func (p ProductPatch) Empty() bool {
	return len(p.assignments()) == 0
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, limit, offset int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var products []models.Product
	err := r.DB.WithContext(ctx).
		Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&products).Error
	if err != nil {
		return 0, nil, err
	}
	return total, products, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB.WithContext(ctx).Create(product).Error
}

func (r *GormRepo) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	set := patch.assignments()
	var product models.Product
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return &product, nil
	}
	if err := r.DB.WithContext(ctx).Model(&product).Updates(set).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Product{}, id).Error
}
