package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type CartRepository interface {
	GetByUser(ctx context.Context, userID string) ([]*model.CartItem, error)
	DeleteItems(ctx context.Context, tx *gorm.DB, userID string, productIDs []string) error
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

func (r *cartRepoImpl) GetByUser(ctx context.Context, userID string) ([]*model.CartItem, error) {
	var items []*model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *cartRepoImpl) DeleteItems(ctx context.Context, tx *gorm.DB, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Delete(&model.CartItem{}).Error
}
