package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type ProductRepository interface {
	Seed(ctx context.Context, products []model.Product) error
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	FindManyTx(ctx context.Context, tx *gorm.DB, productIDs []string) ([]*model.Product, error)
	// DecrementStock is a single conditional update; it reports false when
	// stock would go negative instead of applying the decrement.
	DecrementStock(ctx context.Context, tx *gorm.DB, productID string, quantity int32) (bool, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&products).Error
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	return r.findMany(ctx, r.db, productIDs)
}

func (r *productRepoImpl) FindManyTx(ctx context.Context, tx *gorm.DB, productIDs []string) ([]*model.Product, error) {
	return r.findMany(ctx, tx, productIDs)
}

func (r *productRepoImpl) findMany(ctx context.Context, db *gorm.DB, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) DecrementStock(ctx context.Context, tx *gorm.DB, productID string, quantity int32) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).Model(&model.Product{}).
			Where("id = ?", productID).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, apperr.NotFound("product", productID)
		}
		return false, nil
	}
	return true, nil
}
