package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*model.Payment, error)
	// FindByIDForUpdate re-reads the current row inside tx with a row lock,
	// so transition decisions never act on a stale copy.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error)
	Update(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment", paymentID)
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByProviderRef(ctx context.Context, providerRef string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment with provider ref", providerRef)
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", paymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment", paymentID)
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) Update(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Save(payment).Error
}
