package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error
	FindByID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	// LatestByProviderSubID returns the highest-cycle ledger row for a
	// processor-side subscription id.
	LatestByProviderSubID(ctx context.Context, tx *gorm.DB, providerSubID string) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, subscriptionID string, status model.PaymentStatus) error
	SetProviderSubscriptionID(ctx context.Context, tx *gorm.DB, subscriptionID, providerSubID string) error
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{
		db: db,
	}
}

func (r *subscriptionRepoImpl) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	return tx.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepoImpl) FindByID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ?", subscriptionID).
		First(&sub).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription", subscriptionID)
		}
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) LatestByProviderSubID(ctx context.Context, tx *gorm.DB, providerSubID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := tx.WithContext(ctx).
		Where("provider_subscription_id = ?", providerSubID).
		Order("billing_cycle desc").
		First(&sub).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription with provider ref", providerSubID)
		}
		return nil, err
	}

	return &sub, nil
}

func (r *subscriptionRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, subscriptionID string, status model.PaymentStatus) error {
	return tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", subscriptionID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *subscriptionRepoImpl) SetProviderSubscriptionID(ctx context.Context, tx *gorm.DB, subscriptionID, providerSubID string) error {
	return tx.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("provider_subscription_id", providerSubID).
		Error
}
