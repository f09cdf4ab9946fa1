package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type WebhookEventRepository interface {
	Exists(ctx context.Context, tx *gorm.DB, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, provider model.PaymentProvider, eventID, eventType string) error
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepoImpl{db: db}
}

func (r *webhookEventRepoImpl) Exists(ctx context.Context, tx *gorm.DB, eventID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error

	return count > 0, err
}

func (r *webhookEventRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, provider model.PaymentProvider, eventID, eventType string) error {
	return tx.WithContext(ctx).Create(&model.WebhookEvent{
		EventID:     eventID,
		Provider:    provider,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}).Error
}
