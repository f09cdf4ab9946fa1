package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	GetOrderItems(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.OrderItem, error)
	// AdvanceStatus moves the order to `to` only while its status is in
	// `from`, appending a status-history event when a row changed.
	AdvanceStatus(ctx context.Context, tx *gorm.DB, orderID string, from []model.OrderStatus, to model.OrderStatus, note string) (bool, error)
	// AppendStatusEvent records a history event without moving the order.
	AppendStatusEvent(ctx context.Context, tx *gorm.DB, orderID string, status model.OrderStatus, note string) error
	SetPreOrderStatus(ctx context.Context, tx *gorm.DB, orderID string, status model.PreOrderStatus) error
	StatusHistory(ctx context.Context, orderID string) ([]*model.OrderStatusEvent, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if err := tx.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(&model.OrderStatusEvent{
		OrderID: order.ID,
		Status:  order.Status,
		Note:    "order created",
	}).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	return r.find(ctx, r.db, orderID)
}

func (r *orderRepoImpl) FindByIDTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	return r.find(ctx, tx, orderID)
}

func (r *orderRepoImpl) find(ctx context.Context, db *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order", orderID)
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order for payment", paymentID)
		}
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := tx.WithContext(ctx).Where("order_id = ?", orderID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) AdvanceStatus(ctx context.Context, tx *gorm.DB, orderID string, from []model.OrderStatus, to model.OrderStatus, note string) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	err := tx.WithContext(ctx).Create(&model.OrderStatusEvent{
		OrderID: orderID,
		Status:  to,
		Note:    note,
	}).Error
	return true, err
}

func (r *orderRepoImpl) AppendStatusEvent(ctx context.Context, tx *gorm.DB, orderID string, status model.OrderStatus, note string) error {
	return tx.WithContext(ctx).Create(&model.OrderStatusEvent{
		OrderID: orderID,
		Status:  status,
		Note:    note,
	}).Error
}

func (r *orderRepoImpl) SetPreOrderStatus(ctx context.Context, tx *gorm.DB, orderID string, status model.PreOrderStatus) error {
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"pre_order_status": status,
			"updated_at":       time.Now(),
		}).Error
}

func (r *orderRepoImpl) StatusHistory(ctx context.Context, orderID string) ([]*model.OrderStatusEvent, error) {
	var events []*model.OrderStatusEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}
