package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type AddressRepository interface {
	Create(ctx context.Context, address *model.Address) error
	FindByIDForUser(ctx context.Context, addressID, userID string) (*model.Address, error)
}

type addressRepoImpl struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepoImpl{
		db: db,
	}
}

func (r *addressRepoImpl) Create(ctx context.Context, address *model.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

func (r *addressRepoImpl) FindByIDForUser(ctx context.Context, addressID, userID string) (*model.Address, error) {
	var address model.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("address", addressID)
		}
		return nil, err
	}

	return &address, nil
}
