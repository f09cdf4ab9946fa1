package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
)

type PlanRepository interface {
	Seed(ctx context.Context, plans []model.Plan) error
	FindByID(ctx context.Context, planID string) (*model.Plan, error)
}

type planRepoImpl struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepoImpl{
		db: db,
	}
}

func (r *planRepoImpl) Seed(ctx context.Context, plans []model.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&plans).Error
}

func (r *planRepoImpl) FindByID(ctx context.Context, planID string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("plan", planID)
		}
		return nil, err
	}

	return &plan, nil
}
