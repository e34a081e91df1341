package repository

import (
	"context"

	"fiscalgate/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegisterRepository interface {
	Create(ctx context.Context, r *model.Register) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error)
	FindByGroupCode(ctx context.Context, groupCode string) (*model.Register, error)
	List(ctx context.Context) ([]model.Register, error)
	Update(ctx context.Context, r *model.Register) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository {
	return &registerRepo{db: db}
}

func (r *registerRepo) Create(ctx context.Context, reg *model.Register) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *registerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error) {
	var reg model.Register
	err := r.db.WithContext(ctx).First(&reg, id).Error
	return &reg, err
}

func (r *registerRepo) FindByGroupCode(ctx context.Context, groupCode string) (*model.Register, error) {
	var reg model.Register
	err := r.db.WithContext(ctx).Where("group_code = ?", groupCode).First(&reg).Error
	return &reg, err
}

func (r *registerRepo) List(ctx context.Context) ([]model.Register, error) {
	var regs []model.Register
	err := r.db.WithContext(ctx).Order("created_at").Find(&regs).Error
	return regs, err
}

func (r *registerRepo) Update(ctx context.Context, reg *model.Register) error {
	return r.db.WithContext(ctx).Save(reg).Error
}

func (r *registerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Register{}, id).Error
}
