package repository

import (
	"context"
	"time"

	"fiscalgate/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, rec *model.Receipt) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	FindByUUID(ctx context.Context, gatewayUUID string) (*model.Receipt, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Receipt, error)
	Update(ctx context.Context, rec *model.Receipt) error
	// ListAwaitingFiscalization returns receipts the gateway accepted but has
	// not fiscalized yet, for the status-poll cron.
	ListAwaitingFiscalization(ctx context.Context, limit int) ([]model.Receipt, error)
	// ListPendingRetries returns errored receipts whose next retry is due.
	ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error)
}

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepo{db: db}
}

func (r *receiptRepo) Create(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *receiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	var rec model.Receipt
	err := r.db.WithContext(ctx).First(&rec, id).Error
	return &rec, err
}

func (r *receiptRepo) FindByUUID(ctx context.Context, gatewayUUID string) (*model.Receipt, error) {
	var rec model.Receipt
	err := r.db.WithContext(ctx).Where("uuid = ?", gatewayUUID).First(&rec).Error
	return &rec, err
}

func (r *receiptRepo) FindByExternalID(ctx context.Context, externalID string) (*model.Receipt, error) {
	var rec model.Receipt
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&rec).Error
	return &rec, err
}

func (r *receiptRepo) Update(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *receiptRepo) ListAwaitingFiscalization(ctx context.Context, limit int) ([]model.Receipt, error) {
	var recs []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND uuid IS NOT NULL", model.ReceiptStatusRegistered).
		Order("updated_at").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *receiptRepo) ListPendingRetries(ctx context.Context, now time.Time, limit int) ([]model.Receipt, error) {
	var recs []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ReceiptStatusError, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
