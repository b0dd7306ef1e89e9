package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type FineRepo interface {
	Create(ctx context.Context, tx *gorm.DB, fines []*types.Fine) ([]*types.Fine, error)
	GetByID(ctx context.Context, tx *gorm.DB, fineID uuid.UUID) (*types.Fine, error)
	Settle(ctx context.Context, tx *gorm.DB, fineID uuid.UUID, status string, paidAt *time.Time) error
	SumPending(ctx context.Context, tx *gorm.DB) (float64, error)
	ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Fine, error)
}

type fineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFineRepo(db *gorm.DB, baseLog *logger.Logger) FineRepo {
	repoLog := baseLog.With("repo", "FineRepo")
	return &fineRepo{db: db, log: repoLog}
}

func (fr *fineRepo) Create(ctx context.Context, tx *gorm.DB, fines []*types.Fine) ([]*types.Fine, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	if len(fines) == 0 {
		return []*types.Fine{}, nil
	}

	for _, f := range fines {
		if f.Amount <= 0 {
			return nil, apperr.Validation("fine amount must be positive, got %v", f.Amount)
		}
	}

	if err := transaction.WithContext(ctx).Create(&fines).Error; err != nil {
		return nil, err
	}
	return fines, nil
}

func (fr *fineRepo) GetByID(ctx context.Context, tx *gorm.DB, fineID uuid.UUID) (*types.Fine, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var result types.Fine
	err := transaction.WithContext(ctx).
		Where("id = ?", fineID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Settle moves a pending fine to paid or waived. The status guard keeps the
// transition one-way: a settled fine can never revert to pending or be
// settled twice.
func (fr *fineRepo) Settle(ctx context.Context, tx *gorm.DB, fineID uuid.UUID, status string, paidAt *time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	switch status {
	case types.FineStatusPaid, types.FineStatusWaived:
	default:
		return apperr.Validation("invalid fine settlement %q", status)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Fine{}).
		Where("id = ? AND status = ?", fineID, types.FineStatusPending).
		Updates(map[string]interface{}{
			"status":  status,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := fr.GetByID(ctx, tx, fineID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("fine %s not found", fineID)
		}
		return apperr.Conflict("fine %s already settled as %s", fineID, existing.Status)
	}
	return nil
}

func (fr *fineRepo) SumPending(ctx context.Context, tx *gorm.DB) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var sum *float64
	if err := transaction.WithContext(ctx).
		Model(&types.Fine{}).
		Select("SUM(amount)").
		Where("status = ?", types.FineStatusPending).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (fr *fineRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Fine, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}

	var results []*types.Fine
	if err := transaction.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at desc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
