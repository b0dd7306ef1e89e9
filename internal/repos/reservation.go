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

// ReservationRepo is the per-book FIFO hold queue. Eligibility reads exclude
// rows past their expiry date even before a sweep persists the transition.
type ReservationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, holds []*types.Reservation) ([]*types.Reservation, error)
	GetByID(ctx context.Context, tx *gorm.DB, holdID uuid.UUID) (*types.Reservation, error)
	HasActiveHold(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID, now time.Time) (bool, error)
	HasAnyActiveHold(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (bool, error)
	NextEligible(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (*types.Reservation, error)
	Resolve(ctx context.Context, tx *gorm.DB, holdID uuid.UUID, status string) error
	MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	CountActive(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Reservation, error)
}

type reservationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReservationRepo(db *gorm.DB, baseLog *logger.Logger) ReservationRepo {
	repoLog := baseLog.With("repo", "ReservationRepo")
	return &reservationRepo{db: db, log: repoLog}
}

func (rr *reservationRepo) Create(ctx context.Context, tx *gorm.DB, holds []*types.Reservation) ([]*types.Reservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(holds) == 0 {
		return []*types.Reservation{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&holds).Error; err != nil {
		return nil, err
	}
	return holds, nil
}

func (rr *reservationRepo) GetByID(ctx context.Context, tx *gorm.DB, holdID uuid.UUID) (*types.Reservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.Reservation
	err := transaction.WithContext(ctx).
		Where("id = ?", holdID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *reservationRepo) HasActiveHold(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID, now time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Reservation{}).
		Where("book_id = ? AND member_id = ? AND status = ? AND expiry_date > ?",
			bookID, memberID, types.ReservationStatusActive, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (rr *reservationRepo) HasAnyActiveHold(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Reservation{}).
		Where("book_id = ? AND status = ? AND expiry_date > ?",
			bookID, types.ReservationStatusActive, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// NextEligible returns the oldest active, unexpired hold on the book, or nil.
func (rr *reservationRepo) NextEligible(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (*types.Reservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.Reservation
	err := transaction.WithContext(ctx).
		Where("book_id = ? AND status = ? AND expiry_date > ?",
			bookID, types.ReservationStatusActive, now).
		Order("reservation_date asc").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolve transitions an active hold to fulfilled, cancelled or expired. The
// status guard means two callers racing to resolve the same hold cannot both
// win.
func (rr *reservationRepo) Resolve(ctx context.Context, tx *gorm.DB, holdID uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	switch status {
	case types.ReservationStatusFulfilled, types.ReservationStatusCancelled, types.ReservationStatusExpired:
	default:
		return apperr.Validation("invalid hold resolution %q", status)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Reservation{}).
		Where("id = ? AND status = ?", holdID, types.ReservationStatusActive).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := rr.GetByID(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("hold %s not found", holdID)
		}
		return apperr.Conflict("hold %s already resolved to %s", holdID, existing.Status)
	}
	return nil
}

func (rr *reservationRepo) MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Reservation{}).
		Where("status = ? AND expiry_date <= ?", types.ReservationStatusActive, now).
		Updates(map[string]interface{}{
			"status":     types.ReservationStatusExpired,
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (rr *reservationRepo) CountActive(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Reservation{}).
		Where("status = ? AND expiry_date > ?", types.ReservationStatusActive, now).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *reservationRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Reservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Reservation
	if err := transaction.WithContext(ctx).
		Preload("Book").
		Where("member_id = ?", memberID).
		Order("reservation_date desc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
