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

// MemberRepo is the membership ledger: the loan-slot counter and the fine
// balance move only through the conditional updates below.
type MemberRepo interface {
	Create(ctx context.Context, tx *gorm.DB, members []*types.Member) ([]*types.Member, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, memberIDs []uuid.UUID) ([]*types.Member, error)
	GetByID(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*types.Member, error)
	GetByProfileID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) (*types.Member, error)
	GetByMembershipNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Member, error)
	ReserveLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error
	ReleaseLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error
	AddFine(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error
	SettleFineAmount(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, status string) error
	CountActive(ctx context.Context, tx *gorm.DB) (int64, error)
	FindSlotMismatches(ctx context.Context, tx *gorm.DB, updatedBefore time.Time) ([]*SlotMismatch, error)
	SetBooksIssued(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, from, to int) error
}

// SlotMismatch is a member whose issued-count disagrees with the number of
// open checkout transactions, i.e. a saga that died between reserving a slot
// and opening (or after closing) a transaction.
type SlotMismatch struct {
	MemberID  uuid.UUID `gorm:"column:member_id"`
	Issued    int       `gorm:"column:issued"`
	OpenCount int       `gorm:"column:open_count"`
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	repoLog := baseLog.With("repo", "MemberRepo")
	return &memberRepo{db: db, log: repoLog}
}

func (mr *memberRepo) Create(ctx context.Context, tx *gorm.DB, members []*types.Member) ([]*types.Member, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(members) == 0 {
		return []*types.Member{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (mr *memberRepo) GetByIDs(ctx context.Context, tx *gorm.DB, memberIDs []uuid.UUID) ([]*types.Member, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Member
	if len(memberIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", memberIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *memberRepo) GetByID(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*types.Member, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var result types.Member
	err := transaction.WithContext(ctx).
		Where("id = ?", memberID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (mr *memberRepo) GetByProfileID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) (*types.Member, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var result types.Member
	err := transaction.WithContext(ctx).
		Where("profile_id = ?", profileID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (mr *memberRepo) GetByMembershipNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Member, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var result types.Member
	err := transaction.WithContext(ctx).
		Where("membership_number = ?", number).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReserveLoanSlot consumes one unit of the member's quota. The WHERE clause
// is the compare-and-swap against max_books_allowed.
func (mr *memberRepo) ReserveLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ? AND current_books_issued < max_books_allowed", memberID).
		Updates(map[string]interface{}{
			"current_books_issued": gorm.Expr("current_books_issued + 1"),
			"updated_at":           gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		member, err := mr.GetByID(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperr.NotFound("member %s not found", memberID)
		}
		if member.CurrentBooksIssued > member.MaxBooksAllowed {
			return apperr.Integrity("member %s has %d books issued above quota %d", memberID, member.CurrentBooksIssued, member.MaxBooksAllowed)
		}
		return apperr.Precondition(apperr.CodeQuotaExceeded, "member %s has reached the borrowing quota of %d", memberID, member.MaxBooksAllowed)
	}
	return nil
}

// ReleaseLoanSlot gives one quota unit back, floored at zero. Zero rows
// affected here is not an error: the floor simply held.
func (mr *memberRepo) ReleaseLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ? AND current_books_issued > 0", memberID).
		Updates(map[string]interface{}{
			"current_books_issued": gorm.Expr("current_books_issued - 1"),
			"updated_at":           gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		member, err := mr.GetByID(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return apperr.NotFound("member %s not found", memberID)
		}
		mr.log.Warn("Release of loan slot floored at zero", "member_id", memberID)
	}
	return nil
}

func (mr *memberRepo) AddFine(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if amount <= 0 {
		return apperr.Validation("fine amount must be positive, got %v", amount)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"fine_amount": gorm.Expr("fine_amount + ?", amount),
			"updated_at":  gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("member %s not found", memberID)
	}
	return nil
}

func (mr *memberRepo) SettleFineAmount(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if amount <= 0 {
		return apperr.Validation("settlement amount must be positive, got %v", amount)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"fine_amount": gorm.Expr("GREATEST(fine_amount - ?, 0)", amount),
			"updated_at":  gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("member %s not found", memberID)
	}
	return nil
}

func (mr *memberRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("member %s not found", memberID)
	}
	return nil
}

func (mr *memberRepo) CountActive(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("status = ?", types.MemberStatusActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (mr *memberRepo) FindSlotMismatches(ctx context.Context, tx *gorm.DB, updatedBefore time.Time) ([]*SlotMismatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*SlotMismatch
	err := transaction.WithContext(ctx).Raw(`
		SELECT m.id AS member_id,
		       m.current_books_issued AS issued,
		       COUNT(t.id) AS open_count
		FROM "member" m
		LEFT JOIN "transaction" t
		  ON t.member_id = m.id
		 AND t.transaction_type = 'checkout'
		 AND t.return_date IS NULL
		WHERE m.updated_at < ?
		GROUP BY m.id, m.current_books_issued
		HAVING m.current_books_issued <> COUNT(t.id)
	`, updatedBefore).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SetBooksIssued corrects the counter during reconciliation. The from guard
// makes the write a compare-and-swap so a concurrent checkout is never
// overwritten.
func (mr *memberRepo) SetBooksIssued(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, from, to int) error {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	if to < 0 {
		return apperr.Validation("issued count cannot be negative, got %d", to)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Member{}).
		Where("id = ? AND current_books_issued = ?", memberID, from).
		Updates(map[string]interface{}{
			"current_books_issued": to,
			"updated_at":           gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("member %s issued count changed during reconciliation", memberID)
	}
	return nil
}
