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

// TransactionRepo is the transaction log: the source of truth for due dates
// and return dates.
type TransactionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, txns []*types.Transaction) ([]*types.Transaction, error)
	GetByID(ctx context.Context, tx *gorm.DB, txnID uuid.UUID) (*types.Transaction, error)
	FindOpenByBookAndMember(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID) (*types.Transaction, error)
	CloseReturn(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, returnDate time.Time, fineAmount float64) error
	RenewDueDate(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, newDueDate time.Time) error
	SetFineAmount(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, fineAmount float64) error
	CountOpen(ctx context.Context, tx *gorm.DB) (int64, error)
	CountOpenByBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (int64, error)
	CountOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	ListOpenByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Transaction, error)
	ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Transaction, error)
	FindUnpostedFines(ctx context.Context, tx *gorm.DB, returnedBefore time.Time, limit int) ([]*types.Transaction, error)
}

type transactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTransactionRepo(db *gorm.DB, baseLog *logger.Logger) TransactionRepo {
	repoLog := baseLog.With("repo", "TransactionRepo")
	return &transactionRepo{db: db, log: repoLog}
}

func (tr *transactionRepo) Create(ctx context.Context, tx *gorm.DB, txns []*types.Transaction) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if len(txns) == 0 {
		return []*types.Transaction{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (tr *transactionRepo) GetByID(ctx context.Context, tx *gorm.DB, txnID uuid.UUID) (*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var result types.Transaction
	err := transaction.WithContext(ctx).
		Where("id = ?", txnID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (tr *transactionRepo) FindOpenByBookAndMember(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID) (*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var result types.Transaction
	err := transaction.WithContext(ctx).
		Where("book_id = ? AND member_id = ? AND transaction_type = ? AND return_date IS NULL",
			bookID, memberID, types.TransactionTypeCheckout).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CloseReturn stamps return_date and the computed fine on an open checkout.
// The return_date IS NULL guard makes a double return lose the race cleanly.
func (tr *transactionRepo) CloseReturn(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, returnDate time.Time, fineAmount float64) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("id = ? AND transaction_type = ? AND return_date IS NULL", txnID, types.TransactionTypeCheckout).
		Updates(map[string]interface{}{
			"return_date": returnDate,
			"fine_amount": fineAmount,
			"updated_at":  gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := tr.GetByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("transaction %s not found", txnID)
		}
		return apperr.Precondition(apperr.CodeAlreadyReturned, "transaction %s is not an open checkout", txnID)
	}
	return nil
}

func (tr *transactionRepo) RenewDueDate(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, newDueDate time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("id = ? AND transaction_type = ? AND return_date IS NULL", txnID, types.TransactionTypeCheckout).
		Updates(map[string]interface{}{
			"due_date":   newDueDate,
			"updated_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := tr.GetByID(ctx, tx, txnID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.NotFound("transaction %s not found", txnID)
		}
		return apperr.Precondition(apperr.CodeRenewalNotAllowed, "transaction %s is not an open checkout", txnID)
	}
	return nil
}

// SetFineAmount is the administrative fine correction on a closed row.
func (tr *transactionRepo) SetFineAmount(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, fineAmount float64) error {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if fineAmount < 0 {
		return apperr.Validation("fine amount cannot be negative, got %v", fineAmount)
	}

	res := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("id = ?", txnID).
		Updates(map[string]interface{}{
			"fine_amount": fineAmount,
			"updated_at":  gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("transaction %s not found", txnID)
	}
	return nil
}

func (tr *transactionRepo) CountOpen(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("transaction_type = ? AND return_date IS NULL", types.TransactionTypeCheckout).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (tr *transactionRepo) CountOpenByBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("book_id = ? AND transaction_type = ? AND return_date IS NULL", bookID, types.TransactionTypeCheckout).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (tr *transactionRepo) CountOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Transaction{}).
		Where("transaction_type = ? AND return_date IS NULL AND due_date < ?", types.TransactionTypeCheckout, now).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (tr *transactionRepo) ListOpenByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	var results []*types.Transaction
	if err := transaction.WithContext(ctx).
		Where("member_id = ? AND transaction_type = ? AND return_date IS NULL", memberID, types.TransactionTypeCheckout).
		Order("due_date asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *transactionRepo) ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*types.Transaction
	if err := transaction.WithContext(ctx).
		Preload("Book").
		Preload("Member").
		Where("transaction_type = ? AND return_date IS NULL AND due_date < ?", types.TransactionTypeCheckout, now).
		Order("due_date asc").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// FindUnpostedFines returns closed checkouts stamped with a fine that has no
// matching fine row, i.e. a return that died between closing the transaction
// and posting the fine.
func (tr *transactionRepo) FindUnpostedFines(ctx context.Context, tx *gorm.DB, returnedBefore time.Time, limit int) ([]*types.Transaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = tr.db
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*types.Transaction
	if err := transaction.WithContext(ctx).
		Where(`transaction_type = ?
			AND return_date IS NOT NULL
			AND return_date < ?
			AND fine_amount > 0
			AND NOT EXISTS (
				SELECT 1 FROM "fine" f WHERE f.transaction_id = "transaction".id
			)`, types.TransactionTypeCheckout, returnedBefore).
		Order("return_date asc").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
