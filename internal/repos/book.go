package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
)

// BookRepo is the inventory ledger. DecrementAvailable and IncrementAvailable
// are single conditional updates, so concurrent callers can never drive
// available_copies outside [0, total_copies].
type BookRepo interface {
	Create(ctx context.Context, tx *gorm.DB, books []*types.Book) ([]*types.Book, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, bookIDs []uuid.UUID) ([]*types.Book, error)
	GetByID(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*types.Book, error)
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Book, error)
	DecrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
	IncrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error
	SumTotalCopies(ctx context.Context, tx *gorm.DB) (int64, error)
}

type bookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBookRepo(db *gorm.DB, baseLog *logger.Logger) BookRepo {
	repoLog := baseLog.With("repo", "BookRepo")
	return &bookRepo{db: db, log: repoLog}
}

func (br *bookRepo) Create(ctx context.Context, tx *gorm.DB, books []*types.Book) ([]*types.Book, error) {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	if len(books) == 0 {
		return []*types.Book{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (br *bookRepo) GetByIDs(ctx context.Context, tx *gorm.DB, bookIDs []uuid.UUID) ([]*types.Book, error) {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	var results []*types.Book
	if len(bookIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", bookIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (br *bookRepo) GetByID(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*types.Book, error) {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	var result types.Book
	err := transaction.WithContext(ctx).
		Where("id = ?", bookID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (br *bookRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Book, error) {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var results []*types.Book
	if err := transaction.WithContext(ctx).
		Preload("Author").
		Preload("Category").
		Order("title asc").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DecrementAvailable consumes one copy. The WHERE clause is the
// compare-and-swap: zero rows affected means another caller took the last
// copy (or the book does not exist). The display status is recomputed in the
// same statement; it is a convenience only.
func (br *bookRepo) DecrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies - 1"),
			"status":           gorm.Expr("CASE WHEN available_copies - 1 > 0 THEN 'available' ELSE 'checked_out' END"),
			"updated_at":       gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		book, err := br.GetByID(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return apperr.NotFound("book %s not found", bookID)
		}
		if book.AvailableCopies < 0 {
			return apperr.Integrity("book %s has negative availability %d", bookID, book.AvailableCopies)
		}
		return apperr.Precondition(apperr.CodeInventoryExhausted, "no available copies of book %s", bookID)
	}
	return nil
}

// IncrementAvailable returns one copy to the shelf, bounded at total_copies.
func (br *bookRepo) IncrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Book{}).
		Where("id = ? AND available_copies < total_copies", bookID).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies + 1"),
			"status":           "available",
			"updated_at":       gorm.Expr("now()"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		book, err := br.GetByID(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return apperr.NotFound("book %s not found", bookID)
		}
		if book.AvailableCopies > book.TotalCopies {
			return apperr.Integrity("book %s availability %d exceeds total %d", bookID, book.AvailableCopies, book.TotalCopies)
		}
		return apperr.Precondition(apperr.CodeInventoryExhausted, "all copies of book %s are already on the shelf", bookID)
	}
	return nil
}

func (br *bookRepo) Delete(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	res := transaction.WithContext(ctx).
		Where("id = ?", bookID).
		Delete(&types.Book{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("book %s not found", bookID)
	}
	return nil
}

func (br *bookRepo) SumTotalCopies(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = br.db
	}

	var sum *int64
	if err := transaction.WithContext(ctx).
		Model(&types.Book{}).
		Select("SUM(total_copies)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
