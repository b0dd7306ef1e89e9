package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type CreateBookInput struct {
	Title           string     `json:"title"`
	AuthorID        *uuid.UUID `json:"author_id"`
	CategoryID      *uuid.UUID `json:"category_id"`
	ISBN            string     `json:"isbn"`
	Publisher       string     `json:"publisher"`
	PublicationYear int        `json:"publication_year"`
	Pages           int        `json:"pages"`
	Language        string     `json:"language"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	TotalCopies     int        `json:"total_copies"`
}

// BookService is the catalog surface. Availability counters start equal to
// total copies and are only ever moved by the inventory ledger afterwards.
type BookService interface {
	Create(ctx context.Context, input CreateBookInput) (*types.Book, error)
	GetByID(ctx context.Context, bookID uuid.UUID) (*types.Book, error)
	List(ctx context.Context, limit, offset int) ([]*types.Book, error)
	Delete(ctx context.Context, bookID uuid.UUID) error
}

type bookService struct {
	db              *gorm.DB
	log             *logger.Logger
	bookRepo        repos.BookRepo
	transactionRepo repos.TransactionRepo
}

func NewBookService(db *gorm.DB, baseLog *logger.Logger, bookRepo repos.BookRepo, transactionRepo repos.TransactionRepo) BookService {
	serviceLog := baseLog.With("service", "BookService")
	return &bookService{db: db, log: serviceLog, bookRepo: bookRepo, transactionRepo: transactionRepo}
}

func (bs *bookService) Create(ctx context.Context, input CreateBookInput) (*types.Book, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperr.Validation("a title is required")
	}
	if input.TotalCopies < 0 {
		return nil, apperr.Validation("total copies cannot be negative, got %d", input.TotalCopies)
	}
	copies := input.TotalCopies
	if copies == 0 {
		copies = 1
	}

	book := &types.Book{
		ID:              uuid.New(),
		Title:           title,
		AuthorID:        input.AuthorID,
		CategoryID:      input.CategoryID,
		ISBN:            strings.TrimSpace(input.ISBN),
		Publisher:       strings.TrimSpace(input.Publisher),
		PublicationYear: input.PublicationYear,
		Pages:           input.Pages,
		Language:        strings.TrimSpace(input.Language),
		Location:        strings.TrimSpace(input.Location),
		Description:     input.Description,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Status:          types.BookStatusAvailable,
	}
	if _, err := bs.bookRepo.Create(ctx, nil, []*types.Book{book}); err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	bs.log.Info("Book catalogued", "book_id", book.ID, "title", book.Title, "copies", copies)
	return book, nil
}

func (bs *bookService) GetByID(ctx context.Context, bookID uuid.UUID) (*types.Book, error) {
	if bookID == uuid.Nil {
		return nil, apperr.Validation("missing book id")
	}
	book, err := bs.bookRepo.GetByID(ctx, nil, bookID)
	if err != nil {
		return nil, fmt.Errorf("loading book: %w", err)
	}
	if book == nil {
		return nil, apperr.NotFound("book %s not found", bookID)
	}
	return book, nil
}

func (bs *bookService) List(ctx context.Context, limit, offset int) ([]*types.Book, error) {
	books, err := bs.bookRepo.List(ctx, nil, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

// Delete removes a catalog entry. A book with open checkouts stays: deleting
// it would orphan the loan records the ledgers still count against.
func (bs *bookService) Delete(ctx context.Context, bookID uuid.UUID) error {
	if bookID == uuid.Nil {
		return apperr.Validation("missing book id")
	}

	open, err := bs.transactionRepo.CountOpenByBook(ctx, nil, bookID)
	if err != nil {
		return fmt.Errorf("counting open loans: %w", err)
	}
	if open > 0 {
		return apperr.Conflict("book %s has %d open loans", bookID, open)
	}

	if err := bs.bookRepo.Delete(ctx, nil, bookID); err != nil {
		return err
	}
	bs.log.Info("Book removed from catalog", "book_id", bookID)
	return nil
}
