package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/types"
)

func newBookFixture(t *testing.T) (*bookService, *fakeBookRepo, *fakeTransactionRepo) {
	t.Helper()
	books := newFakeBookRepo()
	transactions := newFakeTransactionRepo()
	svc := NewBookService(nil, testLogger(t), books, transactions).(*bookService)
	return svc, books, transactions
}

func TestDeleteBook_RefusedWithOpenLoans(t *testing.T) {
	svc, books, transactions := newBookFixture(t)
	bookID := uuid.New()
	books.put(&types.Book{ID: bookID, Title: "on loan", TotalCopies: 1, AvailableCopies: 0})
	transactions.put(&types.Transaction{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        uuid.New(),
		TransactionType: types.TransactionTypeCheckout,
		DueDate:         time.Now().Add(24 * time.Hour),
	})

	err := svc.Delete(context.Background(), bookID)
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("expected CONFLICT while a loan is open, got %v", err)
	}
	if b, _ := books.GetByID(context.Background(), nil, bookID); b == nil {
		t.Fatalf("book deleted despite open loan")
	}
}

func TestDeleteBook_AllowedOnceLoansClosed(t *testing.T) {
	svc, books, transactions := newBookFixture(t)
	bookID := uuid.New()
	books.put(&types.Book{ID: bookID, Title: "retired", TotalCopies: 1, AvailableCopies: 1})
	returned := time.Now().Add(-time.Hour)
	transactions.put(&types.Transaction{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        uuid.New(),
		TransactionType: types.TransactionTypeCheckout,
		DueDate:         time.Now().Add(-48 * time.Hour),
		ReturnDate:      &returned,
	})

	if err := svc.Delete(context.Background(), bookID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if b, _ := books.GetByID(context.Background(), nil, bookID); b != nil {
		t.Fatalf("book still in catalog after delete")
	}
}

func TestDeleteBook_Unknown(t *testing.T) {
	svc, _, _ := newBookFixture(t)

	err := svc.Delete(context.Background(), uuid.New())
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
