package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/types"
)

func newStatsFixture(t *testing.T) (*statsService, *fakeBookRepo, *fakeMemberRepo, *fakeTransactionRepo) {
	t.Helper()
	books := newFakeBookRepo()
	members := newFakeMemberRepo()
	transactions := newFakeTransactionRepo()

	svc := NewStatsService(
		nil,
		testLogger(t),
		books,
		members,
		transactions,
		newFakeReservationRepo(),
		newFakeFineRepo(),
		newFakeActivityRepo(),
	).(*statsService)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }

	return svc, books, members, transactions
}

func TestGetStats_DerivesFromLedgers(t *testing.T) {
	svc, books, members, transactions := newStatsFixture(t)
	now := svc.now()

	books.put(&types.Book{ID: uuid.New(), TotalCopies: 3, AvailableCopies: 3})
	books.put(&types.Book{ID: uuid.New(), TotalCopies: 2, AvailableCopies: 1})
	members.put(&types.Member{ID: uuid.New(), Status: types.MemberStatusActive})
	members.put(&types.Member{ID: uuid.New(), Status: types.MemberStatusSuspended})
	transactions.put(&types.Transaction{
		ID:              uuid.New(),
		BookID:          uuid.New(),
		MemberID:        uuid.New(),
		TransactionType: types.TransactionTypeCheckout,
		DueDate:         now.Add(-24 * time.Hour),
	})

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalBooks != 5 {
		t.Fatalf("TotalBooks = %d, want 5", stats.TotalBooks)
	}
	if stats.ActiveMembers != 1 {
		t.Fatalf("ActiveMembers = %d, want 1", stats.ActiveMembers)
	}
	if stats.BooksIssued != 1 {
		t.Fatalf("BooksIssued = %d, want 1", stats.BooksIssued)
	}
	if stats.OverdueBooks != 1 {
		t.Fatalf("OverdueBooks = %d, want 1", stats.OverdueBooks)
	}
}

func TestGetStats_CachesUntilInvalidated(t *testing.T) {
	svc, books, _, _ := newStatsFixture(t)

	books.put(&types.Book{ID: uuid.New(), TotalCopies: 1, AvailableCopies: 1})
	first, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if first.TotalBooks != 1 {
		t.Fatalf("TotalBooks = %d, want 1", first.TotalBooks)
	}

	// A write lands but the snapshot is still inside its TTL.
	books.put(&types.Book{ID: uuid.New(), TotalCopies: 4, AvailableCopies: 4})
	second, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if second.TotalBooks != 1 {
		t.Fatalf("expected the cached snapshot, got TotalBooks=%d", second.TotalBooks)
	}

	svc.Invalidate()
	third, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if third.TotalBooks != 5 {
		t.Fatalf("expected a fresh snapshot after invalidation, got TotalBooks=%d", third.TotalBooks)
	}
}
