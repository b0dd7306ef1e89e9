package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type reservationFixture struct {
	svc          *reservationService
	books        *fakeBookRepo
	members      *fakeMemberRepo
	reservations *fakeReservationRepo
	now          time.Time
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()
	books := newFakeBookRepo()
	members := newFakeMemberRepo()
	reservations := newFakeReservationRepo()

	svc := NewReservationService(
		nil,
		testLogger(t),
		testPolicy(),
		books,
		members,
		reservations,
		newFakeActivityRepo(),
		&fakeNotifier{},
	).(*reservationService)

	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &reservationFixture{
		svc:          svc,
		books:        books,
		members:      members,
		reservations: reservations,
		now:          now,
	}
}

func (f *reservationFixture) addBook(available int) uuid.UUID {
	id := uuid.New()
	f.books.put(&types.Book{
		ID:              id,
		Title:           "test title",
		TotalCopies:     3,
		AvailableCopies: available,
	})
	return id
}

func (f *reservationFixture) addMember() uuid.UUID {
	id := uuid.New()
	f.members.put(&types.Member{
		ID:              id,
		Status:          types.MemberStatusActive,
		MaxBooksAllowed: 5,
		ExpiryDate:      f.now.Add(365 * 24 * time.Hour),
	})
	return id
}

func TestPlaceHold_OnExhaustedBook(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	result, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if err != nil {
		t.Fatalf("PlaceHold: %v", err)
	}
	wantExpiry := f.now.Add(7 * 24 * time.Hour)
	if !result.ExpiryDate.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v, got %v", wantExpiry, result.ExpiryDate)
	}
	hold := f.reservations.get(result.HoldID)
	if hold == nil || hold.Status != types.ReservationStatusActive {
		t.Fatalf("expected an active hold, got %+v", hold)
	}
	// Placing a hold never consumes inventory.
	if got := f.books.available(bookID); got != 0 {
		t.Fatalf("hold moved inventory: %d", got)
	}
}

func TestPlaceHold_RefusedWhileCopiesAvailable(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(2)
	memberID := f.addMember()

	_, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if apperr.CodeOf(err) != apperr.CodeBookAvailable {
		t.Fatalf("expected BOOK_AVAILABLE, got %v", err)
	}
}

func TestPlaceHold_DuplicateRefused(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	if _, err := f.svc.PlaceHold(context.Background(), bookID, memberID); err != nil {
		t.Fatalf("first PlaceHold: %v", err)
	}
	_, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if apperr.CodeOf(err) != apperr.CodeDuplicateHold {
		t.Fatalf("expected DUPLICATE_HOLD, got %v", err)
	}
}

func TestPlaceHold_AllowedAfterPreviousHoldExpired(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	f.reservations.put(&types.Reservation{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        memberID,
		ReservationDate: f.now.Add(-10 * 24 * time.Hour),
		ExpiryDate:      f.now.Add(-1 * time.Hour),
		Status:          types.ReservationStatusActive,
	})

	if _, err := f.svc.PlaceHold(context.Background(), bookID, memberID); err != nil {
		t.Fatalf("expired hold blocked a new one: %v", err)
	}
}

func TestPlaceHold_SuspendedMemberRefused(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := uuid.New()
	f.members.put(&types.Member{
		ID:         memberID,
		Status:     types.MemberStatusSuspended,
		ExpiryDate: f.now.Add(24 * time.Hour),
	})

	_, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if apperr.CodeOf(err) != apperr.CodeMembershipInactive {
		t.Fatalf("expected MEMBERSHIP_INACTIVE, got %v", err)
	}
}

func TestCancelHold_OwnerCancels(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	result, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if err != nil {
		t.Fatalf("PlaceHold: %v", err)
	}
	if err := f.svc.CancelHold(context.Background(), result.HoldID, memberID, false); err != nil {
		t.Fatalf("CancelHold: %v", err)
	}
	if got := f.reservations.get(result.HoldID).Status; got != types.ReservationStatusCancelled {
		t.Fatalf("hold status = %q, want cancelled", got)
	}
}

func TestCancelHold_StrangerForbidden(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	owner := f.addMember()
	stranger := f.addMember()

	result, err := f.svc.PlaceHold(context.Background(), bookID, owner)
	if err != nil {
		t.Fatalf("PlaceHold: %v", err)
	}
	err = f.svc.CancelHold(context.Background(), result.HoldID, stranger, false)
	if apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if got := f.reservations.get(result.HoldID).Status; got != types.ReservationStatusActive {
		t.Fatalf("hold status = %q, want active", got)
	}
}

func TestCancelHold_PrivilegedCallerCancelsAnyHold(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	owner := f.addMember()

	result, err := f.svc.PlaceHold(context.Background(), bookID, owner)
	if err != nil {
		t.Fatalf("PlaceHold: %v", err)
	}
	if err := f.svc.CancelHold(context.Background(), result.HoldID, uuid.Nil, true); err != nil {
		t.Fatalf("privileged CancelHold: %v", err)
	}
}

func TestCancelHold_ResolvedHoldConflicts(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	result, err := f.svc.PlaceHold(context.Background(), bookID, memberID)
	if err != nil {
		t.Fatalf("PlaceHold: %v", err)
	}
	if err := f.svc.CancelHold(context.Background(), result.HoldID, memberID, false); err != nil {
		t.Fatalf("first CancelHold: %v", err)
	}
	err = f.svc.CancelHold(context.Background(), result.HoldID, memberID, false)
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("expected CONFLICT on a resolved hold, got %v", err)
	}
}

func TestListMemberHolds_ReportsLazyExpiry(t *testing.T) {
	f := newReservationFixture(t)
	bookID := f.addBook(0)
	memberID := f.addMember()

	stale := &types.Reservation{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        memberID,
		ReservationDate: f.now.Add(-10 * 24 * time.Hour),
		ExpiryDate:      f.now.Add(-1 * time.Hour),
		Status:          types.ReservationStatusActive,
	}
	f.reservations.put(stale)

	holds, err := f.svc.ListMemberHolds(context.Background(), memberID)
	if err != nil {
		t.Fatalf("ListMemberHolds: %v", err)
	}
	if len(holds) != 1 {
		t.Fatalf("expected 1 hold, got %d", len(holds))
	}
	if holds[0].Status != types.ReservationStatusExpired {
		t.Fatalf("expected expired in the listing, got %q", holds[0].Status)
	}
	// The stored row is untouched until a sweep persists the transition.
	if got := f.reservations.get(stale.ID).Status; got != types.ReservationStatusActive {
		t.Fatalf("listing mutated the stored status: %q", got)
	}
}
