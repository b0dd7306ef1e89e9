package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/sse"
	"github.com/openshelf/openshelf-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeNotifier records emitted events in order.
type fakeNotifier struct {
	mu     sync.Mutex
	events []sse.SSEEvent
}

func (n *fakeNotifier) Emit(ctx context.Context, event sse.SSEEvent, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) has(event sse.SSEEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeBookRepo mirrors the conditional-update semantics of the real repo:
// decrement refuses at zero, increment refuses above total.
type fakeBookRepo struct {
	mu    sync.Mutex
	books map[uuid.UUID]*types.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[uuid.UUID]*types.Book)}
}

func (r *fakeBookRepo) put(b *types.Book) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.books[b.ID] = &cp
}

func (r *fakeBookRepo) available(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[id].AvailableCopies
}

func (r *fakeBookRepo) Create(ctx context.Context, tx *gorm.DB, books []*types.Book) ([]*types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range books {
		cp := *b
		r.books[b.ID] = &cp
	}
	return books, nil
}

func (r *fakeBookRepo) GetByIDs(ctx context.Context, tx *gorm.DB, bookIDs []uuid.UUID) ([]*types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Book
	for _, id := range bookIDs {
		if b, ok := r.books[id]; ok {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBookRepo) GetByID(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (*types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Book
	for _, b := range r.books {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeBookRepo) DecrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return apperr.NotFound("book %s not found", bookID)
	}
	if b.AvailableCopies <= 0 {
		return apperr.Precondition(apperr.CodeInventoryExhausted, "book %s has no available copies", bookID)
	}
	b.AvailableCopies--
	return nil
}

func (r *fakeBookRepo) IncrementAvailable(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return apperr.NotFound("book %s not found", bookID)
	}
	if b.AvailableCopies >= b.TotalCopies {
		return apperr.Integrity("book %s already has all %d copies available", bookID, b.TotalCopies)
	}
	b.AvailableCopies++
	return nil
}

func (r *fakeBookRepo) Delete(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[bookID]; !ok {
		return apperr.NotFound("book %s not found", bookID)
	}
	delete(r.books, bookID)
	return nil
}

func (r *fakeBookRepo) SumTotalCopies(ctx context.Context, tx *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, b := range r.books {
		sum += int64(b.TotalCopies)
	}
	return sum, nil
}

type fakeMemberRepo struct {
	mu         sync.Mutex
	members    map[uuid.UUID]*types.Member
	mismatches []*repos.SlotMismatch
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[uuid.UUID]*types.Member)}
}

func (r *fakeMemberRepo) put(m *types.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.members[m.ID] = &cp
}

func (r *fakeMemberRepo) issued(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id].CurrentBooksIssued
}

func (r *fakeMemberRepo) fineBalance(id uuid.UUID) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id].FineAmount
}

func (r *fakeMemberRepo) Create(ctx context.Context, tx *gorm.DB, members []*types.Member) ([]*types.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range members {
		cp := *m
		r.members[m.ID] = &cp
	}
	return members, nil
}

func (r *fakeMemberRepo) GetByIDs(ctx context.Context, tx *gorm.DB, memberIDs []uuid.UUID) ([]*types.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Member
	for _, id := range memberIDs {
		if m, ok := r.members[id]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*types.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepo) GetByProfileID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) (*types.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ProfileID == profileID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) GetByMembershipNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.MembershipNumber == number {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) ReserveLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	if m.CurrentBooksIssued >= m.MaxBooksAllowed {
		return apperr.Precondition(apperr.CodeQuotaExceeded, "member %s has reached the borrowing quota of %d", memberID, m.MaxBooksAllowed)
	}
	m.CurrentBooksIssued++
	return nil
}

func (r *fakeMemberRepo) ReleaseLoanSlot(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	if m.CurrentBooksIssued > 0 {
		m.CurrentBooksIssued--
	}
	return nil
}

func (r *fakeMemberRepo) AddFine(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	m.FineAmount += amount
	return nil
}

func (r *fakeMemberRepo) SettleFineAmount(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	m.FineAmount -= amount
	if m.FineAmount < 0 {
		m.FineAmount = 0
	}
	return nil
}

func (r *fakeMemberRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	m.Status = status
	return nil
}

func (r *fakeMemberRepo) CountActive(ctx context.Context, tx *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.members {
		if m.Status == types.MemberStatusActive {
			n++
		}
	}
	return n, nil
}

func (r *fakeMemberRepo) FindSlotMismatches(ctx context.Context, tx *gorm.DB, updatedBefore time.Time) ([]*repos.SlotMismatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mismatches, nil
}

func (r *fakeMemberRepo) SetBooksIssued(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return apperr.NotFound("member %s not found", memberID)
	}
	if m.CurrentBooksIssued != from {
		return apperr.Conflict("member %s moved from %d while reconciling", memberID, from)
	}
	m.CurrentBooksIssued = to
	return nil
}

type fakeTransactionRepo struct {
	mu    sync.Mutex
	txns  map[uuid.UUID]*types.Transaction
	fines *fakeFineRepo
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txns: make(map[uuid.UUID]*types.Transaction)}
}

func (r *fakeTransactionRepo) put(t *types.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.txns[t.ID] = &cp
}

func (r *fakeTransactionRepo) get(id uuid.UUID) *types.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.txns[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

func (r *fakeTransactionRepo) Create(ctx context.Context, tx *gorm.DB, txns []*types.Transaction) ([]*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range txns {
		cp := *t
		r.txns[t.ID] = &cp
	}
	return txns, nil
}

func (r *fakeTransactionRepo) GetByID(ctx context.Context, tx *gorm.DB, txnID uuid.UUID) (*types.Transaction, error) {
	return r.get(txnID), nil
}

func (r *fakeTransactionRepo) FindOpenByBookAndMember(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID) (*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.BookID == bookID && t.MemberID == memberID && t.IsOpen() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) CloseReturn(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, returnDate time.Time, fineAmount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[txnID]
	if !ok {
		return apperr.NotFound("transaction %s not found", txnID)
	}
	if t.ReturnDate != nil {
		return apperr.Precondition(apperr.CodeAlreadyReturned, "transaction %s already returned", txnID)
	}
	rd := returnDate
	t.ReturnDate = &rd
	fa := fineAmount
	t.FineAmount = &fa
	return nil
}

func (r *fakeTransactionRepo) RenewDueDate(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, newDueDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[txnID]
	if !ok {
		return apperr.NotFound("transaction %s not found", txnID)
	}
	if t.ReturnDate != nil {
		return apperr.Precondition(apperr.CodeRenewalNotAllowed, "transaction %s is closed", txnID)
	}
	t.DueDate = newDueDate
	return nil
}

func (r *fakeTransactionRepo) SetFineAmount(ctx context.Context, tx *gorm.DB, txnID uuid.UUID, fineAmount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[txnID]
	if !ok {
		return apperr.NotFound("transaction %s not found", txnID)
	}
	fa := fineAmount
	t.FineAmount = &fa
	return nil
}

func (r *fakeTransactionRepo) CountOpen(ctx context.Context, tx *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.txns {
		if t.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactionRepo) CountOpenByBook(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.txns {
		if t.BookID == bookID && t.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactionRepo) CountOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.txns {
		if t.IsOpen() && t.DueDate.Before(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactionRepo) ListOpenByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Transaction
	for _, t := range r.txns {
		if t.MemberID == memberID && t.IsOpen() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Transaction
	for _, t := range r.txns {
		if t.IsOpen() && t.DueDate.Before(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) FindUnpostedFines(ctx context.Context, tx *gorm.DB, returnedBefore time.Time, limit int) ([]*types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Transaction
	for _, t := range r.txns {
		if t.ReturnDate == nil || t.FineAmount == nil || *t.FineAmount <= 0 {
			continue
		}
		if !t.ReturnDate.Before(returnedBefore) {
			continue
		}
		if r.fines != nil && r.fines.hasForTransaction(t.ID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type fakeReservationRepo struct {
	mu    sync.Mutex
	holds map[uuid.UUID]*types.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{holds: make(map[uuid.UUID]*types.Reservation)}
}

func (r *fakeReservationRepo) put(h *types.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *h
	r.holds[h.ID] = &cp
}

func (r *fakeReservationRepo) get(id uuid.UUID) *types.Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.holds[id]; ok {
		cp := *h
		return &cp
	}
	return nil
}

func (r *fakeReservationRepo) Create(ctx context.Context, tx *gorm.DB, holds []*types.Reservation) ([]*types.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range holds {
		cp := *h
		r.holds[h.ID] = &cp
	}
	return holds, nil
}

func (r *fakeReservationRepo) GetByID(ctx context.Context, tx *gorm.DB, holdID uuid.UUID) (*types.Reservation, error) {
	return r.get(holdID), nil
}

func (r *fakeReservationRepo) HasActiveHold(ctx context.Context, tx *gorm.DB, bookID, memberID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.holds {
		if h.BookID == bookID && h.MemberID == memberID && h.Status == types.ReservationStatusActive && h.ExpiryDate.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReservationRepo) HasAnyActiveHold(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.holds {
		if h.BookID == bookID && h.Status == types.ReservationStatusActive && h.ExpiryDate.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReservationRepo) NextEligible(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (*types.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var eligible []*types.Reservation
	for _, h := range r.holds {
		if h.BookID == bookID && h.Status == types.ReservationStatusActive && h.ExpiryDate.After(now) {
			eligible = append(eligible, h)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ReservationDate.Before(eligible[j].ReservationDate)
	})
	cp := *eligible[0]
	return &cp, nil
}

func (r *fakeReservationRepo) Resolve(ctx context.Context, tx *gorm.DB, holdID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holds[holdID]
	if !ok {
		return apperr.NotFound("hold %s not found", holdID)
	}
	if h.Status != types.ReservationStatusActive {
		return apperr.Conflict("hold %s is already %s", holdID, h.Status)
	}
	h.Status = status
	return nil
}

func (r *fakeReservationRepo) MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, h := range r.holds {
		if h.Status == types.ReservationStatusActive && !h.ExpiryDate.After(now) {
			h.Status = types.ReservationStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeReservationRepo) CountActive(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, h := range r.holds {
		if h.Status == types.ReservationStatusActive && h.ExpiryDate.After(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeReservationRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Reservation
	for _, h := range r.holds {
		if h.MemberID == memberID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeFineRepo struct {
	mu    sync.Mutex
	fines map[uuid.UUID]*types.Fine
}

func newFakeFineRepo() *fakeFineRepo {
	return &fakeFineRepo{fines: make(map[uuid.UUID]*types.Fine)}
}

func (r *fakeFineRepo) put(f *types.Fine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.fines[f.ID] = &cp
}

func (r *fakeFineRepo) get(id uuid.UUID) *types.Fine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fines[id]; ok {
		cp := *f
		return &cp
	}
	return nil
}

func (r *fakeFineRepo) Create(ctx context.Context, tx *gorm.DB, fines []*types.Fine) ([]*types.Fine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fines {
		if f.Amount <= 0 {
			return nil, apperr.Validation("fine amount must be positive, got %v", f.Amount)
		}
		cp := *f
		r.fines[f.ID] = &cp
	}
	return fines, nil
}

func (r *fakeFineRepo) GetByID(ctx context.Context, tx *gorm.DB, fineID uuid.UUID) (*types.Fine, error) {
	return r.get(fineID), nil
}

func (r *fakeFineRepo) Settle(ctx context.Context, tx *gorm.DB, fineID uuid.UUID, status string, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fines[fineID]
	if !ok {
		return apperr.NotFound("fine %s not found", fineID)
	}
	if f.Status != types.FineStatusPending {
		return apperr.Conflict("fine %s is already %s", fineID, f.Status)
	}
	f.Status = status
	f.PaidAt = paidAt
	return nil
}

func (r *fakeFineRepo) hasForTransaction(txnID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.fines {
		if f.TransactionID != nil && *f.TransactionID == txnID {
			return true
		}
	}
	return false
}

func (r *fakeFineRepo) SumPending(ctx context.Context, tx *gorm.DB) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, f := range r.fines {
		if f.Status == types.FineStatusPending {
			sum += f.Amount
		}
	}
	return sum, nil
}

func (r *fakeFineRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) ([]*types.Fine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Fine
	for _, f := range r.fines {
		if f.MemberID == memberID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*types.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]*types.Profile)}
}

func (r *fakeProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.Profile) ([]*types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range profiles {
		cp := *p
		r.profiles[p.ID] = &cp
	}
	return profiles, nil
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, profileID uuid.UUID) (*types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[profileID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeProfileRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProfileRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	p, _ := r.GetByEmail(ctx, tx, email)
	return p != nil, nil
}

type fakeActivityRepo struct {
	mu     sync.Mutex
	events []*types.ActivityEvent
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{}
}

func (r *fakeActivityRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) ([]*types.ActivityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return events, nil
}

func (r *fakeActivityRepo) Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ActivityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.events) {
		limit = len(r.events)
	}
	return r.events[len(r.events)-limit:], nil
}
