package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/sse"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type CheckoutResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	DueDate       time.Time `json:"due_date"`
}

type ReturnResult struct {
	FineAmount      float64    `json:"fine_amount"`
	FulfilledHoldID *uuid.UUID `json:"fulfilled_hold_id,omitempty"`
}

type RenewResult struct {
	NewDueDate time.Time `json:"new_due_date"`
}

// CirculationService is the coordinator: it drives a copy and a member
// through checkout, return and renewal under saga discipline. Each ledger
// step commits on its own; a failed step triggers explicit compensation of
// the steps already committed, never a database rollback across them.
type CirculationService interface {
	Checkout(ctx context.Context, bookID, memberID uuid.UUID, librarianID *uuid.UUID) (*CheckoutResult, error)
	Return(ctx context.Context, transactionID uuid.UUID, returnDate *time.Time, onBehalfOf *uuid.UUID) (*ReturnResult, error)
	Renew(ctx context.Context, transactionID uuid.UUID, onBehalfOf *uuid.UUID) (*RenewResult, error)
	ListMemberLoans(ctx context.Context, memberID uuid.UUID) ([]*types.Transaction, error)
	ListOverdue(ctx context.Context, limit int) ([]*types.Transaction, error)
	SweepExpiredHolds(ctx context.Context) (int64, error)
	ReconcileLoanSlots(ctx context.Context) (int, error)
	ReconcileFines(ctx context.Context) (int, error)
	StartSweeper(ctx context.Context)
}

type circulationService struct {
	db              *gorm.DB
	log             *logger.Logger
	policy          CirculationPolicy
	bookRepo        repos.BookRepo
	memberRepo      repos.MemberRepo
	transactionRepo repos.TransactionRepo
	reservationRepo repos.ReservationRepo
	fineRepo        repos.FineRepo
	activityRepo    repos.ActivityEventRepo
	notifier        Notifier
	now             func() time.Time
}

func NewCirculationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy CirculationPolicy,
	bookRepo repos.BookRepo,
	memberRepo repos.MemberRepo,
	transactionRepo repos.TransactionRepo,
	reservationRepo repos.ReservationRepo,
	fineRepo repos.FineRepo,
	activityRepo repos.ActivityEventRepo,
	notifier Notifier,
) CirculationService {
	serviceLog := baseLog.With("service", "CirculationService")
	return &circulationService{
		db:              db,
		log:             serviceLog,
		policy:          policy,
		bookRepo:        bookRepo,
		memberRepo:      memberRepo,
		transactionRepo: transactionRepo,
		reservationRepo: reservationRepo,
		fineRepo:        fineRepo,
		activityRepo:    activityRepo,
		notifier:        notifier,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Checkout runs the checkout protocol: eligibility, loan slot, inventory,
// transaction record — cheapest and most reversible first, the durable
// record last, so an abort compensates at most two committed steps.
func (cs *circulationService) Checkout(ctx context.Context, bookID, memberID uuid.UUID, librarianID *uuid.UUID) (*CheckoutResult, error) {
	if bookID == uuid.Nil {
		return nil, apperr.Validation("missing book id")
	}
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}

	// Step 1: eligibility. Nothing has been written yet, so any failure here
	// aborts with no compensation.
	if err := cs.checkMemberEligibility(ctx, memberID); err != nil {
		return nil, err
	}
	existing, err := cs.transactionRepo.FindOpenByBookAndMember(ctx, nil, bookID, memberID)
	if err != nil {
		return nil, fmt.Errorf("checking open loans: %w", err)
	}
	if existing != nil {
		return nil, apperr.Precondition(apperr.CodeDuplicateOpenLoan, "member %s already has book %s checked out", memberID, bookID)
	}

	// Step 2: reserve a loan slot.
	if err := cs.memberRepo.ReserveLoanSlot(ctx, nil, memberID); err != nil {
		return nil, err
	}

	// Step 3: take a copy. Losing the inventory race undoes step 2.
	if err := cs.bookRepo.DecrementAvailable(ctx, nil, bookID); err != nil {
		cs.compensate(ctx, "release loan slot", func() error {
			return cs.memberRepo.ReleaseLoanSlot(ctx, nil, memberID)
		})
		return nil, err
	}

	// Step 4: durable record. A failure here undoes steps 3 and 2, in that
	// order.
	now := cs.now()
	txn := &types.Transaction{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        memberID,
		LibrarianID:     librarianID,
		TransactionType: types.TransactionTypeCheckout,
		CheckoutDate:    now,
		DueDate:         now.Add(cs.policy.LoanPeriod()),
	}
	if _, err := cs.transactionRepo.Create(ctx, nil, []*types.Transaction{txn}); err != nil {
		cs.compensate(ctx, "re-increment availability", func() error {
			return cs.bookRepo.IncrementAvailable(ctx, nil, bookID)
		})
		cs.compensate(ctx, "release loan slot", func() error {
			return cs.memberRepo.ReleaseLoanSlot(ctx, nil, memberID)
		})
		return nil, fmt.Errorf("opening checkout transaction: %w", err)
	}

	cs.recordActivity(ctx, types.ActivityCheckout, &bookID, &memberID, map[string]any{
		"transaction_id": txn.ID,
		"due_date":       txn.DueDate,
	})
	if cs.notifier != nil {
		cs.notifier.Emit(ctx, sse.SSEEventBookCheckedOut, map[string]any{"book_id": bookID, "member_id": memberID})
	}

	cs.log.Info("Checkout complete", "book_id", bookID, "member_id", memberID, "transaction_id", txn.ID)
	return &CheckoutResult{TransactionID: txn.ID, DueDate: txn.DueDate}, nil
}

// Return closes the loan, frees the quota and the copy, posts any fine, and
// hands the copy straight to the next eligible hold so it never shows as
// available while someone is waiting. A non-nil onBehalfOf restricts the
// operation to that member's own transactions; staff callers pass nil.
func (cs *circulationService) Return(ctx context.Context, transactionID uuid.UUID, returnDate *time.Time, onBehalfOf *uuid.UUID) (*ReturnResult, error) {
	if transactionID == uuid.Nil {
		return nil, apperr.Validation("missing transaction id")
	}

	txn, err := cs.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction: %w", err)
	}
	if txn == nil {
		return nil, apperr.NotFound("transaction %s not found", transactionID)
	}
	if onBehalfOf != nil && txn.MemberID != *onBehalfOf {
		return nil, apperr.Forbidden("transaction %s belongs to another member", transactionID)
	}
	if !txn.IsOpen() {
		return nil, apperr.Precondition(apperr.CodeAlreadyReturned, "transaction %s is not an open checkout", transactionID)
	}

	returned := cs.now()
	if returnDate != nil {
		returned = returnDate.UTC()
	}
	fine := ComputeFine(txn.DueDate, returned, cs.policy)

	// Step 1: close the transaction. The row is immutable from here on.
	if err := cs.transactionRepo.CloseReturn(ctx, nil, transactionID, returned, fine); err != nil {
		return nil, err
	}

	// Steps 2 and 3 cannot be compensated by reopening the transaction; a
	// failure leaves a counted mismatch that ReconcileLoanSlots detects.
	if err := cs.memberRepo.ReleaseLoanSlot(ctx, nil, txn.MemberID); err != nil {
		return nil, fmt.Errorf("releasing loan slot after return (reconciliation will retry): %w", err)
	}
	if err := cs.bookRepo.IncrementAvailable(ctx, nil, txn.BookID); err != nil {
		return nil, fmt.Errorf("restoring availability after return (reconciliation will retry): %w", err)
	}

	// Step 4: the fine row and the member balance move together or not at
	// all.
	if fine > 0 {
		if err := cs.postFine(ctx, txn, fine); err != nil {
			return nil, err
		}
	}

	cs.recordActivity(ctx, types.ActivityReturn, &txn.BookID, &txn.MemberID, map[string]any{
		"transaction_id": txn.ID,
		"fine_amount":    fine,
	})
	if cs.notifier != nil {
		cs.notifier.Emit(ctx, sse.SSEEventBookReturned, map[string]any{"book_id": txn.BookID, "member_id": txn.MemberID})
	}

	result := &ReturnResult{FineAmount: fine}

	// Step 5: fulfill the oldest eligible hold by re-running the checkout
	// protocol for the holder.
	holdID, err := cs.fulfillNextHold(ctx, txn.BookID)
	if err != nil {
		cs.log.Warn("Hold fulfillment failed, copy left available", "book_id", txn.BookID, "error", err)
	} else if holdID != nil {
		result.FulfilledHoldID = holdID
	}

	cs.log.Info("Return complete", "transaction_id", transactionID, "fine", fine)
	return result, nil
}

// Renew extends the due date in place. It touches neither inventory nor
// quota counts. Renewals are uncapped as long as nobody is waiting and the
// member's fines are under the ceiling; the count is deliberately unlimited,
// matching the behavior this system replaces.
func (cs *circulationService) Renew(ctx context.Context, transactionID uuid.UUID, onBehalfOf *uuid.UUID) (*RenewResult, error) {
	if transactionID == uuid.Nil {
		return nil, apperr.Validation("missing transaction id")
	}

	txn, err := cs.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction: %w", err)
	}
	if txn == nil {
		return nil, apperr.NotFound("transaction %s not found", transactionID)
	}
	if onBehalfOf != nil && txn.MemberID != *onBehalfOf {
		return nil, apperr.Forbidden("transaction %s belongs to another member", transactionID)
	}
	if !txn.IsOpen() {
		return nil, apperr.Precondition(apperr.CodeRenewalNotAllowed, "transaction %s is not an open checkout", transactionID)
	}

	now := cs.now()
	waiting, err := cs.reservationRepo.HasAnyActiveHold(ctx, nil, txn.BookID, now)
	if err != nil {
		return nil, fmt.Errorf("checking holds: %w", err)
	}
	if waiting {
		return nil, apperr.Precondition(apperr.CodeRenewalNotAllowed, "book %s has a pending hold", txn.BookID)
	}

	member, err := cs.memberRepo.GetByID(ctx, nil, txn.MemberID)
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	if member == nil {
		return nil, apperr.NotFound("member %s not found", txn.MemberID)
	}
	if member.FineAmount > cs.policy.FineCeiling {
		return nil, apperr.Precondition(apperr.CodeFineLimitExceeded, "member %s owes %.2f, above the ceiling of %.2f", member.ID, member.FineAmount, cs.policy.FineCeiling)
	}

	newDue := now.Add(cs.policy.LoanPeriod())
	if err := cs.transactionRepo.RenewDueDate(ctx, nil, transactionID, newDue); err != nil {
		return nil, err
	}

	if cs.notifier != nil {
		cs.notifier.Emit(ctx, sse.SSEEventLoanRenewed, map[string]any{"transaction_id": transactionID})
	}
	return &RenewResult{NewDueDate: newDue}, nil
}

func (cs *circulationService) ListMemberLoans(ctx context.Context, memberID uuid.UUID) ([]*types.Transaction, error) {
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}
	loans, err := cs.transactionRepo.ListOpenByMember(ctx, nil, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	return loans, nil
}

// ListOverdue is the staff report: open checkouts past their due date,
// oldest first.
func (cs *circulationService) ListOverdue(ctx context.Context, limit int) ([]*types.Transaction, error) {
	overdue, err := cs.transactionRepo.ListOverdue(ctx, nil, cs.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing overdue loans: %w", err)
	}
	return overdue, nil
}

// SweepExpiredHolds persists the expired status for holds past their window.
// Availability is untouched: a hold never consumed a copy, only a place in
// line.
func (cs *circulationService) SweepExpiredHolds(ctx context.Context) (int64, error) {
	n, err := cs.reservationRepo.MarkExpired(ctx, nil, cs.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired holds: %w", err)
	}
	if n > 0 {
		cs.log.Info("Expired holds swept", "count", n)
	}
	return n, nil
}

// ReconcileLoanSlots repairs the partial states a dead saga can leave
// behind: a loan slot reserved with no matching open transaction (or the
// reverse). Only members untouched for longer than the policy window are
// considered, so in-flight checkouts are never disturbed.
func (cs *circulationService) ReconcileLoanSlots(ctx context.Context) (int, error) {
	cutoff := cs.now().Add(-cs.policy.ReconcileAfter)
	mismatches, err := cs.memberRepo.FindSlotMismatches(ctx, nil, cutoff)
	if err != nil {
		return 0, fmt.Errorf("finding slot mismatches: %w", err)
	}

	fixed := 0
	for _, m := range mismatches {
		if err := cs.memberRepo.SetBooksIssued(ctx, nil, m.MemberID, m.Issued, m.OpenCount); err != nil {
			// A concurrent checkout moved the counter; this member is live
			// again and no longer ours to correct.
			cs.log.Warn("Skipping reconciliation for active member", "member_id", m.MemberID, "error", err)
			continue
		}
		cs.log.Info("Reconciled loan slots", "member_id", m.MemberID, "from", m.Issued, "to", m.OpenCount)
		fixed++
	}
	return fixed, nil
}

// ReconcileFines repairs the other partial state a return can leave behind:
// a closed transaction stamped with a fine the posting step never committed
// (no fine row, no balance increase). Only returns older than the policy
// window are considered, so a return whose posting is still in flight is
// never double-charged.
func (cs *circulationService) ReconcileFines(ctx context.Context) (int, error) {
	cutoff := cs.now().Add(-cs.policy.ReconcileAfter)
	orphans, err := cs.transactionRepo.FindUnpostedFines(ctx, nil, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("finding unposted fines: %w", err)
	}

	posted := 0
	for _, txn := range orphans {
		if txn.FineAmount == nil || *txn.FineAmount <= 0 {
			continue
		}
		if err := cs.postFine(ctx, txn, *txn.FineAmount); err != nil {
			cs.log.Warn("Fine reconciliation failed for transaction", "transaction_id", txn.ID, "error", err)
			continue
		}
		cs.log.Info("Reconciled unposted fine", "transaction_id", txn.ID, "amount", *txn.FineAmount)
		posted++
	}
	return posted, nil
}

// StartSweeper runs the expiry and reconciliation sweeps on the policy
// interval until ctx is cancelled.
func (cs *circulationService) StartSweeper(ctx context.Context) {
	interval := cs.policy.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := cs.SweepExpiredHolds(ctx); err != nil {
					cs.log.Error("Expiry sweep failed", "error", err)
				}
				if _, err := cs.ReconcileLoanSlots(ctx); err != nil {
					cs.log.Error("Reconciliation sweep failed", "error", err)
				}
				if _, err := cs.ReconcileFines(ctx); err != nil {
					cs.log.Error("Fine reconciliation sweep failed", "error", err)
				}
			}
		}
	}()
}

func (cs *circulationService) checkMemberEligibility(ctx context.Context, memberID uuid.UUID) error {
	member, err := cs.memberRepo.GetByID(ctx, nil, memberID)
	if err != nil {
		return fmt.Errorf("loading member: %w", err)
	}
	if member == nil {
		return apperr.NotFound("member %s not found", memberID)
	}
	if member.Status != types.MemberStatusActive {
		return apperr.Precondition(apperr.CodeMembershipInactive, "member %s is %s", memberID, member.Status)
	}
	if member.ExpiryDate.Before(cs.now()) {
		return apperr.Precondition(apperr.CodeMembershipInactive, "membership of %s expired on %s", memberID, member.ExpiryDate.Format("2006-01-02"))
	}
	if member.FineAmount > cs.policy.FineCeiling {
		return apperr.Precondition(apperr.CodeFineLimitExceeded, "member %s owes %.2f, above the ceiling of %.2f", memberID, member.FineAmount, cs.policy.FineCeiling)
	}
	return nil
}

// postFine writes the fine row and the member balance increase in a single
// database transaction; the two are never observably split.
func (cs *circulationService) postFine(ctx context.Context, txn *types.Transaction, amount float64) error {
	return runInTx(ctx, cs.db, func(dbtx *gorm.DB) error {
		fine := &types.Fine{
			ID:            uuid.New(),
			MemberID:      txn.MemberID,
			TransactionID: &txn.ID,
			Amount:        amount,
			Reason:        "overdue return",
			Status:        types.FineStatusPending,
			CreatedAt:     cs.now(),
		}
		if _, err := cs.fineRepo.Create(ctx, dbtx, []*types.Fine{fine}); err != nil {
			return fmt.Errorf("creating fine: %w", err)
		}
		if err := cs.memberRepo.AddFine(ctx, dbtx, txn.MemberID, amount); err != nil {
			return fmt.Errorf("adding fine to member balance: %w", err)
		}
		return nil
	})
}

// fulfillNextHold converts the oldest eligible hold into a checkout. The
// copy freed by the return is consumed again inside the protocol, so
// availability never visibly rises while a hold is waiting.
func (cs *circulationService) fulfillNextHold(ctx context.Context, bookID uuid.UUID) (*uuid.UUID, error) {
	hold, err := cs.reservationRepo.NextEligible(ctx, nil, bookID, cs.now())
	if err != nil {
		return nil, fmt.Errorf("finding next hold: %w", err)
	}
	if hold == nil {
		return nil, nil
	}

	if _, err := cs.Checkout(ctx, bookID, hold.MemberID, nil); err != nil {
		return nil, fmt.Errorf("checkout for holder %s: %w", hold.MemberID, err)
	}
	if err := cs.reservationRepo.Resolve(ctx, nil, hold.ID, types.ReservationStatusFulfilled); err != nil {
		return nil, fmt.Errorf("marking hold fulfilled: %w", err)
	}

	if cs.notifier != nil {
		cs.notifier.Emit(ctx, sse.SSEEventHoldFulfilled, map[string]any{"hold_id": hold.ID, "book_id": bookID})
	}
	cs.log.Info("Hold fulfilled on return", "hold_id", hold.ID, "book_id", bookID, "member_id", hold.MemberID)
	return &hold.ID, nil
}

// compensate runs one undo step of a failed saga. An undo that itself fails
// is loud: the partial state it leaves is exactly what ReconcileLoanSlots
// exists to repair.
func (cs *circulationService) compensate(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		cs.log.Error("Compensation failed, reconciliation will repair", "step", what, "error", err)
	}
}

func (cs *circulationService) recordActivity(ctx context.Context, kind string, bookID, memberID *uuid.UUID, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		cs.log.Warn("Failed to marshal activity payload", "type", kind, "error", err)
		raw = nil
	}
	event := &types.ActivityEvent{
		ID:        uuid.New(),
		Type:      kind,
		BookID:    bookID,
		MemberID:  memberID,
		Data:      datatypes.JSON(raw),
		CreatedAt: cs.now(),
	}
	if _, err := cs.activityRepo.Create(ctx, nil, []*types.ActivityEvent{event}); err != nil {
		cs.log.Warn("Failed to record activity event", "type", kind, "error", err)
	}
}
