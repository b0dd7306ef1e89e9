package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/sse"
	"github.com/openshelf/openshelf-backend/internal/types"
)

const (
	SettleOutcomePaid   = "paid"
	SettleOutcomeWaived = "waived"
)

// FineService settles and assesses fines. A settlement moves the fine row
// and the member's balance in one database transaction: a paid fine with an
// unchanged balance (or the reverse) is never observable.
type FineService interface {
	Settle(ctx context.Context, fineID uuid.UUID, outcome string) error
	Assess(ctx context.Context, transactionID uuid.UUID, amount float64, reason string) (*types.Fine, error)
	CorrectTransactionFine(ctx context.Context, transactionID uuid.UUID, amount float64) error
	Preview(ctx context.Context, transactionID uuid.UUID, returnDate time.Time) (float64, error)
	ListMemberFines(ctx context.Context, memberID uuid.UUID) ([]*types.Fine, error)
}

type fineService struct {
	db              *gorm.DB
	log             *logger.Logger
	policy          CirculationPolicy
	fineRepo        repos.FineRepo
	memberRepo      repos.MemberRepo
	transactionRepo repos.TransactionRepo
	notifier        Notifier
	now             func() time.Time
}

func NewFineService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy CirculationPolicy,
	fineRepo repos.FineRepo,
	memberRepo repos.MemberRepo,
	transactionRepo repos.TransactionRepo,
	notifier Notifier,
) FineService {
	serviceLog := baseLog.With("service", "FineService")
	return &fineService{
		db:              db,
		log:             serviceLog,
		policy:          policy,
		fineRepo:        fineRepo,
		memberRepo:      memberRepo,
		transactionRepo: transactionRepo,
		notifier:        notifier,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (fs *fineService) Settle(ctx context.Context, fineID uuid.UUID, outcome string) error {
	if fineID == uuid.Nil {
		return apperr.Validation("missing fine id")
	}

	var status string
	switch outcome {
	case SettleOutcomePaid:
		status = types.FineStatusPaid
	case SettleOutcomeWaived:
		status = types.FineStatusWaived
	default:
		return apperr.Validation("settlement outcome must be paid or waived, got %q", outcome)
	}

	fine, err := fs.fineRepo.GetByID(ctx, nil, fineID)
	if err != nil {
		return fmt.Errorf("loading fine: %w", err)
	}
	if fine == nil {
		return apperr.NotFound("fine %s not found", fineID)
	}

	err = runInTx(ctx, fs.db, func(dbtx *gorm.DB) error {
		var paidAt *time.Time
		if status == types.FineStatusPaid {
			t := fs.now()
			paidAt = &t
		}
		if err := fs.fineRepo.Settle(ctx, dbtx, fineID, status, paidAt); err != nil {
			return err
		}
		if err := fs.memberRepo.SettleFineAmount(ctx, dbtx, fine.MemberID, fine.Amount); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if fs.notifier != nil {
		fs.notifier.Emit(ctx, sse.SSEEventFineSettled, map[string]any{"fine_id": fineID, "outcome": outcome})
	}
	fs.log.Info("Fine settled", "fine_id", fineID, "outcome", outcome, "amount", fine.Amount)
	return nil
}

// Assess posts a manual fine against a transaction, balance and row moving
// together like the automatic path.
func (fs *fineService) Assess(ctx context.Context, transactionID uuid.UUID, amount float64, reason string) (*types.Fine, error) {
	if transactionID == uuid.Nil {
		return nil, apperr.Validation("missing transaction id")
	}
	if amount <= 0 {
		return nil, apperr.Validation("fine amount must be positive, got %v", amount)
	}
	if reason == "" {
		return nil, apperr.Validation("a reason is required")
	}

	txn, err := fs.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction: %w", err)
	}
	if txn == nil {
		return nil, apperr.NotFound("transaction %s not found", transactionID)
	}

	fine := &types.Fine{
		ID:            uuid.New(),
		MemberID:      txn.MemberID,
		TransactionID: &txn.ID,
		Amount:        amount,
		Reason:        reason,
		Status:        types.FineStatusPending,
		CreatedAt:     fs.now(),
	}
	err = runInTx(ctx, fs.db, func(dbtx *gorm.DB) error {
		if _, err := fs.fineRepo.Create(ctx, dbtx, []*types.Fine{fine}); err != nil {
			return err
		}
		return fs.memberRepo.AddFine(ctx, dbtx, txn.MemberID, amount)
	})
	if err != nil {
		return nil, err
	}

	fs.log.Info("Fine assessed", "fine_id", fine.ID, "transaction_id", transactionID, "amount", amount)
	return fine, nil
}

// CorrectTransactionFine restamps the fine recorded on a closed checkout.
// It adjusts the historical record only; the member's balance moves through
// Assess and Settle, never here.
func (fs *fineService) CorrectTransactionFine(ctx context.Context, transactionID uuid.UUID, amount float64) error {
	if transactionID == uuid.Nil {
		return apperr.Validation("missing transaction id")
	}
	if amount < 0 {
		return apperr.Validation("fine amount cannot be negative, got %v", amount)
	}

	txn, err := fs.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return fmt.Errorf("loading transaction: %w", err)
	}
	if txn == nil {
		return apperr.NotFound("transaction %s not found", transactionID)
	}
	if txn.IsOpen() {
		return apperr.Conflict("transaction %s is still open, return it first", transactionID)
	}

	if err := fs.transactionRepo.SetFineAmount(ctx, nil, transactionID, amount); err != nil {
		return err
	}
	fs.log.Info("Transaction fine corrected", "transaction_id", transactionID, "amount", amount)
	return nil
}

// Preview reports what a return on returnDate would cost, committing
// nothing. It runs the same pure computation the return path runs.
func (fs *fineService) Preview(ctx context.Context, transactionID uuid.UUID, returnDate time.Time) (float64, error) {
	if transactionID == uuid.Nil {
		return 0, apperr.Validation("missing transaction id")
	}

	txn, err := fs.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return 0, fmt.Errorf("loading transaction: %w", err)
	}
	if txn == nil {
		return 0, apperr.NotFound("transaction %s not found", transactionID)
	}
	return ComputeFine(txn.DueDate, returnDate.UTC(), fs.policy), nil
}

func (fs *fineService) ListMemberFines(ctx context.Context, memberID uuid.UUID) ([]*types.Fine, error) {
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}
	fines, err := fs.fineRepo.ListByMember(ctx, nil, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing fines: %w", err)
	}
	return fines, nil
}
