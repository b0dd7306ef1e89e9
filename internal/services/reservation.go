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

type HoldResult struct {
	HoldID     uuid.UUID `json:"hold_id"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// ReservationService manages the hold queue. Holds exist only for exhausted
// titles: while copies are on the shelf, direct checkout is the path.
type ReservationService interface {
	PlaceHold(ctx context.Context, bookID, memberID uuid.UUID) (*HoldResult, error)
	CancelHold(ctx context.Context, holdID, callerMemberID uuid.UUID, privileged bool) error
	ListMemberHolds(ctx context.Context, memberID uuid.UUID) ([]*types.Reservation, error)
}

type reservationService struct {
	db              *gorm.DB
	log             *logger.Logger
	policy          CirculationPolicy
	bookRepo        repos.BookRepo
	memberRepo      repos.MemberRepo
	reservationRepo repos.ReservationRepo
	activityRepo    repos.ActivityEventRepo
	notifier        Notifier
	now             func() time.Time
}

func NewReservationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy CirculationPolicy,
	bookRepo repos.BookRepo,
	memberRepo repos.MemberRepo,
	reservationRepo repos.ReservationRepo,
	activityRepo repos.ActivityEventRepo,
	notifier Notifier,
) ReservationService {
	serviceLog := baseLog.With("service", "ReservationService")
	return &reservationService{
		db:              db,
		log:             serviceLog,
		policy:          policy,
		bookRepo:        bookRepo,
		memberRepo:      memberRepo,
		reservationRepo: reservationRepo,
		activityRepo:    activityRepo,
		notifier:        notifier,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (rs *reservationService) PlaceHold(ctx context.Context, bookID, memberID uuid.UUID) (*HoldResult, error) {
	if bookID == uuid.Nil {
		return nil, apperr.Validation("missing book id")
	}
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}

	book, err := rs.bookRepo.GetByID(ctx, nil, bookID)
	if err != nil {
		return nil, fmt.Errorf("loading book: %w", err)
	}
	if book == nil {
		return nil, apperr.NotFound("book %s not found", bookID)
	}
	if book.AvailableCopies > 0 {
		return nil, apperr.Precondition(apperr.CodeBookAvailable, "book %s has %d available copies, check it out directly", bookID, book.AvailableCopies)
	}

	member, err := rs.memberRepo.GetByID(ctx, nil, memberID)
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	if member == nil {
		return nil, apperr.NotFound("member %s not found", memberID)
	}
	if member.Status != types.MemberStatusActive {
		return nil, apperr.Precondition(apperr.CodeMembershipInactive, "member %s is %s", memberID, member.Status)
	}

	now := rs.now()
	already, err := rs.reservationRepo.HasActiveHold(ctx, nil, bookID, memberID, now)
	if err != nil {
		return nil, fmt.Errorf("checking existing holds: %w", err)
	}
	if already {
		return nil, apperr.Precondition(apperr.CodeDuplicateHold, "member %s already holds book %s", memberID, bookID)
	}

	hold := &types.Reservation{
		ID:              uuid.New(),
		BookID:          bookID,
		MemberID:        memberID,
		ReservationDate: now,
		ExpiryDate:      now.Add(rs.policy.HoldWindow()),
		Status:          types.ReservationStatusActive,
	}
	if _, err := rs.reservationRepo.Create(ctx, nil, []*types.Reservation{hold}); err != nil {
		return nil, fmt.Errorf("creating hold: %w", err)
	}

	rs.recordActivity(ctx, types.ActivityReservation, bookID, memberID, map[string]any{
		"hold_id":     hold.ID,
		"expiry_date": hold.ExpiryDate,
	})
	if rs.notifier != nil {
		rs.notifier.Emit(ctx, sse.SSEEventHoldPlaced, map[string]any{"hold_id": hold.ID, "book_id": bookID})
	}

	rs.log.Info("Hold placed", "hold_id", hold.ID, "book_id", bookID, "member_id", memberID)
	return &HoldResult{HoldID: hold.ID, ExpiryDate: hold.ExpiryDate}, nil
}

// CancelHold resolves an active hold to cancelled. Unprivileged callers may
// only cancel their own holds.
func (rs *reservationService) CancelHold(ctx context.Context, holdID, callerMemberID uuid.UUID, privileged bool) error {
	if holdID == uuid.Nil {
		return apperr.Validation("missing hold id")
	}

	hold, err := rs.reservationRepo.GetByID(ctx, nil, holdID)
	if err != nil {
		return fmt.Errorf("loading hold: %w", err)
	}
	if hold == nil {
		return apperr.NotFound("hold %s not found", holdID)
	}
	if !privileged && hold.MemberID != callerMemberID {
		return apperr.Forbidden("hold %s belongs to another member", holdID)
	}

	if err := rs.reservationRepo.Resolve(ctx, nil, holdID, types.ReservationStatusCancelled); err != nil {
		return err
	}

	if rs.notifier != nil {
		rs.notifier.Emit(ctx, sse.SSEEventHoldCancelled, map[string]any{"hold_id": holdID})
	}
	rs.log.Info("Hold cancelled", "hold_id", holdID)
	return nil
}

func (rs *reservationService) ListMemberHolds(ctx context.Context, memberID uuid.UUID) ([]*types.Reservation, error) {
	if memberID == uuid.Nil {
		return nil, apperr.Validation("missing member id")
	}
	holds, err := rs.reservationRepo.ListByMember(ctx, nil, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing holds: %w", err)
	}
	// Lazy expiry: reads past the window report expired even before a sweep
	// persists it.
	now := rs.now()
	for _, h := range holds {
		h.Status = h.EffectiveStatus(now)
	}
	return holds, nil
}

func (rs *reservationService) recordActivity(ctx context.Context, kind string, bookID, memberID uuid.UUID, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		rs.log.Warn("Failed to marshal activity payload", "type", kind, "error", err)
		raw = nil
	}
	event := &types.ActivityEvent{
		ID:        uuid.New(),
		Type:      kind,
		BookID:    &bookID,
		MemberID:  &memberID,
		Data:      datatypes.JSON(raw),
		CreatedAt: rs.now(),
	}
	if _, err := rs.activityRepo.Create(ctx, nil, []*types.ActivityEvent{event}); err != nil {
		rs.log.Warn("Failed to record activity event", "type", kind, "error", err)
	}
}
