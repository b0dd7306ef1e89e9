package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type LibraryStats struct {
	TotalBooks        int64     `json:"total_books"`
	ActiveMembers     int64     `json:"active_members"`
	BooksIssued       int64     `json:"books_issued"`
	OverdueBooks      int64     `json:"overdue_books"`
	TotalReservations int64     `json:"total_reservations"`
	TotalFines        float64   `json:"total_fines"`
	ComputedAt        time.Time `json:"computed_at"`
}

// StatsService derives read-only rollups from the ledgers. It never mutates
// ledger state and is eventually consistent with the coordinator's writes:
// consumers may observe a stats snapshot briefly older than a commit they
// just made.
type StatsService interface {
	GetStats(ctx context.Context) (*LibraryStats, error)
	RecentActivity(ctx context.Context, limit int) ([]*types.ActivityEvent, error)
	Invalidate()
}

type statsService struct {
	db              *gorm.DB
	log             *logger.Logger
	bookRepo        repos.BookRepo
	memberRepo      repos.MemberRepo
	transactionRepo repos.TransactionRepo
	reservationRepo repos.ReservationRepo
	fineRepo        repos.FineRepo
	activityRepo    repos.ActivityEventRepo
	now             func() time.Time

	mu       sync.Mutex
	cached   *LibraryStats
	cacheTTL time.Duration
}

func NewStatsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bookRepo repos.BookRepo,
	memberRepo repos.MemberRepo,
	transactionRepo repos.TransactionRepo,
	reservationRepo repos.ReservationRepo,
	fineRepo repos.FineRepo,
	activityRepo repos.ActivityEventRepo,
) StatsService {
	serviceLog := baseLog.With("service", "StatsService")
	return &statsService{
		db:              db,
		log:             serviceLog,
		bookRepo:        bookRepo,
		memberRepo:      memberRepo,
		transactionRepo: transactionRepo,
		reservationRepo: reservationRepo,
		fineRepo:        fineRepo,
		activityRepo:    activityRepo,
		now:             func() time.Time { return time.Now().UTC() },
		cacheTTL:        30 * time.Second,
	}
}

func (ss *statsService) GetStats(ctx context.Context) (*LibraryStats, error) {
	ss.mu.Lock()
	if ss.cached != nil && ss.now().Sub(ss.cached.ComputedAt) < ss.cacheTTL {
		cached := *ss.cached
		ss.mu.Unlock()
		return &cached, nil
	}
	ss.mu.Unlock()

	now := ss.now()

	totalBooks, err := ss.bookRepo.SumTotalCopies(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("summing book copies: %w", err)
	}
	activeMembers, err := ss.memberRepo.CountActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("counting active members: %w", err)
	}
	booksIssued, err := ss.transactionRepo.CountOpen(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("counting open loans: %w", err)
	}
	overdue, err := ss.transactionRepo.CountOverdue(ctx, nil, now)
	if err != nil {
		return nil, fmt.Errorf("counting overdue loans: %w", err)
	}
	reservations, err := ss.reservationRepo.CountActive(ctx, nil, now)
	if err != nil {
		return nil, fmt.Errorf("counting active holds: %w", err)
	}
	pendingFines, err := ss.fineRepo.SumPending(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("summing pending fines: %w", err)
	}

	stats := &LibraryStats{
		TotalBooks:        totalBooks,
		ActiveMembers:     activeMembers,
		BooksIssued:       booksIssued,
		OverdueBooks:      overdue,
		TotalReservations: reservations,
		TotalFines:        pendingFines,
		ComputedAt:        now,
	}

	ss.mu.Lock()
	ss.cached = stats
	ss.mu.Unlock()

	result := *stats
	return &result, nil
}

func (ss *statsService) RecentActivity(ctx context.Context, limit int) ([]*types.ActivityEvent, error) {
	events, err := ss.activityRepo.Recent(ctx, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent activity: %w", err)
	}
	return events, nil
}

// Invalidate drops the cached snapshot so the next read recomputes. Wired to
// the event forwarder in main: any circulation event on any instance
// invalidates here.
func (ss *statsService) Invalidate() {
	ss.mu.Lock()
	ss.cached = nil
	ss.mu.Unlock()
}
