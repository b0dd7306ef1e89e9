package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
)

type ActivityEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) ([]*types.ActivityEvent, error)
	Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ActivityEvent, error)
}

type activityEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	repoLog := baseLog.With("repo", "ActivityEventRepo")
	return &activityEventRepo{db: db, log: repoLog}
}

func (ar *activityEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) ([]*types.ActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	if len(events) == 0 {
		return []*types.ActivityEvent{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (ar *activityEventRepo) Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var results []*types.ActivityEvent
	if err := transaction.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
