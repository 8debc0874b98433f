package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dispatch-service/internal/model"
)

type StatusLogRepository struct {
	db *gorm.DB
}

func NewStatusLogRepository(db *gorm.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

type StatusLogFilter struct {
	FaultID  *uuid.UUID
	Station  string
	Actions  []model.FaultAction
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

func (r *StatusLogRepository) Create(ctx context.Context, entry *model.FaultStatusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateBatch writes several entries in one transaction, used when one workflow step touches many faults.
func (r *StatusLogRepository) CreateBatch(ctx context.Context, entries []model.FaultStatusLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
}

func (r *StatusLogRepository) List(ctx context.Context, filter StatusLogFilter) ([]model.FaultStatusLog, error) {
	query := r.db.WithContext(ctx).Model(&model.FaultStatusLog{})

	if filter.FaultID != nil {
		query = query.Where("fault_id = ?", *filter.FaultID)
	}
	if filter.Station != "" {
		query = query.Where("station_name = ?", filter.Station)
	}
	if len(filter.Actions) > 0 {
		query = query.Where("action IN ?", filter.Actions)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(500)
	}

	var entries []model.FaultStatusLog
	if err := query.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *StatusLogRepository) ListByFault(ctx context.Context, faultID uuid.UUID) ([]model.FaultStatusLog, error) {
	return r.List(ctx, StatusLogFilter{FaultID: &faultID})
}

// ListRecent returns the newest entries first.
func (r *StatusLogRepository) ListRecent(ctx context.Context, limit int) ([]model.FaultStatusLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.FaultStatusLog
	if err := r.db.WithContext(ctx).
		Model(&model.FaultStatusLog{}).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
