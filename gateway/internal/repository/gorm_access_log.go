package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lan-gateway/gateway/internal/model"
)

const defaultAccessLogLimit = 100

var _ Repository = (*GormRepository)(nil)

// GormRepository stores access decisions in the local sqlite database.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) RecordAccess(ctx context.Context, entry model.AccessLogEntry) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *GormRepository) ListAccessLogs(ctx context.Context, filter AccessLogFilter) ([]model.AccessLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAccessLogLimit
	}

	q := r.db.WithContext(ctx).Model(&model.AccessLogEntry{})
	if filter.ClientIP != "" {
		q = q.Where("client_ip = ?", filter.ClientIP)
	}
	if filter.Decision != "" {
		q = q.Where("decision = ?", filter.Decision)
	}
	if filter.Port != 0 {
		q = q.Where("port = ?", filter.Port)
	}
	if !filter.Since.IsZero() {
		q = q.Where("ts >= ?", filter.Since.UTC())
	}

	var out []model.AccessLogEntry
	if err := q.Order("ts DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) GetAccessLog(ctx context.Context, id string) (model.AccessLogEntry, error) {
	var e model.AccessLogEntry
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AccessLogEntry{}, fmt.Errorf("access log %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.AccessLogEntry{}, err
	}
	return e, nil
}

func (r *GormRepository) PruneAccessLogs(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("ts < ?", before.UTC()).Delete(&model.AccessLogEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
