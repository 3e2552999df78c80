package repository

import (
	"context"
	"errors"
	"time"

	"lan-gateway/gateway/internal/model"
)

var ErrNotFound = errors.New("not found")

type AccessLogFilter struct {
	ClientIP string
	Decision string
	Port     int
	Since    time.Time
	Limit    int
}

type Repository interface {
	RecordAccess(ctx context.Context, entry model.AccessLogEntry) error
	ListAccessLogs(ctx context.Context, filter AccessLogFilter) ([]model.AccessLogEntry, error)
	GetAccessLog(ctx context.Context, id string) (model.AccessLogEntry, error)
	PruneAccessLogs(ctx context.Context, before time.Time) (int64, error)
}
