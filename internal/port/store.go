package port

import (
	"context"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entry domain.AuditLog) error
}

// AuditReader lists persisted audit records, newest first.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}

// DeliveryRecorder persists webhook delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d domain.Delivery) error
	ListDeliveries(ctx context.Context, repo string, limit int) ([]domain.Delivery, error)
}

// Store is everything the service persists.
type Store interface {
	AuditWriter
	AuditReader
	DeliveryRecorder
	Close() error
}
