package store

import (
	"context"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// LogStore is used when no database is configured: writes go to the log
// and reads report port.ErrStoreDisabled.
type LogStore struct {
	log *logger.Logger
}

// NewLogStore creates a store that only logs.
func NewLogStore(log *logger.Logger) *LogStore {
	return &LogStore{log: log}
}

func (s *LogStore) WriteAudit(ctx context.Context, entry domain.AuditLog) error {
	s.log.Debugf("audit %s %s %s", entry.Action, entry.Resource, entry.ResourceID)
	return nil
}

func (s *LogStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	return nil, port.ErrStoreDisabled
}

func (s *LogStore) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	s.log.With("event", d.EventID).With("repo", d.Repo).
		Infof("delivery %s %s..%s: %d files +%d -%d %s",
			d.Status, d.Before, d.After, d.FilesChanged, d.TotalAdditions, d.TotalDeletions, d.ErrorCode)
	return nil
}

func (s *LogStore) ListDeliveries(ctx context.Context, repo string, limit int) ([]domain.Delivery, error) {
	return nil, port.ErrStoreDisabled
}

func (s *LogStore) Close() error {
	return nil
}

var (
	_ port.Store = (*LogStore)(nil)
	_ port.Store = (*PostgresStore)(nil)
)
