package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
)

// PostgresStore persists audit logs and webhook delivery records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	resource    TEXT NOT NULL DEFAULT '',
	resource_id TEXT NOT NULL DEFAULT '',
	details     JSONB NOT NULL DEFAULT '{}',
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS audit_logs_action_created_idx ON audit_logs (action, created_at DESC);

CREATE TABLE IF NOT EXISTS webhook_deliveries (
	event_id        TEXT PRIMARY KEY,
	platform        TEXT NOT NULL,
	repo            TEXT NOT NULL,
	before_sha      TEXT NOT NULL,
	after_sha       TEXT NOT NULL,
	status          TEXT NOT NULL,
	files_changed   INTEGER NOT NULL DEFAULT 0,
	total_additions INTEGER NOT NULL DEFAULT 0,
	total_deletions INTEGER NOT NULL DEFAULT 0,
	error_code      TEXT NOT NULL DEFAULT '',
	received_at     TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS webhook_deliveries_repo_idx ON webhook_deliveries (repo, received_at DESC);
`

// Migrate creates the tables the store needs if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements port.AuditWriter.
func (s *PostgresStore) WriteAudit(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_logs (id, action, resource, resource_id, details, ip, user_agent, created_at)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Action, entry.Resource, entry.ResourceID,
		entry.Details, entry.IP, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns recent audit logs, optionally filtered by action.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Webhook Deliveries ---

// RecordDelivery inserts or replaces the delivery row for d.EventID.
func (s *PostgresStore) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	query := `
		INSERT INTO webhook_deliveries (event_id, platform, repo, before_sha, after_sha, status,
			files_changed, total_additions, total_deletions, error_code, received_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO UPDATE SET
			status = EXCLUDED.status,
			files_changed = EXCLUDED.files_changed,
			total_additions = EXCLUDED.total_additions,
			total_deletions = EXCLUDED.total_deletions,
			error_code = EXCLUDED.error_code,
			completed_at = EXCLUDED.completed_at`

	var completed sql.NullTime
	if d.CompletedAt != nil {
		completed = sql.NullTime{Time: *d.CompletedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		d.EventID, string(d.Platform), d.Repo, d.Before, d.After, d.Status,
		d.FilesChanged, d.TotalAdditions, d.TotalDeletions, d.ErrorCode,
		d.ReceivedAt, completed,
	)
	if err != nil {
		return fmt.Errorf("record delivery %s: %w", d.EventID, err)
	}
	return nil
}

// ListDeliveries returns recent deliveries, newest first, optionally
// restricted to one canonical repository path.
func (s *PostgresStore) ListDeliveries(ctx context.Context, repo string, limit int) ([]domain.Delivery, error) {
	query := `SELECT event_id, platform, repo, before_sha, after_sha, status,
	                 files_changed, total_additions, total_deletions, error_code, received_at, completed_at
	          FROM webhook_deliveries`
	args := []any{}
	argIdx := 1

	if repo != "" {
		query += fmt.Sprintf(" WHERE repo = $%d", argIdx)
		args = append(args, repo)
		argIdx++
	}

	query += " ORDER BY received_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := []domain.Delivery{}
	for rows.Next() {
		var (
			d         domain.Delivery
			platform  string
			completed sql.NullTime
		)
		if err := rows.Scan(
			&d.EventID, &platform, &d.Repo, &d.Before, &d.After, &d.Status,
			&d.FilesChanged, &d.TotalAdditions, &d.TotalDeletions, &d.ErrorCode,
			&d.ReceivedAt, &completed,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Platform = domain.Platform(platform)
		if completed.Valid {
			t := completed.Time
			d.CompletedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
