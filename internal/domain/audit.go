package domain

import "time"

// AuditLog records one handled request.
type AuditLog struct {
	ID         string    `json:"id"          db:"id"`
	Action     string    `json:"action"      db:"action"`
	Resource   string    `json:"resource"    db:"resource"`
	ResourceID string    `json:"resource_id" db:"resource_id"`
	Details    string    `json:"details"     db:"details"` // JSON blob
	IP         string    `json:"ip"          db:"ip"`
	UserAgent  string    `json:"user_agent"  db:"user_agent"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// Audit action constants.
const (
	AuditActionHTTPRequest  = "http_request"
	AuditActionRepoClone    = "repo_clone"
	AuditActionRepoUpdate   = "repo_update"
	AuditActionWebhook      = "webhook"
	AuditActionChangeReport = "change_report"
)

// Delivery is the persisted outcome of processing one webhook event.
// The change report itself is not stored, only its counts.
type Delivery struct {
	EventID        string     `json:"event_id"        db:"event_id"`
	Platform       Platform   `json:"platform"        db:"platform"`
	Repo           string     `json:"repo"            db:"repo"`
	Before         string     `json:"before"          db:"before_sha"`
	After          string     `json:"after"           db:"after_sha"`
	Status         string     `json:"status"          db:"status"`
	FilesChanged   int        `json:"files_changed"   db:"files_changed"`
	TotalAdditions int        `json:"total_additions" db:"total_additions"`
	TotalDeletions int        `json:"total_deletions" db:"total_deletions"`
	ErrorCode      string     `json:"error_code,omitempty" db:"error_code"`
	ReceivedAt     time.Time  `json:"received_at"     db:"received_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Job and delivery status constants.
const (
	JobStatusQueued   = "queued"
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
	JobStatusSkipped  = "skipped"
	JobStatusError    = "error"
)
