package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform is the hosting service a webhook came from.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitee  Platform = "gitee"
)

// Host returns the hostname repositories on p are served from.
func (p Platform) Host() string {
	switch p {
	case PlatformGitHub:
		return "github.com"
	case PlatformGitee:
		return "gitee.com"
	default:
		return ""
	}
}

// WebhookEvent is the canonical form of one inbound push notification.
// It is built once per delivery and not modified afterwards.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Platform   Platform        `json:"platform"`
	RepoURL    string          `json:"repo_url"` // canonical "host/owner/name"
	Identity   RepoIdentity    `json:"identity"`
	CloneURL   string          `json:"clone_url,omitempty"`
	Ref        string          `json:"ref,omitempty"`
	Before     string          `json:"before"`
	After      string          `json:"after"`
	ReceivedAt time.Time       `json:"received_at"`
	RawPayload json.RawMessage `json:"-"`
}

// IsNullCommit reports whether sha is the all-zero id pushes use for a
// created or deleted branch.
func IsNullCommit(sha string) bool {
	return sha != "" && strings.Trim(sha, "0") == ""
}
