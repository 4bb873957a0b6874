package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// RepoIdentity names a remote repository independently of the URL form it
// arrived in. Two URLs naming the same remote resolve to equal identities.
type RepoIdentity struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String renders the canonical form "host/owner/name".
func (id RepoIdentity) String() string {
	return id.Host + "/" + id.Owner + "/" + id.Name
}

// Path returns the identity as a relative path using the platform separator.
func (id RepoIdentity) Path() string {
	return filepath.Join(id.Host, id.Owner, id.Name)
}

// IsZero reports whether the identity is unset.
func (id RepoIdentity) IsZero() bool {
	return id.Host == "" && id.Owner == "" && id.Name == ""
}

// Mirror is a local working copy of a remote repository under the store root.
type Mirror struct {
	Identity  RepoIdentity `json:"identity"`
	Path      string       `json:"path"` // canonical "host/owner/name"
	LocalPath string       `json:"-"`
	Head      string       `json:"head,omitempty"`
	SyncedAt  time.Time    `json:"synced_at,omitempty"`
}

// NewMirror builds the mirror reference for id rooted at storeRoot.
func NewMirror(storeRoot string, id RepoIdentity) Mirror {
	return Mirror{
		Identity:  id,
		Path:      id.String(),
		LocalPath: filepath.Join(storeRoot, id.Path()),
	}
}

// MirrorEvent kinds.
const (
	MirrorEventCloned  = "cloned"
	MirrorEventUpdated = "updated"
	MirrorEventFailed  = "failed"
)

// MirrorEvent reports a change in a mirror's state.
type MirrorEvent struct {
	Repo   string    `json:"repo"`
	Kind   string    `json:"kind"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
	Commit string    `json:"commit,omitempty"`
}

// RelativeRepoPath converts a path below root into canonical slash form.
func RelativeRepoPath(root, dir string) (string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/"), nil
}
