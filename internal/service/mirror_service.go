package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// MirrorService keeps local mirrors of remote repositories under a store
// root: clone when absent, pull when present. Mutating operations on one
// repository are serialized.
type MirrorService struct {
	vcs         port.VCSProvider
	root        string
	syncTimeout time.Duration
	locks       *repoLocks
	events      *MirrorEventBus
	log         *logger.Logger
}

// NewMirrorService creates a mirror service rooted at root. events may be nil.
func NewMirrorService(vcs port.VCSProvider, root string, syncTimeout time.Duration, events *MirrorEventBus, log *logger.Logger) *MirrorService {
	return &MirrorService{
		vcs:         vcs,
		root:        root,
		syncTimeout: syncTimeout,
		locks:       newRepoLocks(),
		events:      events,
		log:         log,
	}
}

// Root returns the store root directory.
func (s *MirrorService) Root() string {
	return s.root
}

// Mirror returns the mirror reference for id; it does not touch the disk.
func (s *MirrorService) Mirror(id domain.RepoIdentity) domain.Mirror {
	return domain.NewMirror(s.root, id)
}

// EnsureCloned clones url into its mirror location unless a working mirror
// is already there. URLs Locate does not recognize are rejected with
// port.ErrNotAGitURL before anything touches the disk.
func (s *MirrorService) EnsureCloned(ctx context.Context, url string) (domain.Mirror, error) {
	id, ok := domain.Locate(url)
	if !ok {
		return domain.Mirror{}, fmt.Errorf("clone %q: %w", url, port.ErrNotAGitURL)
	}
	m := s.Mirror(id)
	log := s.log.With("repo", m.Path)

	unlock := s.locks.Lock(m.Path)
	defer unlock()

	if isRepository(m.LocalPath) {
		log.Debug("mirror already present, skipping clone")
		return m, nil
	}

	existed := pathExists(m.LocalPath)
	created := missingDirs(s.root, filepath.Dir(m.LocalPath))
	if err := os.MkdirAll(filepath.Dir(m.LocalPath), 0o755); err != nil {
		return domain.Mirror{}, fmt.Errorf("clone %s: %w: %w", m.Path, port.ErrCloneFailed, err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	log.Infof("cloning repository into %s", m.LocalPath)
	if err := s.vcs.Clone(cloneCtx, url, m.LocalPath); err != nil {
		if !existed {
			_ = os.RemoveAll(m.LocalPath)
			removeEmptyDirs(created)
		}
		log.Error("clone failed", err)
		s.publish(m, domain.MirrorEventFailed, "", err)
		return domain.Mirror{}, fmt.Errorf("clone %s: %w: %w", m.Path, port.ErrCloneFailed, err)
	}

	m.Head = s.head(cloneCtx, m)
	m.SyncedAt = time.Now()
	log.Info("clone complete")
	s.publish(m, domain.MirrorEventCloned, m.Head, nil)
	return m, nil
}

// Update pulls the default remote into an existing mirror. ref is a remote
// URL or a canonical "host/owner/name" path. A mirror that is not on disk
// yields port.ErrMirrorAbsent and is never cloned here.
func (s *MirrorService) Update(ctx context.Context, ref string) (domain.Mirror, error) {
	id, ok := domain.Resolve(ref)
	if !ok {
		return domain.Mirror{}, fmt.Errorf("update %q: %w", ref, port.ErrNotAGitURL)
	}
	m := s.Mirror(id)
	if !isRepository(m.LocalPath) {
		return domain.Mirror{}, fmt.Errorf("update %s: %w", m.Path, port.ErrMirrorAbsent)
	}
	log := s.log.With("repo", m.Path)

	unlock := s.locks.Lock(m.Path)
	defer unlock()

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	if err := s.vcs.Pull(syncCtx, m.LocalPath); err != nil {
		log.Error("update failed", err)
		s.publish(m, domain.MirrorEventFailed, "", err)
		return domain.Mirror{}, fmt.Errorf("update %s: %w: %w", m.Path, port.ErrSyncFailed, err)
	}

	m.Head = s.head(syncCtx, m)
	m.SyncedAt = time.Now()
	log.Debug("update complete")
	s.publish(m, domain.MirrorEventUpdated, m.Head, nil)
	return m, nil
}

// Exists reports whether the mirror for ref is present on disk as a
// working copy. A bare directory at the mirror path does not count.
func (s *MirrorService) Exists(ref string) bool {
	id, ok := domain.Resolve(ref)
	if !ok {
		return false
	}
	return isRepository(s.Mirror(id).LocalPath)
}

// List returns every managed repository below the store root as a
// "/"-separated path relative to the root, in lexical order.
func (s *MirrorService) List(ctx context.Context) ([]string, error) {
	repos := []string{}
	if !pathExists(s.root) {
		return repos, nil
	}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() || path == s.root {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !isRepository(path) {
			return nil
		}
		rel, err := domain.RelativeRepoPath(s.root, path)
		if err != nil {
			return err
		}
		repos = append(repos, rel)
		return filepath.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return repos, nil
}

func (s *MirrorService) head(ctx context.Context, m domain.Mirror) string {
	h, err := s.vcs.ResolveCommit(ctx, m.LocalPath, "HEAD")
	if err != nil {
		return ""
	}
	return h
}

func (s *MirrorService) publish(m domain.Mirror, kind, commit string, err error) {
	evt := domain.MirrorEvent{Repo: m.Path, Kind: kind, Commit: commit, At: time.Now()}
	if err != nil {
		evt.Error = err.Error()
	}
	s.events.Publish(evt)
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// missingDirs lists the directories from dir up to, but not including, root
// that do not exist yet, deepest first.
func missingDirs(root, dir string) []string {
	var dirs []string
	root = filepath.Clean(root)
	for d := filepath.Clean(dir); d != root && !pathExists(d); d = filepath.Dir(d) {
		if parent := filepath.Dir(d); parent == d {
			break
		}
		dirs = append(dirs, d)
	}
	return dirs
}

// removeEmptyDirs removes dirs in order and stops at the first one that is
// no longer empty.
func removeEmptyDirs(dirs []string) {
	for _, d := range dirs {
		if err := os.Remove(d); err != nil {
			return
		}
	}
}

// isRepository reports whether dir holds a working copy (.git dir or file).
func isRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
