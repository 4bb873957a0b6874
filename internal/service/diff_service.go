package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// DiffService computes line-level change reports between two commits of a
// mirrored repository.
type DiffService struct {
	mirrors     *MirrorService
	vcs         port.VCSProvider
	diffTimeout time.Duration
	log         *logger.Logger
}

// NewDiffService creates a diff service reading mirrors managed by mirrors.
func NewDiffService(mirrors *MirrorService, vcs port.VCSProvider, diffTimeout time.Duration, log *logger.Logger) *DiffService {
	return &DiffService{mirrors: mirrors, vcs: vcs, diffTimeout: diffTimeout, log: log}
}

// ChangesBetween syncs the mirror for ref and reports every file changed
// between before and after. An unresolvable commit aborts the whole report
// with port.ErrCommitNotFound; a file whose diff fails is skipped and listed
// in SkippedFiles. A failed sync is logged and the report is computed from
// the mirror as it is.
func (s *DiffService) ChangesBetween(ctx context.Context, ref, before, after string) (*domain.ChangeReport, error) {
	id, ok := domain.Resolve(ref)
	if !ok {
		return nil, fmt.Errorf("changes %q: %w", ref, port.ErrNotAGitURL)
	}
	m := s.mirrors.Mirror(id)
	log := s.log.With("repo", m.Path)

	if _, err := s.mirrors.Update(ctx, m.Path); err != nil {
		if errors.Is(err, port.ErrMirrorAbsent) {
			log.Warnf("mirror directory does not exist: %s", m.LocalPath)
			return nil, err
		}
		log.Warn("computing changes from the unsynchronized mirror")
	}

	unlock := s.mirrors.locks.RLock(m.Path)
	defer unlock()

	if !isRepository(m.LocalPath) {
		return nil, fmt.Errorf("changes %s: %w", m.Path, port.ErrMirrorAbsent)
	}

	from, err := s.resolve(ctx, m, before)
	if err != nil {
		log.Error("before commit not found", err)
		return nil, err
	}
	to, err := s.resolve(ctx, m, after)
	if err != nil {
		log.Error("after commit not found", err)
		return nil, err
	}

	var nameStatus string
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		nameStatus, err = s.vcs.DiffNameStatus(ctx, m.LocalPath, from, to)
		return err
	})
	if err != nil {
		log.Error("name-status diff failed", err)
		return nil, fmt.Errorf("changes %s %s..%s: %w", m.Path, before, after, err)
	}

	report := &domain.ChangeReport{
		Repo:         m.Path,
		Before:       from,
		After:        to,
		FilesChanged: []domain.FileChange{},
	}

	for _, entry := range ParseNameStatus(nameStatus) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fc, err := s.fileChange(ctx, m, from, to, entry)
		if err != nil {
			log.With("file", entry.Path).Error("skipping file", err)
			report.Skip(entry.Path, err)
			continue
		}
		report.Add(fc)
	}

	log.Infof("change report %s..%s: %d files, +%d -%d",
		short(from), short(to), len(report.FilesChanged), report.TotalAdditions, report.TotalDeletions)
	return report, nil
}

func (s *DiffService) fileChange(ctx context.Context, m domain.Mirror, from, to string, entry NameStatusEntry) (domain.FileChange, error) {
	paths := []string{entry.Path}
	if entry.OldPath != "" {
		paths = []string{entry.OldPath, entry.Path}
	}

	var raw string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.vcs.DiffFile(ctx, m.LocalPath, from, to, paths...)
		return err
	})
	if err != nil {
		return domain.FileChange{}, fmt.Errorf("%w: %s: %w", port.ErrPerFileDiffFailed, entry.Path, err)
	}

	lines, additions, deletions := ParseUnifiedDiff(raw)
	return domain.FileChange{
		FilePath:    entry.Path,
		OldPath:     entry.OldPath,
		ChangeType:  domain.ChangeTypeFromStatus(entry.Status),
		Status:      entry.Status,
		Additions:   additions,
		Deletions:   deletions,
		LineChanges: lines,
		RawDiff:     raw,
	}, nil
}

func (s *DiffService) resolve(ctx context.Context, m domain.Mirror, ref string) (string, error) {
	var hash string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		hash, err = s.vcs.ResolveCommit(ctx, m.LocalPath, ref)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s %q: %w: %w", m.Path, ref, port.ErrCommitNotFound, err)
	}
	return hash, nil
}

// call runs fn with the per-invocation diff timeout.
func (s *DiffService) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.diffTimeout)
	defer cancel()
	return fn(ctx)
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
